// Package server exposes stored distributions and their proofs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/distributor"
	"github.com/Layr-Labs/union-rewards-go/pkg/logger"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	DefaultCacheSize = 64

	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var ErrDistributionNotFound = errors.New("distribution not found")

// Config controls the HTTP listener and the distribution cache
type Config struct {
	Port      int
	CacheSize int
}

// Server serves the proof API. The distributor is optional; without one the
// claim endpoint answers 501.
type Server struct {
	cfg         Config
	store       persistence.IRewardsPersistence
	distributor *distributor.Distributor
	cache       *lru.Cache[string, *types.Distribution]
	logger      *zap.Logger

	r          *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router. Nothing listens until Start is called.
func NewServer(cfg Config, store persistence.IRewardsPersistence, d *distributor.Distributor, l *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("server requires a persistence store")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, *types.Distribution](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create distribution cache: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		store:       store,
		distributor: d,
		cache:       cache,
		logger:      logger.OrNop(l),
		r:           r,
	}
	r.Use(s.requestLogger())
	s.routes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)
	s.r.GET("/distributions", s.handleListDistributions)
	s.r.GET("/distributions/:id", s.handleGetDistribution)
	s.r.GET("/distributions/:id/proofs/:account", s.handleGetProof)
	s.r.POST("/distributions/:id/verify", s.handleVerify)
	s.r.POST("/distributions/:id/claim", s.handleClaim)
}

// Start begins serving in the background
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop waits for in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler (for testing)
func (s *Server) Handler() http.Handler {
	return s.r
}

// Invalidate drops a cached distribution so the next request reloads it
func (s *Server) Invalidate(id string) {
	s.cache.Remove(id)
}

// loadDistribution reads through the cache
func (s *Server) loadDistribution(id string) (*types.Distribution, error) {
	if dist, ok := s.cache.Get(id); ok {
		return dist, nil
	}

	dist, err := s.store.LoadDistribution(id)
	if err != nil {
		return nil, err
	}
	if dist == nil {
		return nil, ErrDistributionNotFound
	}

	s.cache.Add(id, dist)
	return dist, nil
}

// requestLogger tags every request with an id, generating one when the caller did not send it
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFrom(c)
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		s.logger.Sugar().Debugw("HTTP request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
