package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Layr-Labs/union-rewards-go/pkg/distributor"
	"github.com/Layr-Labs/union-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/union-rewards-go/pkg/proofs"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type DistributionSummary struct {
	ID         string      `json:"id"`
	MerkleRoot common.Hash `json:"merkleRoot"`
	Claims     int         `json:"claims"`
	CreatedAt  int64       `json:"createdAt"`
}

type ProofResponse struct {
	DistributionID string        `json:"distributionId"`
	MerkleRoot     common.Hash   `json:"merkleRoot"`
	Index          uint64        `json:"index"`
	Account        string        `json:"account"`
	Amount         string        `json:"amount"`
	Proof          []common.Hash `json:"proof"`
}

// VerifyRequest checks a claim against a distribution's root. When Proof is
// omitted the stored proof for Account is used.
type VerifyRequest struct {
	Index   uint64          `json:"index"`
	Account string          `json:"account"`
	Amount  json.RawMessage `json:"amount"`
	Proof   []common.Hash   `json:"proof"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type ClaimRequest struct {
	Account string `json:"account"`
}

type ClaimResponse struct {
	Week    uint64 `json:"week"`
	Index   uint64 `json:"index"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.HealthCheck(); err != nil {
		s.writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListDistributions(c *gin.Context) {
	dists, err := s.store.ListDistributions()
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list distributions", "request_id", requestIDFrom(c), "error", err)
		s.writeError(c, http.StatusInternalServerError, "INTERNAL", "failed to list distributions")
		return
	}

	out := make([]DistributionSummary, 0, len(dists))
	for _, d := range dists {
		out = append(out, summarize(d))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDistribution(c *gin.Context) {
	dist, ok := s.distributionParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, summarize(dist))
}

func (s *Server) handleGetProof(c *gin.Context) {
	dist, ok := s.distributionParam(c)
	if !ok {
		return
	}
	account, ok := s.addressValue(c, c.Param("account"))
	if !ok {
		return
	}

	cp := dist.ProofForAccount(account)
	if cp == nil {
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", "account has no claim in distribution")
		return
	}
	c.JSON(http.StatusOK, proofResponse(dist, cp))
}

func (s *Server) handleVerify(c *gin.Context) {
	dist, ok := s.distributionParam(c)
	if !ok {
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	account, ok := s.addressValue(c, req.Account)
	if !ok {
		return
	}

	if req.Proof == nil {
		cp := dist.ProofForAccount(account)
		if cp == nil {
			c.JSON(http.StatusOK, VerifyResponse{Valid: false})
			return
		}
		c.JSON(http.StatusOK, VerifyResponse{Valid: merkle.VerifyClaimProof(cp, dist.MerkleRoot)})
		return
	}

	amount, err := proofs.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	leaf := merkle.HashClaim(req.Index, account, amount)
	c.JSON(http.StatusOK, VerifyResponse{Valid: merkle.VerifySortedProof(req.Proof, leaf, dist.MerkleRoot)})
}

func (s *Server) handleClaim(c *gin.Context) {
	if s.distributor == nil {
		s.writeError(c, http.StatusNotImplemented, "UNIMPLEMENTED", "no distributor configured")
		return
	}

	dist, ok := s.distributionParam(c)
	if !ok {
		return
	}
	if dist.MerkleRoot != s.distributor.MerkleRoot() {
		s.writeError(c, http.StatusConflict, "INACTIVE_ROOT", "distribution is not the distributor's current root")
		return
	}

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body")
		return
	}
	account, ok := s.addressValue(c, req.Account)
	if !ok {
		return
	}

	cp := dist.ProofForAccount(account)
	if cp == nil {
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", "account has no claim in distribution")
		return
	}

	receipt, err := s.distributor.ClaimProof(cp)
	if err != nil {
		status, code := claimErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Sugar().Errorw("Claim failed", "request_id", requestIDFrom(c), "error", err)
		}
		s.writeError(c, status, code, err.Error())
		return
	}

	c.JSON(http.StatusOK, ClaimResponse{
		Week:    receipt.Week,
		Index:   receipt.Index,
		Account: receipt.Account.Hex(),
		Amount:  receipt.Amount.Hex(),
	})
}

func claimErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, distributor.ErrAlreadyClaimed):
		return http.StatusConflict, "ALREADY_CLAIMED"
	case errors.Is(err, distributor.ErrFrozen):
		return http.StatusConflict, "FROZEN"
	case errors.Is(err, distributor.ErrClaimsPeriodFinished):
		return http.StatusGone, "CLAIMS_PERIOD_FINISHED"
	case errors.Is(err, distributor.ErrInvalidProof):
		return http.StatusBadRequest, "INVALID_PROOF"
	case errors.Is(err, distributor.ErrInvalidAddress):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// distributionParam loads the :id distribution, writing the error response on failure
func (s *Server) distributionParam(c *gin.Context) (*types.Distribution, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		s.writeError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "id is required")
		return nil, false
	}

	dist, err := s.loadDistribution(id)
	if errors.Is(err, ErrDistributionNotFound) {
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", "distribution not found")
		return nil, false
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to load distribution", "request_id", requestIDFrom(c), "id", id, "error", err)
		s.writeError(c, http.StatusInternalServerError, "INTERNAL", "failed to load distribution")
		return nil, false
	}
	return dist, true
}

func (s *Server) addressValue(c *gin.Context, value string) (common.Address, bool) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		s.writeError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid account address")
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message, RequestID: requestIDFrom(c)})
}

func requestIDFrom(c *gin.Context) string {
	if value, ok := c.Get(requestIDKey); ok {
		if requestID, ok := value.(string); ok {
			return requestID
		}
	}
	if requestID := strings.TrimSpace(c.GetHeader(requestIDHeader)); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

func summarize(d *types.Distribution) DistributionSummary {
	return DistributionSummary{
		ID:         d.ID,
		MerkleRoot: d.MerkleRoot,
		Claims:     len(d.Proofs),
		CreatedAt:  d.CreatedAt,
	}
}

func proofResponse(dist *types.Distribution, cp *types.ClaimProof) ProofResponse {
	amount := "0x0"
	if cp.Claim.Amount != nil {
		amount = cp.Claim.Amount.Hex()
	}
	return ProofResponse{
		DistributionID: dist.ID,
		MerkleRoot:     dist.MerkleRoot,
		Index:          cp.Claim.Index,
		Account:        cp.Claim.Account.Hex(),
		Amount:         amount,
		Proof:          cp.Hashes(),
	}
}
