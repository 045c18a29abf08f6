package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixDistribution = "union:distribution:"
	keyPrefixDistributor  = "union:distributor:"
	keyPrefixVault        = "union:vault:"
	keySchemaVersion      = "union:metadata:schema_version"
	currentSchemaVersion  = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetDistributions = "union:distributions:index"
)

// RedisPersistence is a persistence implementation using Redis, suited to
// several API replicas sharing the same distributions.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IRewardsPersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys, e.g. "mainnet:" results
	// in keys like "mainnet:union:distribution:week-12".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// get returns nil data when the key does not exist
func (r *RedisPersistence) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefixKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// SaveDistribution persists a distribution and indexes its ID
func (r *RedisPersistence) SaveDistribution(dist *types.Distribution) error {
	if dist == nil {
		return fmt.Errorf("cannot save nil Distribution")
	}
	if dist.ID == "" {
		return fmt.Errorf("cannot save Distribution without an ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	data, err := persistence.MarshalDistribution(dist)
	if err != nil {
		return fmt.Errorf("failed to marshal Distribution: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixDistribution+dist.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetDistributions), dist.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save Distribution: %w", err)
	}

	return nil
}

// LoadDistribution retrieves a distribution
func (r *RedisPersistence) LoadDistribution(id string) (*types.Distribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.get(context.Background(), keyPrefixDistribution+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load Distribution: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	dist, err := persistence.UnmarshalDistribution(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Distribution: %w", err)
	}

	return dist, nil
}

// ListDistributions returns all distributions sorted by creation time
func (r *RedisPersistence) ListDistributions() ([]*types.Distribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetDistributions)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list Distribution ids: %w", err)
	}

	if len(ids) == 0 {
		return []*types.Distribution{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixDistribution + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Distributions: %w", err)
	}

	dists := make([]*types.Distribution, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for Distribution", "key", keys[i])
			continue
		}

		dist, err := persistence.UnmarshalDistribution([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal Distribution, skipping",
				"key", keys[i], "error", err)
			continue
		}

		dists = append(dists, dist)
	}

	persistence.SortDistributions(dists)

	return dists, nil
}

// DeleteDistribution removes a distribution and its index entry
func (r *RedisPersistence) DeleteDistribution(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.prefixKey(keyPrefixDistribution+id))
	pipe.SRem(ctx, r.prefixKey(keySetDistributions), id)

	_, err := pipe.Exec(ctx)
	return err
}

// SaveDistributorState persists distributor state
func (r *RedisPersistence) SaveDistributorState(state *persistence.DistributorState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil DistributorState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalDistributorState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal DistributorState: %w", err)
	}

	return r.client.Set(context.Background(), r.prefixKey(keyPrefixDistributor+state.ID), data, 0).Err()
}

// LoadDistributorState retrieves distributor state
func (r *RedisPersistence) LoadDistributorState(id string) (*persistence.DistributorState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.get(context.Background(), keyPrefixDistributor+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load DistributorState: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	state, err := persistence.UnmarshalDistributorState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal DistributorState: %w", err)
	}

	return state, nil
}

// SaveVaultState persists vault state
func (r *RedisPersistence) SaveVaultState(state *persistence.VaultState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil VaultState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalVaultState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal VaultState: %w", err)
	}

	return r.client.Set(context.Background(), r.prefixKey(keyPrefixVault+state.ID), data, 0).Err()
}

// LoadVaultState retrieves vault state
func (r *RedisPersistence) LoadVaultState(id string) (*persistence.VaultState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.get(context.Background(), keyPrefixVault+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load VaultState: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	state, err := persistence.UnmarshalVaultState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal VaultState: %w", err)
	}

	return state, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
