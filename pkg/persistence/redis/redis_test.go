package redis

import (
	"context"
	"os"
	"testing"

	"github.com/Layr-Labs/union-rewards-go/pkg/logger"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence/persistencetest"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestRedisAddress returns the Redis address for testing.
// Uses REDIS_TEST_ADDRESS env var if set, otherwise defaults to localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test when Redis is not reachable. Every store gets its
// own key prefix, and the keys are removed once the test completes.
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15, // Use DB 15 for tests to avoid conflicts
		KeyPrefix: "test:" + uuid.NewString() + ":",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}

	t.Cleanup(func() { cleanupRedis(cfg) })
	return rp
}

func cleanupRedis(cfg *RedisConfig) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	iter := client.Scan(ctx, 0, cfg.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}

func TestRedisPersistence(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.IRewardsPersistence {
		return requireRedis(t)
	})
}

func TestRedisPersistence_KeyPrefix(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	require.NoError(t, rp.SaveDistribution(persistencetest.SampleDistribution("week-1", 1)))

	exists, err := rp.client.Exists(context.Background(), rp.keyPrefix+keyPrefixDistribution+"week-1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	members, err := rp.client.SMembers(context.Background(), rp.keyPrefix+keySetDistributions).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"week-1"}, members)
}

func TestRedisPersistence_StaleIndexEntry(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	ctx := context.Background()
	require.NoError(t, rp.SaveDistribution(persistencetest.SampleDistribution("kept", 1)))
	require.NoError(t, rp.client.SAdd(ctx, rp.prefixKey(keySetDistributions), "gone").Err())

	all, err := rp.ListDistributions()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].ID)

	isMember, err := rp.client.SIsMember(ctx, rp.prefixKey(keySetDistributions), "gone").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestNewRedisPersistence_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address cannot be empty")
}
