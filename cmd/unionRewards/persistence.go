package main

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/union-rewards-go/pkg/config"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence/badger"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence/memory"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence/redis"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var persistenceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "persistence",
		Usage:   "Storage backend: memory, badger or redis",
		Value:   config.PersistenceTypeMemory.String(),
		EnvVars: []string{config.EnvPersistenceType},
	},
	&cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Badger data directory",
		Value:   config.DefaultDataDir,
		EnvVars: []string{config.EnvDataDir},
	},
	&cli.StringFlag{
		Name:    "redis-address",
		Usage:   "Redis server address (host:port)",
		EnvVars: []string{config.EnvRedisAddress},
	},
	&cli.StringFlag{
		Name:    "redis-password",
		Usage:   "Redis password",
		EnvVars: []string{config.EnvRedisPassword},
	},
	&cli.IntFlag{
		Name:    "redis-db",
		Usage:   "Redis database number",
		EnvVars: []string{config.EnvRedisDB},
	},
	&cli.StringFlag{
		Name:    "redis-key-prefix",
		Usage:   "Prefix for every Redis key, e.g. mainnet:",
		EnvVars: []string{config.EnvRedisKeyPrefix},
	},
}

func parseToolConfig(c *cli.Context) (*config.RewardsToolConfig, error) {
	cfg := config.DefaultRewardsToolConfig()

	pt, err := config.ParsePersistenceType(c.String("persistence"))
	if err != nil {
		return nil, err
	}
	cfg.Persistence = config.PersistenceConfig{
		Type:           pt,
		DataDir:        c.String("data-dir"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("cache-size") {
		cfg.Server.CacheSize = c.Int("cache-size")
	}
	cfg.Debug = c.Bool("verbose")
	cfg.Verbose = c.Bool("verbose")
	return cfg, nil
}

func newPersistence(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IRewardsPersistence, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		bp, err := badger.NewBadgerPersistence(cfg.DataDir, l)
		if err != nil {
			return nil, err
		}
		return bp, nil
	case config.PersistenceTypeRedis:
		rp, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
		if err != nil {
			return nil, err
		}
		return rp, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}

// errEphemeralStore is returned by commands whose result has to outlive the process
var errEphemeralStore = errors.New("memory persistence does not outlive this process; use --persistence badger or redis")

// openStore parses and validates the storage flags and opens the backend
func openStore(c *cli.Context, l *zap.Logger) (persistence.IRewardsPersistence, error) {
	cfg, err := parseToolConfig(c)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return openConfiguredStore(cfg, l)
}

// openDurableStore is openStore for commands whose stored state a later run reads back
func openDurableStore(c *cli.Context, l *zap.Logger) (persistence.IRewardsPersistence, error) {
	cfg, err := parseToolConfig(c)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := requireDurable(&cfg.Persistence); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Command.Name, err)
	}
	return openConfiguredStore(cfg, l)
}

func requireDurable(cfg *config.PersistenceConfig) error {
	if cfg.Type == config.PersistenceTypeMemory {
		return errEphemeralStore
	}
	return nil
}

func openConfiguredStore(cfg *config.RewardsToolConfig, l *zap.Logger) (persistence.IRewardsPersistence, error) {
	if err := cfg.ValidatePersistence(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := newPersistence(&cfg.Persistence, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", cfg.Persistence.Type, err)
	}
	return store, nil
}
