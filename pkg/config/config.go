package config

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the rewards tool
const (
	EnvPersistenceType = "UNION_PERSISTENCE_TYPE"
	EnvDataDir         = "UNION_DATA_DIR"
	EnvRedisAddress    = "UNION_REDIS_ADDRESS"
	EnvRedisPassword   = "UNION_REDIS_PASSWORD"
	EnvRedisDB         = "UNION_REDIS_DB"
	EnvRedisKeyPrefix  = "UNION_REDIS_KEY_PREFIX"
	EnvPort            = "UNION_PORT"
	EnvCacheSize       = "UNION_CACHE_SIZE"
	EnvVerbose         = "UNION_VERBOSE"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// ParsePersistenceType is case-insensitive
func ParsePersistenceType(s string) (PersistenceType, error) {
	switch PersistenceType(strings.ToLower(strings.TrimSpace(s))) {
	case PersistenceTypeMemory:
		return PersistenceTypeMemory, nil
	case PersistenceTypeBadger:
		return PersistenceTypeBadger, nil
	case PersistenceTypeRedis:
		return PersistenceTypeRedis, nil
	default:
		return "", fmt.Errorf("unsupported persistence type: %s", s)
	}
}

const (
	DefaultPort      = 8080
	DefaultDataDir   = "./data"
	DefaultCacheSize = 64
)

// PersistenceConfig selects and configures the storage backend
type PersistenceConfig struct {
	Type    PersistenceType `json:"type"`
	DataDir string          `json:"data_dir"` // badger only

	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"-"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

// ServerConfig configures the proof API
type ServerConfig struct {
	Port int `json:"port"`
	// CacheSize is the number of distributions kept decoded in memory
	CacheSize int `json:"cache_size"`
}

// RewardsToolConfig represents the complete configuration of the rewards tool
type RewardsToolConfig struct {
	Persistence PersistenceConfig `json:"persistence"`
	Server      ServerConfig      `json:"server"`

	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

func DefaultRewardsToolConfig() *RewardsToolConfig {
	return &RewardsToolConfig{
		Persistence: PersistenceConfig{
			Type:    PersistenceTypeMemory,
			DataDir: DefaultDataDir,
		},
		Server: ServerConfig{
			Port:      DefaultPort,
			CacheSize: DefaultCacheSize,
		},
	}
}

func (pc *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch pc.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if pc.DataDir == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataDir"), "dataDir is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDB"), pc.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type,
			[]string{PersistenceTypeMemory.String(), PersistenceTypeBadger.String(), PersistenceTypeRedis.String()}))
	}

	return allErrors
}

// ValidatePersistence validates only the storage section, for commands that do not serve
func (c *RewardsToolConfig) ValidatePersistence() error {
	if allErrors := c.Persistence.validate(field.NewPath("persistence")); len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// Validate validates the full configuration
func (c *RewardsToolConfig) Validate() error {
	allErrors := c.Persistence.validate(field.NewPath("persistence"))

	serverPath := field.NewPath("server")
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(serverPath.Child("port"), c.Server.Port, "must be between 1-65535"))
	}
	if c.Server.CacheSize < 1 {
		allErrors = append(allErrors, field.Invalid(serverPath.Child("cacheSize"), c.Server.CacheSize, "must be positive"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
