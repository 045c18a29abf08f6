package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixDistribution = "distribution:"
	keyPrefixDistributor  = "distributor:"
	keyPrefixVault        = "vault:"
	keySchemaVersion      = "metadata:schema_version"
	currentSchemaVersion  = "v1"
)

// BadgerPersistence is a disk-backed persistence implementation using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IRewardsPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens a Badger database at dataPath with SyncWrites enabled.
// A background goroutine is started for value log garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerPersistence) set(key string, data []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get returns nil data when the key does not exist
func (b *BadgerPersistence) get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	return data, err
}

// SaveDistribution persists a distribution
func (b *BadgerPersistence) SaveDistribution(dist *types.Distribution) error {
	if dist == nil {
		return fmt.Errorf("cannot save nil Distribution")
	}
	if dist.ID == "" {
		return fmt.Errorf("cannot save Distribution without an ID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalDistribution(dist)
	if err != nil {
		return fmt.Errorf("failed to marshal Distribution: %w", err)
	}

	return b.set(keyPrefixDistribution+dist.ID, data)
}

// LoadDistribution retrieves a distribution
func (b *BadgerPersistence) LoadDistribution(id string) (*types.Distribution, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixDistribution + id)
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
func (b *BadgerPersistence) ListDistributions() ([]*types.Distribution, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	dists := []*types.Distribution{}

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixDistribution)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			dist, err := persistence.UnmarshalDistribution(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal Distribution, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			dists = append(dists, dist)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list Distributions: %w", err)
	}

	persistence.SortDistributions(dists)

	return dists, nil
}

// DeleteDistribution removes a distribution
func (b *BadgerPersistence) DeleteDistribution(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPrefixDistribution + id))
	})
}

// SaveDistributorState persists distributor state
func (b *BadgerPersistence) SaveDistributorState(state *persistence.DistributorState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil DistributorState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalDistributorState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal DistributorState: %w", err)
	}

	return b.set(keyPrefixDistributor+state.ID, data)
}

// LoadDistributorState retrieves distributor state
func (b *BadgerPersistence) LoadDistributorState(id string) (*persistence.DistributorState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixDistributor + id)
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
func (b *BadgerPersistence) SaveVaultState(state *persistence.VaultState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil VaultState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalVaultState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal VaultState: %w", err)
	}

	return b.set(keyPrefixVault+state.ID, data)
}

// LoadVaultState retrieves vault state
func (b *BadgerPersistence) LoadVaultState(id string) (*persistence.VaultState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixVault + id)
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
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
