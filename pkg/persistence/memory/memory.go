package memory

import (
	"fmt"
	"os"
	"sync"

	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IRewardsPersistence.
// This implementation is intended for TESTING and one-shot CLI runs.
//
// All data is stored in memory and will be lost when the process exits.
// Values are kept in their serialized form, so callers never share memory
// with the store.
type MemoryPersistence struct {
	mu sync.RWMutex

	// id -> serialized Distribution
	distributions map[string][]byte

	// id -> serialized state
	distributors map[string][]byte
	vaults       map[string][]byte

	closed bool
}

var _ persistence.IRewardsPersistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning to stderr since nothing survives a restart.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Fprintln(os.Stderr, "⚠️  WARNING: Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART")
	fmt.Fprintln(os.Stderr, "⚠️  Set UNION_PERSISTENCE_TYPE=badger or redis to keep distributions")

	return &MemoryPersistence{
		distributions: make(map[string][]byte),
		distributors:  make(map[string][]byte),
		vaults:        make(map[string][]byte),
	}
}

// SaveDistribution persists a distribution.
func (m *MemoryPersistence) SaveDistribution(dist *types.Distribution) error {
	if dist == nil {
		return fmt.Errorf("cannot save nil Distribution")
	}
	if dist.ID == "" {
		return fmt.Errorf("cannot save Distribution without an ID")
	}

	data, err := persistence.MarshalDistribution(dist)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.distributions[dist.ID] = data
	return nil
}

// LoadDistribution retrieves a distribution by ID.
func (m *MemoryPersistence) LoadDistribution(id string) (*types.Distribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.distributions[id]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return persistence.UnmarshalDistribution(data)
}

// ListDistributions returns all distributions sorted by creation time.
func (m *MemoryPersistence) ListDistributions() ([]*types.Distribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*types.Distribution, 0, len(m.distributions))
	for _, data := range m.distributions {
		dist, err := persistence.UnmarshalDistribution(data)
		if err != nil {
			return nil, err
		}
		result = append(result, dist)
	}
	persistence.SortDistributions(result)

	return result, nil
}

// DeleteDistribution removes a distribution.
func (m *MemoryPersistence) DeleteDistribution(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.distributions, id)
	return nil
}

// SaveDistributorState persists distributor state.
func (m *MemoryPersistence) SaveDistributorState(state *persistence.DistributorState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil DistributorState")
	}

	data, err := persistence.MarshalDistributorState(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.distributors[state.ID] = data
	return nil
}

// LoadDistributorState retrieves distributor state.
func (m *MemoryPersistence) LoadDistributorState(id string) (*persistence.DistributorState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.distributors[id]
	if !exists {
		return nil, nil
	}

	return persistence.UnmarshalDistributorState(data)
}

// SaveVaultState persists vault state.
func (m *MemoryPersistence) SaveVaultState(state *persistence.VaultState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil VaultState")
	}

	data, err := persistence.MarshalVaultState(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.vaults[state.ID] = data
	return nil
}

// LoadVaultState retrieves vault state.
func (m *MemoryPersistence) LoadVaultState(id string) (*persistence.VaultState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.vaults[id]
	if !exists {
		return nil, nil
	}

	return persistence.UnmarshalVaultState(data)
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}

