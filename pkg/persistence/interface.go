package persistence

import (
	"errors"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("persistence layer is closed")

// IRewardsPersistence persists reward distributions and the state of the
// distributors and vaults built on top of them.
// All implementations must be thread-safe.
//
// The interface supports:
// - Distribution management (save, load, list, delete)
// - Distributor state (root, week, frozen flag, claimed bitmap)
// - Vault state (fee policy, share ledger)
// - Lifecycle management (close, health check)
type IRewardsPersistence interface {
	// Distribution Management

	// SaveDistribution persists a distribution indexed by its ID.
	// Overwrites any existing distribution with the same ID.
	SaveDistribution(dist *types.Distribution) error

	// LoadDistribution retrieves a distribution by ID.
	// Returns nil if it doesn't exist, error only on storage failure.
	LoadDistribution(id string) (*types.Distribution, error)

	// ListDistributions returns all distributions sorted by CreatedAt, then ID.
	// Returns empty slice if none exist.
	ListDistributions() ([]*types.Distribution, error)

	// DeleteDistribution removes a distribution.
	// Idempotent - returns nil if it doesn't exist.
	DeleteDistribution(id string) error

	// Distributor State

	// SaveDistributorState overwrites the state of the distributor with state.ID.
	SaveDistributorState(state *DistributorState) error

	// LoadDistributorState returns nil if the distributor was never saved.
	LoadDistributorState(id string) (*DistributorState, error)

	// Vault State

	// SaveVaultState overwrites the state of the vault with state.ID.
	SaveVaultState(state *VaultState) error

	// LoadVaultState returns nil if the vault was never saved.
	LoadVaultState(id string) (*VaultState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
