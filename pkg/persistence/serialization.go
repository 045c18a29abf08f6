package persistence

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// MarshalDistribution serializes a Distribution to JSON bytes.
func MarshalDistribution(dist *types.Distribution) ([]byte, error) {
	if dist == nil {
		return nil, fmt.Errorf("cannot marshal nil Distribution")
	}

	data, err := json.Marshal(dist)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Distribution to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalDistribution deserializes a Distribution from JSON bytes.
func UnmarshalDistribution(data []byte) (*types.Distribution, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var dist types.Distribution
	if err := json.Unmarshal(data, &dist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Distribution: %w", err)
	}

	return &dist, nil
}

// MarshalDistributorState serializes DistributorState to JSON bytes.
func MarshalDistributorState(ds *DistributorState) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("cannot marshal nil DistributorState")
	}

	return json.Marshal(ds)
}

// UnmarshalDistributorState deserializes DistributorState from JSON bytes.
func UnmarshalDistributorState(data []byte) (*DistributorState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ds DistributorState
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to DistributorState: %w", err)
	}

	return &ds, nil
}

// MarshalVaultState serializes VaultState to JSON bytes.
func MarshalVaultState(vs *VaultState) ([]byte, error) {
	if vs == nil {
		return nil, fmt.Errorf("cannot marshal nil VaultState")
	}

	return json.Marshal(vs)
}

// UnmarshalVaultState deserializes VaultState from JSON bytes.
func UnmarshalVaultState(data []byte) (*VaultState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var vs VaultState
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to VaultState: %w", err)
	}

	return &vs, nil
}

// SortDistributions orders distributions by CreatedAt, then ID.
func SortDistributions(dists []*types.Distribution) {
	sort.Slice(dists, func(i, j int) bool {
		if dists[i].CreatedAt != dists[j].CreatedAt {
			return dists[i].CreatedAt < dists[j].CreatedAt
		}
		return dists[i].ID < dists[j].ID
	})
}
