// Package persistencetest holds the behaviour every IRewardsPersistence backend must share.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleDistribution returns a small distribution with two claims
func SampleDistribution(id string, createdAt int64) *types.Distribution {
	return &types.Distribution{
		ID:         id,
		MerkleRoot: common.HexToHash("0x95f9a9f4184a156cf93aae951de39a138b7bf70de84a5ac3a7c04a6f5c73901f"),
		Proofs: []*types.ClaimProof{
			{
				Claim: types.Claim{
					Index:   0,
					Account: common.HexToAddress("0x000000000000000000000000000000000000000a"),
					Amount:  uint256.NewInt(100),
				},
				TreePosition: 1,
				Proof:        []types.ProofEntry{{Side: types.SideLeft, Hash: common.HexToHash("0x02")}},
			},
			{
				Claim: types.Claim{
					Index:   1,
					Account: common.HexToAddress("0x000000000000000000000000000000000000000b"),
					Amount:  uint256.NewInt(200),
				},
				TreePosition: 0,
				Proof:        []types.ProofEntry{{Side: types.SideRight, Hash: common.HexToHash("0x01")}},
			},
		},
		CreatedAt: createdAt,
	}
}

// SampleDistributorState returns a frozen distributor with a few claimed bits
func SampleDistributorState(id string) *persistence.DistributorState {
	return &persistence.DistributorState{
		ID:         id,
		MerkleRoot: "0x95f9a9f4184a156cf93aae951de39a138b7bf70de84a5ac3a7c04a6f5c73901f",
		Week:       2,
		Frozen:     true,
		Claimed:    map[uint64]map[uint64]string{2: {0: "0x3"}},
		UpdatedAt:  1700000000,
	}
}

// SampleVaultState returns a vault holding one depositor
func SampleVaultState(id string) *persistence.VaultState {
	return &persistence.VaultState{
		ID:                      id,
		Underlying:              "0x9D0464996170c6B9e75eED71c68B99dDEDf279e8",
		Strategy:                "0x00000000000000000000000000000000000000aa",
		PlatformFeeBps:          1200,
		CallIncentiveBps:        500,
		WithdrawalPenaltyBps:    100,
		MaxPlatformFeeBps:       2000,
		MaxCallIncentiveBps:     500,
		MaxWithdrawalPenaltyBps: 150,
		Harvesters:              []string{},
		TotalUnderlying:         "0x3e8",
		TotalSupply:             "0x3e8",
		Balances:                map[string]string{"0x00000000000000000000000000000000000000dd": "0x3e8"},
		UpdatedAt:               1700000000,
	}
}

// Run exercises a backend. newStore must return a fresh, empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) persistence.IRewardsPersistence) {
	t.Run("SaveAndLoadDistribution", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		dist := SampleDistribution("dist-a", 100)
		require.NoError(t, s.SaveDistribution(dist))

		loaded, err := s.LoadDistribution("dist-a")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, dist.ID, loaded.ID)
		assert.Equal(t, dist.MerkleRoot, loaded.MerkleRoot)
		require.Len(t, loaded.Proofs, 2)
		assert.True(t, loaded.Proofs[1].Claim.Amount.Eq(uint256.NewInt(200)))
		assert.Equal(t, dist.Proofs[0].Proof, loaded.Proofs[0].Proof)
	})

	t.Run("LoadDistributionNotFound", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		loaded, err := s.LoadDistribution("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveNilOrAnonymousDistribution", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		require.Error(t, s.SaveDistribution(nil))
		require.Error(t, s.SaveDistribution(&types.Distribution{}))
	})

	t.Run("OverwriteDistribution", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		require.NoError(t, s.SaveDistribution(SampleDistribution("dist-a", 100)))
		updated := SampleDistribution("dist-a", 200)
		updated.Proofs = updated.Proofs[:1]
		require.NoError(t, s.SaveDistribution(updated))

		loaded, err := s.LoadDistribution("dist-a")
		require.NoError(t, err)
		assert.Equal(t, int64(200), loaded.CreatedAt)
		assert.Len(t, loaded.Proofs, 1)

		all, err := s.ListDistributions()
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ListDistributionsSorted", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		empty, err := s.ListDistributions()
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		require.NoError(t, s.SaveDistribution(SampleDistribution("c", 300)))
		require.NoError(t, s.SaveDistribution(SampleDistribution("b", 100)))
		require.NoError(t, s.SaveDistribution(SampleDistribution("a", 100)))

		all, err := s.ListDistributions()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].ID)
		assert.Equal(t, "b", all[1].ID)
		assert.Equal(t, "c", all[2].ID)
	})

	t.Run("DeleteDistribution", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		require.NoError(t, s.SaveDistribution(SampleDistribution("dist-a", 100)))
		require.NoError(t, s.DeleteDistribution("dist-a"))

		loaded, err := s.LoadDistribution("dist-a")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		all, err := s.ListDistributions()
		require.NoError(t, err)
		assert.Empty(t, all)

		// Idempotent
		require.NoError(t, s.DeleteDistribution("dist-a"))
	})

	t.Run("DistributorState", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		loaded, err := s.LoadDistributorState("0xdistributor")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		state := SampleDistributorState("0xdistributor")
		require.NoError(t, s.SaveDistributorState(state))

		loaded, err = s.LoadDistributorState("0xdistributor")
		require.NoError(t, err)
		assert.Equal(t, state, loaded)

		state.Week = 3
		state.Frozen = false
		require.NoError(t, s.SaveDistributorState(state))
		loaded, err = s.LoadDistributorState("0xdistributor")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), loaded.Week)
		assert.False(t, loaded.Frozen)

		require.Error(t, s.SaveDistributorState(nil))
	})

	t.Run("VaultState", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		loaded, err := s.LoadVaultState("uCRV")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		state := SampleVaultState("uCRV")
		require.NoError(t, s.SaveVaultState(state))

		loaded, err = s.LoadVaultState("uCRV")
		require.NoError(t, err)
		assert.Equal(t, state, loaded)

		require.Error(t, s.SaveVaultState(nil))
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		state := SampleVaultState("uCRV")
		require.NoError(t, s.SaveVaultState(state))
		state.Balances["0x00000000000000000000000000000000000000dd"] = "0x0"

		loaded, err := s.LoadVaultState("uCRV")
		require.NoError(t, err)
		assert.Equal(t, "0x3e8", loaded.Balances["0x00000000000000000000000000000000000000dd"])

		loaded.TotalSupply = "0x0"
		again, err := s.LoadVaultState("uCRV")
		require.NoError(t, err)
		assert.Equal(t, "0x3e8", again.TotalSupply)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("dist-%d", i)
				assert.NoError(t, s.SaveDistribution(SampleDistribution(id, int64(i))))
				_, err := s.LoadDistribution(id)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		all, err := s.ListDistributions()
		require.NoError(t, err)
		assert.Len(t, all, 10)
	})

	t.Run("OperationsAfterClose", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.HealthCheck())
		require.NoError(t, s.Close())
		// Idempotent
		require.NoError(t, s.Close())

		require.ErrorIs(t, s.SaveDistribution(SampleDistribution("x", 1)), persistence.ErrClosed)
		_, err := s.LoadDistribution("x")
		require.ErrorIs(t, err, persistence.ErrClosed)
		_, err = s.ListDistributions()
		require.ErrorIs(t, err, persistence.ErrClosed)
		require.ErrorIs(t, s.DeleteDistribution("x"), persistence.ErrClosed)
		require.ErrorIs(t, s.SaveDistributorState(SampleDistributorState("d")), persistence.ErrClosed)
		_, err = s.LoadDistributorState("d")
		require.ErrorIs(t, err, persistence.ErrClosed)
		require.ErrorIs(t, s.SaveVaultState(SampleVaultState("v")), persistence.ErrClosed)
		_, err = s.LoadVaultState("v")
		require.ErrorIs(t, err, persistence.ErrClosed)
		require.ErrorIs(t, s.HealthCheck(), persistence.ErrClosed)
	})
}
