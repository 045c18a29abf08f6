package persistence

import (
	"testing"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalDistribution_RoundTrip(t *testing.T) {
	original := &types.Distribution{
		ID:         "week-12",
		MerkleRoot: common.HexToHash("0x95f9a9f4184a156cf93aae951de39a138b7bf70de84a5ac3a7c04a6f5c73901f"),
		Proofs: []*types.ClaimProof{
			{
				Claim: types.Claim{
					Index:   1,
					Account: common.HexToAddress("0x000000000000000000000000000000000000000b"),
					Amount:  uint256.NewInt(200),
				},
				TreePosition: 0,
				Proof: []types.ProofEntry{
					{Side: types.SideRight, Hash: common.HexToHash("0x01")},
				},
			},
		},
		CreatedAt: 1700000000,
	}

	data, err := MarshalDistribution(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalDistribution(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.MerkleRoot, restored.MerkleRoot)
	assert.Equal(t, original.CreatedAt, restored.CreatedAt)
	require.Len(t, restored.Proofs, 1)
	assert.Equal(t, original.Proofs[0].Claim.Account, restored.Proofs[0].Claim.Account)
	assert.True(t, original.Proofs[0].Claim.Amount.Eq(restored.Proofs[0].Claim.Amount))
	assert.Equal(t, original.Proofs[0].Proof, restored.Proofs[0].Proof)
}

func TestMarshalDistribution_NilInput(t *testing.T) {
	_, err := MarshalDistribution(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil Distribution")
}

func TestUnmarshalDistribution_InvalidJSON(t *testing.T) {
	_, err := UnmarshalDistribution([]byte(`{"id": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestUnmarshal_EmptyData(t *testing.T) {
	_, err := UnmarshalDistribution(nil)
	require.Error(t, err)

	_, err = UnmarshalDistributorState([]byte{})
	require.Error(t, err)

	_, err = UnmarshalVaultState(nil)
	require.Error(t, err)
}

func TestMarshalUnmarshalDistributorState_RoundTrip(t *testing.T) {
	original := &DistributorState{
		ID:         "0xa9b08B4CeEC1EF29EdEC7F9C94583270337D6416",
		MerkleRoot: "0x36f65d4a7093b5c8db44b13a6e571f7b735419485b4f416fd8fca2ed3322d542",
		Week:       3,
		Frozen:     true,
		Deadline:   1800000000,
		Claimed: map[uint64]map[uint64]string{
			3: {0: "0x5", 4: "0x8000000000000000000000000000000000000000000000000000000000000000"},
		},
		UpdatedAt: 1700000000,
	}

	data, err := MarshalDistributorState(original)
	require.NoError(t, err)

	restored, err := UnmarshalDistributorState(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestMarshalUnmarshalVaultState_RoundTrip(t *testing.T) {
	original := &VaultState{
		ID:                      "uCRV",
		Underlying:              "0x9D0464996170c6B9e75eED71c68B99dDEDf279e8",
		Strategy:                "0x00000000000000000000000000000000000000aa",
		Platform:                "0x00000000000000000000000000000000000000bb",
		PlatformFeeBps:          1200,
		CallIncentiveBps:        500,
		WithdrawalPenaltyBps:    100,
		MaxPlatformFeeBps:       2000,
		MaxCallIncentiveBps:     500,
		MaxWithdrawalPenaltyBps: 150,
		HarvestPermissioned:     true,
		Harvesters:              []string{"0x00000000000000000000000000000000000000cc"},
		TotalUnderlying:         "0x3e8",
		TotalSupply:             "0x3e8",
		Balances:                map[string]string{"0x00000000000000000000000000000000000000dd": "0x3e8"},
		UpdatedAt:               1700000000,
	}

	data, err := MarshalVaultState(original)
	require.NoError(t, err)

	restored, err := UnmarshalVaultState(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestMarshalState_NilInput(t *testing.T) {
	_, err := MarshalDistributorState(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil DistributorState")

	_, err = MarshalVaultState(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil VaultState")
}
