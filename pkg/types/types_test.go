package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSideJSON(t *testing.T) {
	data, err := json.Marshal(SideLeft)
	require.NoError(t, err)
	require.Equal(t, `"left"`, string(data))

	var s Side
	require.NoError(t, json.Unmarshal([]byte(`"right"`), &s))
	require.Equal(t, SideRight, s)

	require.Error(t, json.Unmarshal([]byte(`"up"`), &s))
	_, err = json.Marshal(Side(7))
	require.Error(t, err)
}

func TestClaimProofJSON(t *testing.T) {
	cp := &ClaimProof{
		Claim: Claim{
			Index:   3,
			Account: common.HexToAddress("0x0b98718264cA14d0A17C145FfE1e4F3c38a39372"),
			Amount:  uint256.NewInt(1_000_000),
		},
		TreePosition: 1,
		Proof: []ProofEntry{
			{Side: SideLeft, Hash: common.HexToHash("0x01")},
			{Side: SideRight, Hash: common.HexToHash("0x02")},
		},
	}

	data, err := json.Marshal(cp)
	require.NoError(t, err)
	require.Contains(t, string(data), `"amount":"0xf4240"`)

	var decoded ClaimProof
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, cp.Claim.Index, decoded.Claim.Index)
	require.Equal(t, cp.Claim.Account, decoded.Claim.Account)
	require.True(t, cp.Claim.Amount.Eq(decoded.Claim.Amount))
	require.Equal(t, cp.Proof, decoded.Proof)
	require.Equal(t, []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}, decoded.Hashes())
}

func TestClaimProofJSON_EmptyProof(t *testing.T) {
	cp := ClaimProof{Claim: Claim{Amount: uint256.NewInt(0)}}
	data, err := json.Marshal(cp)
	require.NoError(t, err)
	require.Contains(t, string(data), `"proof":[]`)
}

func TestDistributionLookups(t *testing.T) {
	a := common.HexToAddress("0x000000000000000000000000000000000000000a")
	b := common.HexToAddress("0x000000000000000000000000000000000000000b")
	d := &Distribution{
		Proofs: []*ClaimProof{
			{Claim: Claim{Index: 0, Account: a, Amount: uint256.NewInt(1)}},
			{Claim: Claim{Index: 1, Account: b, Amount: uint256.NewInt(2)}},
		},
	}

	require.Equal(t, uint64(1), d.ProofForAccount(b).Claim.Index)
	require.Nil(t, d.ProofForAccount(common.Address{}))
	require.Equal(t, a, d.ProofForIndex(0).Claim.Account)
	require.Nil(t, d.ProofForIndex(9))
}
