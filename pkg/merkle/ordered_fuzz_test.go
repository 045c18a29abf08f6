package merkle

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// deriveClaims deterministically maps a seed to n claims. Every third claim
// reuses the previous account so duplicate accounts get exercised.
func deriveClaims(seed []byte, n int) []types.ClaimInput {
	claims := make([]types.ClaimInput, n)
	for i := range claims {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], uint64(i))
		h := crypto.Keccak256(seed, ctr[:])

		account := common.BytesToAddress(h[:20])
		if i > 0 && i%3 == 0 {
			account = claims[i-1].Account
		}
		claims[i] = types.ClaimInput{
			Account: account,
			Amount:  new(uint256.Int).SetBytes(h[20:]),
		}
	}
	return claims
}

func FuzzOrderedMerkleTreeProofs(f *testing.F) {
	f.Add([]byte("seed"), 1)
	f.Add([]byte("pair"), 2)
	f.Add([]byte("odd"), 5)
	f.Add([]byte("power-of-two"), 8)
	f.Add([]byte("carry"), 13)

	f.Fuzz(func(t *testing.T, seed []byte, n int) {
		if n < 1 {
			n = 1
		}
		if n > 64 {
			n = 64
		}

		tree, err := NewOrderedMerkleTree(deriveClaims(seed, n))
		require.NoError(t, err)
		require.Equal(t, n, tree.Len())

		proofs, err := tree.Proofs(context.Background())
		require.NoError(t, err)
		require.Len(t, proofs, n)

		root := tree.Root()
		for i, cp := range proofs {
			require.Equal(t, uint64(i), cp.Claim.Index)
			require.True(t, VerifyClaimProof(cp, root), "claim %d", i)

			// a different amount must not verify with the same path
			bumped := new(uint256.Int).AddUint64(cp.Claim.Amount, 1)
			leaf := HashClaim(cp.Claim.Index, cp.Claim.Account, bumped)
			require.False(t, VerifySortedProof(cp.Hashes(), leaf, root), "claim %d", i)
		}
	})
}
