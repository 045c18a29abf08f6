package merkle

import (
	"context"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

var (
	accountA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	accountB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	accountC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

// createTestClaims creates n claims with random accounts and amounts
func createTestClaims(n int) []types.ClaimInput {
	claims := make([]types.ClaimInput, n)
	for i := range claims {
		var addr common.Address
		_, _ = rand.Read(addr[:])
		amount, _ := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
		claims[i] = types.ClaimInput{Account: addr, Amount: uint256.MustFromBig(amount)}
	}
	return claims
}

func reversed(in []types.ClaimInput) []types.ClaimInput {
	out := make([]types.ClaimInput, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestOrderedMerkleTree_Empty(t *testing.T) {
	tree, err := NewOrderedMerkleTree(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)
}

func TestOrderedMerkleTree_SingleClaim(t *testing.T) {
	tree, err := NewOrderedMerkleTree([]types.ClaimInput{{Account: accountA, Amount: uint256.NewInt(100)}})
	require.NoError(t, err)

	require.Equal(t, common.Hash(HashClaim(0, accountA, uint256.NewInt(100))), tree.Root())

	proof, err := tree.ProofFor(accountA)
	require.NoError(t, err)
	require.NotNil(t, proof)
	require.Equal(t, uint64(0), proof.Claim.Index)
	require.Empty(t, proof.Proof)
	require.True(t, VerifyClaimProof(proof, tree.Root()))
}

func TestOrderedMerkleTree_PermutedInput(t *testing.T) {
	t1, err := NewOrderedMerkleTree([]types.ClaimInput{
		{Account: accountA, Amount: uint256.NewInt(100)},
		{Account: accountB, Amount: uint256.NewInt(200)},
	})
	require.NoError(t, err)

	t2, err := NewOrderedMerkleTree([]types.ClaimInput{
		{Account: accountB, Amount: uint256.NewInt(200)},
		{Account: accountA, Amount: uint256.NewInt(100)},
	})
	require.NoError(t, err)

	require.Equal(t, t1.Root(), t2.Root())
	require.Equal(t, common.HexToHash("0x95f9a9f4184a156cf93aae951de39a138b7bf70de84a5ac3a7c04a6f5c73901f"), t1.Root())
}

// TestOrderedMerkleTree_KnownVectors pins the layout produced by the python
// tooling the distributor contracts were tested with.
func TestOrderedMerkleTree_KnownVectors(t *testing.T) {
	t.Run("Three claims", func(t *testing.T) {
		tree, err := NewOrderedMerkleTree([]types.ClaimInput{
			{Account: accountC, Amount: uint256.NewInt(300)},
			{Account: accountA, Amount: uint256.NewInt(100)},
			{Account: accountB, Amount: uint256.NewInt(200)},
		})
		require.NoError(t, err)
		require.Equal(t, common.HexToHash("0x36f65d4a7093b5c8db44b13a6e571f7b735419485b4f416fd8fca2ed3322d542"), tree.Root())

		proof, err := tree.ProofFor(accountC)
		require.NoError(t, err)
		require.Equal(t, uint64(2), proof.Claim.Index)
		require.Equal(t, []common.Hash{
			common.HexToHash("0x95f9a9f4184a156cf93aae951de39a138b7bf70de84a5ac3a7c04a6f5c73901f"),
		}, proof.Hashes())

		proof, err = tree.ProofFor(accountA)
		require.NoError(t, err)
		require.Equal(t, []common.Hash{
			common.HexToHash("0x8da313bd3f511483b874415526f99988b8e7a8a4abe95b9c942f504aa10f565b"),
			common.HexToHash("0xc23d94d39dc62a0c07c08f00850ce4499f18f24a538b776f9e2187280f684ad6"),
		}, proof.Hashes())
	})

	t.Run("Five claims", func(t *testing.T) {
		oneEther, _ := uint256.FromDecimal("1000000000000000000")
		halfEther, _ := uint256.FromDecimal("500000000000000000")
		tree, err := NewOrderedMerkleTree([]types.ClaimInput{
			{Account: common.HexToAddress("0x0b98718264cA14d0A17C145FfE1e4F3c38a39372"), Amount: oneEther},
			{Account: common.HexToAddress("0x6ED9c171E02De08aaEDF0Fc1D589923D807061D6"), Amount: halfEther},
			{Account: common.HexToAddress("0x2251AF9804d0A1A04e8e0e7A1FBB83F4D7423f9e"), Amount: uint256.NewInt(123456789)},
			{Account: common.HexToAddress("0x616e8BfA43F920657B3497DBf40D6b1A02D4608d"), Amount: uint256.NewInt(0)},
			{Account: common.HexToAddress("0x5c6Ee304399DBdB9C8Ef030aB642B10820DB8F56"), Amount: uint256.NewInt(42)},
		})
		require.NoError(t, err)
		require.Equal(t, common.HexToHash("0xd292f5d8991e1ff5da2bbdaf13e9bb3c72a190f6b446ea1a822ee8e3b2e1fdd1"), tree.Root())
		require.Equal(t, []int{1, 0, 4, 3, 2}, tree.LeafOrder())

		// index is the account-sorted position
		claims := tree.Claims()
		require.Equal(t, common.HexToAddress("0x0b98718264cA14d0A17C145FfE1e4F3c38a39372"), claims[0].Account)
		require.Equal(t, common.HexToAddress("0x6ED9c171E02De08aaEDF0Fc1D589923D807061D6"), claims[4].Account)

		proof, err := tree.ProofForIndex(2)
		require.NoError(t, err)
		require.Equal(t, 4, proof.TreePosition)
		require.Equal(t, uint64(42), proof.Claim.Amount.Uint64())
		require.Equal(t, []common.Hash{
			common.HexToHash("0xa14974b8cba03223b931f7f8ee6c465e0366ac591801056191fcd30473811ba3"),
		}, proof.Hashes())

		proof, err = tree.ProofForIndex(3)
		require.NoError(t, err)
		require.Equal(t, 3, proof.TreePosition)
		require.Equal(t, []common.Hash{
			common.HexToHash("0x769f6312a7c883417ef3012c00135a883d006810893cc789d096a6ca613075bb"),
			common.HexToHash("0x0af49de4da36a93570400336043a84458281c10aac91bf8fd88ccba7d063f9e3"),
			common.HexToHash("0xf1ce550ecd26b9474853b135583ac906bebb60007c33ecbf572b8c7c11153c6f"),
		}, proof.Hashes())
		require.True(t, VerifyClaimProof(proof, tree.Root()))
	})
}

func TestOrderedMerkleTree_AllProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13, 64, 100, 257} {
		claims := createTestClaims(n)
		tree, err := NewOrderedMerkleTree(claims)
		require.NoError(t, err)

		proofs, err := tree.Proofs(context.Background())
		require.NoError(t, err)
		require.Len(t, proofs, n)

		for i, p := range proofs {
			require.Equal(t, uint64(i), p.Claim.Index)
			require.True(t, VerifyClaimProof(p, tree.Root()), "proof %d of %d should verify", i, n)
		}
	}
}

func TestOrderedMerkleTree_ProofDoesNotTransfer(t *testing.T) {
	tree, err := NewOrderedMerkleTree(createTestClaims(16))
	require.NoError(t, err)

	proofs, err := tree.Proofs(context.Background())
	require.NoError(t, err)

	for i := range proofs {
		other := proofs[(i+1)%len(proofs)]
		wrongLeaf := HashClaimStruct(other.Claim)
		require.False(t, VerifyProof(proofs[i].Proof, wrongLeaf, tree.Root()))
		require.False(t, VerifySortedProof(proofs[i].Hashes(), wrongLeaf, tree.Root()))
	}

	// Same proof, same index, different account or amount
	p := proofs[0]
	tampered := p.Claim
	tampered.Account = common.HexToAddress("0xdead")
	require.False(t, VerifySortedProof(p.Hashes(), HashClaimStruct(tampered), tree.Root()))

	tampered = p.Claim
	tampered.Amount = new(uint256.Int).AddUint64(p.Claim.Amount, 1)
	require.False(t, VerifySortedProof(p.Hashes(), HashClaimStruct(tampered), tree.Root()))
}

func TestOrderedMerkleTree_Determinism(t *testing.T) {
	claims := createTestClaims(25)

	t1, err := NewOrderedMerkleTree(claims)
	require.NoError(t, err)
	t2, err := NewOrderedMerkleTree(claims)
	require.NoError(t, err)
	t3, err := NewOrderedMerkleTree(reversed(claims))
	require.NoError(t, err)

	require.Equal(t, t1.Root(), t2.Root())
	require.Equal(t, t1.Root(), t3.Root())
	require.Equal(t, t1.LeafOrder(), t3.LeafOrder())

	p1, err := t1.Proofs(context.Background())
	require.NoError(t, err)
	p2, err := t2.Proofs(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(p1), len(p2))
	for i := range p1 {
		require.Equal(t, p1[i].Claim.Index, p2[i].Claim.Index)
		require.Equal(t, p1[i].Claim.Account, p2[i].Claim.Account)
		require.True(t, p1[i].Claim.Amount.Eq(p2[i].Claim.Amount))
		require.Equal(t, p1[i].Proof, p2[i].Proof)
	}
}

func TestOrderedMerkleTree_DuplicateAccounts(t *testing.T) {
	claims := []types.ClaimInput{
		{Account: accountA, Amount: uint256.NewInt(5)},
		{Account: accountB, Amount: uint256.NewInt(7)},
		{Account: accountA, Amount: uint256.NewInt(3)},
	}
	tree, err := NewOrderedMerkleTree(claims)
	require.NoError(t, err)
	require.Equal(t, 3, tree.Len())

	// Duplicates are ordered by amount, so input order does not matter
	swapped, err := NewOrderedMerkleTree([]types.ClaimInput{claims[2], claims[1], claims[0]})
	require.NoError(t, err)
	require.Equal(t, tree.Root(), swapped.Root())

	// ProofFor returns the first entry for the account
	proof, err := tree.ProofFor(accountA)
	require.NoError(t, err)
	require.Equal(t, uint64(0), proof.Claim.Index)
	require.Equal(t, uint64(3), proof.Claim.Amount.Uint64())

	proof, err = tree.ProofForIndex(1)
	require.NoError(t, err)
	require.Equal(t, accountA, proof.Claim.Account)
	require.True(t, VerifyClaimProof(proof, tree.Root()))
}

func TestOrderedMerkleTree_Lookups(t *testing.T) {
	tree, err := NewOrderedMerkleTree(createTestClaims(4))
	require.NoError(t, err)

	proof, err := tree.ProofFor(common.HexToAddress("0x1234"))
	require.NoError(t, err)
	require.Nil(t, proof)

	_, err = tree.ProofForIndex(4)
	require.Error(t, err)

	_, err = tree.TreePosition(100)
	require.Error(t, err)

	// Returned claims are copies
	claims := tree.Claims()
	claims[0].Amount.SetUint64(999_999_999_999)
	again := tree.Claims()
	require.False(t, claims[0].Amount.Eq(again[0].Amount))
}

func TestOrderedMerkleTree_ZeroAndNilAmounts(t *testing.T) {
	tree, err := NewOrderedMerkleTree([]types.ClaimInput{
		{Account: accountA, Amount: nil},
		{Account: accountB, Amount: uint256.NewInt(0)},
	})
	require.NoError(t, err)

	proof, err := tree.ProofFor(accountA)
	require.NoError(t, err)
	require.True(t, proof.Claim.Amount.IsZero())
	require.True(t, VerifyClaimProof(proof, tree.Root()))
}

func TestOrderedMerkleTree_ProofsCancelled(t *testing.T) {
	tree, err := NewOrderedMerkleTree(createTestClaims(32))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tree.Proofs(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrderedMerkleTree_Distribution(t *testing.T) {
	tree, err := NewOrderedMerkleTree(createTestClaims(6))
	require.NoError(t, err)

	dist, err := tree.Distribution(context.Background(), "cvxprisma")
	require.NoError(t, err)
	require.Equal(t, "cvxprisma", dist.ID)
	require.Equal(t, tree.Root(), dist.MerkleRoot)
	require.Len(t, dist.Proofs, 6)
	require.NotZero(t, dist.CreatedAt)
}

func TestSortClaimInputsDoesNotMutate(t *testing.T) {
	original := []types.ClaimInput{
		{Account: accountC, Amount: uint256.NewInt(1)},
		{Account: accountA, Amount: uint256.NewInt(2)},
		{Account: accountB, Amount: uint256.NewInt(3)},
	}
	sorted := SortClaimInputs(original)

	require.Equal(t, []common.Address{accountA, accountB, accountC},
		[]common.Address{sorted[0].Account, sorted[1].Account, sorted[2].Account})
	require.Equal(t, accountC, original[0].Account)
}
