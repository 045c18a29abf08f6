package merkle

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// OrderedMerkleTree is the claim tree consumed by the distributor contracts.
//
// Construction sorts claims by account bytes and uses that sorted position as each
// claim's index. Leaves are then sorted by their own hash to decide placement in
// level 0. Both orderings are kept: Claims() is in index order and LeafOrder()
// maps tree positions back to claim indices.
type OrderedMerkleTree struct {
	claims []types.Claim

	// leafOrder[treePosition] = claim index
	leafOrder []int

	// positions[claim index] = treePosition
	positions []int

	tree *MerkleTree
}

// NewOrderedMerkleTree builds the tree for the given entitlements. Duplicate
// accounts and zero amounts are accepted; each input produces its own leaf.
func NewOrderedMerkleTree(inputs []types.ClaimInput) (*OrderedMerkleTree, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	sorted := SortClaimInputs(inputs)

	claims := make([]types.Claim, len(sorted))
	leaves := make([][32]byte, len(sorted))
	for i, in := range sorted {
		claims[i] = types.Claim{
			Index:   uint64(i),
			Account: in.Account,
			Amount:  cloneAmount(in),
		}
		leaves[i] = HashClaimStruct(claims[i])
	}

	leafOrder := make([]int, len(leaves))
	for i := range leafOrder {
		leafOrder[i] = i
	}
	sort.SliceStable(leafOrder, func(a, b int) bool {
		return bytes.Compare(leaves[leafOrder[a]][:], leaves[leafOrder[b]][:]) < 0
	})

	treeLeaves := make([][32]byte, len(leaves))
	positions := make([]int, len(leaves))
	for pos, idx := range leafOrder {
		treeLeaves[pos] = leaves[idx]
		positions[idx] = pos
	}

	tree, err := BuildMerkleTree(treeLeaves)
	if err != nil {
		return nil, fmt.Errorf("failed to build claim tree: %w", err)
	}

	return &OrderedMerkleTree{
		claims:    claims,
		leafOrder: leafOrder,
		positions: positions,
		tree:      tree,
	}, nil
}

// SortClaimInputs returns a copy of inputs sorted by raw account bytes.
// Entries for the same account are ordered by amount so the result does not
// depend on input order.
func SortClaimInputs(inputs []types.ClaimInput) []types.ClaimInput {
	sorted := make([]types.ClaimInput, len(inputs))
	copy(sorted, inputs)

	sort.SliceStable(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Account[:], sorted[j].Account[:]); c != 0 {
			return c < 0
		}
		return amountOf(sorted[i]).Lt(amountOf(sorted[j]))
	})

	return sorted
}

// Root returns the merkle root
func (t *OrderedMerkleTree) Root() common.Hash {
	return common.Hash(t.tree.Root)
}

// Tree exposes the underlying level structure
func (t *OrderedMerkleTree) Tree() *MerkleTree {
	return t.tree
}

// Len returns the number of claims
func (t *OrderedMerkleTree) Len() int {
	return len(t.claims)
}

// Claims returns the claims in index order
func (t *OrderedMerkleTree) Claims() []types.Claim {
	out := make([]types.Claim, len(t.claims))
	for i, c := range t.claims {
		out[i] = types.Claim{Index: c.Index, Account: c.Account, Amount: c.Amount.Clone()}
	}
	return out
}

// LeafOrder returns the tree position -> claim index table
func (t *OrderedMerkleTree) LeafOrder() []int {
	out := make([]int, len(t.leafOrder))
	copy(out, t.leafOrder)
	return out
}

// TreePosition returns where the claim with the given index sits in level 0
func (t *OrderedMerkleTree) TreePosition(index uint64) (int, error) {
	if index >= uint64(len(t.claims)) {
		return 0, fmt.Errorf("claim index %d out of bounds (tree has %d claims)", index, len(t.claims))
	}
	return t.positions[index], nil
}

// ProofForIndex builds the inclusion proof for the claim with the given index
func (t *OrderedMerkleTree) ProofForIndex(index uint64) (*types.ClaimProof, error) {
	pos, err := t.TreePosition(index)
	if err != nil {
		return nil, err
	}

	proof, err := t.tree.GenerateProof(pos)
	if err != nil {
		return nil, err
	}

	c := t.claims[index]
	return &types.ClaimProof{
		Claim:        types.Claim{Index: c.Index, Account: c.Account, Amount: c.Amount.Clone()},
		TreePosition: pos,
		Proof:        proof.Proof,
	}, nil
}

// ProofFor returns the proof for the first claim belonging to account, or nil if
// the account has no claim in this tree.
func (t *OrderedMerkleTree) ProofFor(account common.Address) (*types.ClaimProof, error) {
	for _, c := range t.claims {
		if c.Account == account {
			return t.ProofForIndex(c.Index)
		}
	}
	return nil, nil
}

// Proofs generates the proof for every claim, sorted by index. Work is split
// across GOMAXPROCS workers.
func (t *OrderedMerkleTree) Proofs(ctx context.Context) ([]*types.ClaimProof, error) {
	n := len(t.claims)
	proofs := make([]*types.ClaimProof, n)

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, err := t.ProofForIndex(uint64(i))
				if err != nil {
					return err
				}
				proofs[i] = p
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate proofs: %w", err)
	}
	return proofs, nil
}

// Distribution packages the tree and all of its proofs under id
func (t *OrderedMerkleTree) Distribution(ctx context.Context, id string) (*types.Distribution, error) {
	proofs, err := t.Proofs(ctx)
	if err != nil {
		return nil, err
	}
	return &types.Distribution{
		ID:         id,
		MerkleRoot: t.Root(),
		Proofs:     proofs,
		CreatedAt:  time.Now().Unix(),
	}, nil
}

// VerifyClaimProof checks a claim proof against root using both the side-tagged
// fold and the on-chain sorted fold.
func VerifyClaimProof(cp *types.ClaimProof, root common.Hash) bool {
	if cp == nil {
		return false
	}
	leaf := HashClaimStruct(cp.Claim)
	return VerifyProof(cp.Proof, leaf, root) && VerifySortedProof(cp.Hashes(), leaf, root)
}

func amountOf(in types.ClaimInput) *uint256.Int {
	if in.Amount == nil {
		return new(uint256.Int)
	}
	return in.Amount
}

func cloneAmount(in types.ClaimInput) *uint256.Int {
	return amountOf(in).Clone()
}
