package merkle

import "github.com/Layr-Labs/union-rewards-go/pkg/types"

// MerkleTree represents a binary merkle tree with sorted-pair keccak256 hashing.
// Parents are keccak256(min(a,b) || max(a,b)); an unpaired node at the end of a
// level is carried to the next level unchanged.
type MerkleTree struct {
	// Leaves contains the leaf hashes in tree order
	Leaves [][32]byte

	// Root is the merkle root hash
	Root [32]byte

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the position of the leaf in level 0
	LeafIndex int

	// Leaf is the hash of the leaf being proven
	Leaf [32]byte

	// Proof contains the sibling hashes from leaf to root.
	// Levels where the node was carried up unpaired contribute no entry.
	Proof []types.ProofEntry
}

// Depth returns the number of levels above the leaves
func (mt *MerkleTree) Depth() int {
	return len(mt.levels) - 1
}

// Level returns a copy of the nodes at the given level, nil when out of range
func (mt *MerkleTree) Level(level int) [][32]byte {
	if level < 0 || level >= len(mt.levels) {
		return nil
	}
	nodes := make([][32]byte, len(mt.levels[level]))
	copy(nodes, mt.levels[level])
	return nodes
}
