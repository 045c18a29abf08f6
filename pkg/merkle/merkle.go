package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
)

// ErrEmptyInput is returned when a tree is requested over zero leaves or claims
var ErrEmptyInput = errors.New("cannot build merkle tree from empty input")

// claimLeafSize is abi.encodePacked(uint256, address, uint256)
const claimLeafSize = 32 + common.AddressLength + 32

// BuildMerkleTree creates a binary merkle tree over leaves in the order given.
//
// Adjacent nodes are paired left to right and hashed in ascending byte order,
// matching OpenZeppelin style MerkleProof verification on chain. If a level has an
// odd number of nodes the last one is promoted to the next level without hashing.
func BuildMerkleTree(leaves [][32]byte) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	level0 := make([][32]byte, len(leaves))
	copy(level0, leaves)

	levels := make([][][32]byte, 0)
	levels = append(levels, level0)

	currentLevel := level0
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i+1 < len(currentLevel); i += 2 {
			nextLevel = append(nextLevel, hashSortedPair(currentLevel[i], currentLevel[i+1]))
		}

		// Solo node is carried up as is
		if len(currentLevel)%2 == 1 {
			nextLevel = append(nextLevel, currentLevel[len(currentLevel)-1])
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		Leaves: level0,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// GenerateProof creates a merkle proof for the leaf at the given position.
//
// Each entry is tagged with the side the sibling occupies in the concatenation that
// produced the parent. Because parents hash the smaller child first, the tag follows
// byte order; in level 0, whose leaves are sorted, this is the same as position parity.
// Above level 0 it can differ from tagging by position parity, which would not verify
// against sorted-pair parents.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([]types.ProofEntry, 0, len(mt.levels)-1)
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		// Unpaired last node: no sibling at this level
		if index == len(currentLevel)-1 && len(currentLevel)%2 == 1 {
			index = index / 2
			continue
		}

		node := currentLevel[index]
		sibling := currentLevel[index^1]

		side := types.SideRight
		if bytes.Compare(sibling[:], node[:]) < 0 {
			side = types.SideLeft
		}
		proof = append(proof, types.ProofEntry{Side: side, Hash: common.Hash(sibling)})

		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof folds a side-tagged proof over leaf and compares the result with root.
// A left sibling is hashed as keccak256(sibling || acc), a right one as keccak256(acc || sibling).
func VerifyProof(proof []types.ProofEntry, leaf, root [32]byte) bool {
	acc := leaf
	for _, entry := range proof {
		sibling := [32]byte(entry.Hash)
		if entry.Side == types.SideLeft {
			acc = hashPair(sibling, acc)
		} else {
			acc = hashPair(acc, sibling)
		}
	}
	return acc == root
}

// VerifySortedProof verifies a proof the way distributor contracts do: the side of
// each sibling is inferred by comparing it with the running hash.
func VerifySortedProof(proof []common.Hash, leaf, root [32]byte) bool {
	acc := leaf
	for _, sibling := range proof {
		acc = hashSortedPair(acc, [32]byte(sibling))
	}
	return acc == root
}

// HashClaim computes keccak256(abi.encodePacked(uint256 index, address account, uint256 amount)).
// A nil amount hashes as zero.
func HashClaim(index uint64, account common.Address, amount *uint256.Int) [32]byte {
	data := make([]byte, 0, claimLeafSize)

	indexWord := new(uint256.Int).SetUint64(index).Bytes32()
	data = append(data, indexWord[:]...)
	data = append(data, account.Bytes()...)

	var amountWord [32]byte
	if amount != nil {
		amountWord = amount.Bytes32()
	}
	data = append(data, amountWord[:]...)

	return [32]byte(crypto.Keccak256Hash(data))
}

// HashClaimStruct is HashClaim over a types.Claim
func HashClaimStruct(c types.Claim) [32]byte {
	return HashClaim(c.Index, c.Account, c.Amount)
}

// hashPair computes keccak256(left || right) for two 32-byte hashes.
func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])

	return [32]byte(crypto.Keccak256Hash(data))
}

// hashSortedPair hashes the two nodes with the smaller one first
func hashSortedPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return hashPair(a, b)
	}
	return hashPair(b, a)
}
