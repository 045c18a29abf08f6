package merkle

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkOrderedMerkleTreeBuild benchmarks claim tree construction with various sizes
func BenchmarkOrderedMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Claims_%d", size), func(b *testing.B) {
			claims := createTestClaims(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = NewOrderedMerkleTree(claims)
			}
		})
	}
}

// BenchmarkMerkleProofGeneration benchmarks single proof generation
func BenchmarkMerkleProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		tree, _ := BuildMerkleTree(randomLeaves(size))

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkAllProofs benchmarks parallel generation of every proof
func BenchmarkAllProofs(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		tree, _ := NewOrderedMerkleTree(createTestClaims(size))

		b.Run(fmt.Sprintf("Claims_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.Proofs(context.Background())
			}
		})
	}
}

// BenchmarkMerkleProofVerification benchmarks proof verification
func BenchmarkMerkleProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		tree, _ := NewOrderedMerkleTree(createTestClaims(size))
		proof, _ := tree.ProofForIndex(0)

		b.Run(fmt.Sprintf("Claims_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyClaimProof(proof, tree.Root())
			}
		})
	}
}

// BenchmarkHashClaim benchmarks leaf hashing
func BenchmarkHashClaim(b *testing.B) {
	claim := createTestClaims(1)[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashClaim(uint64(i), claim.Account, claim.Amount)
	}
}
