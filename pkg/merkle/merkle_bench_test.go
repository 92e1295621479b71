package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkMerkleTreeBuild benchmarks tree construction with various sizes
func BenchmarkMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			hashes := createTestHashes(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = OfHashes(hashes, DefaultOptions())
			}
		})
	}
}

// BenchmarkMerkleProofGeneration benchmarks proof generation
func BenchmarkMerkleProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		tree, _ := OfHashes(createTestHashes(size), DefaultOptions())

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GetProof(i % size)
			}
		})
	}
}

// BenchmarkMerkleProofVerification benchmarks proof verification
func BenchmarkMerkleProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		hashes := createTestHashes(size)
		tree, _ := OfHashes(hashes, DefaultOptions())
		proof, _ := tree.GetProof(0)
		leaf := Bytes32LeafHash(hashes[0])

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(tree.Root(), leaf, proof)
			}
		})
	}
}

// BenchmarkLoad benchmarks reconstructing a tree from its dump
func BenchmarkLoad(b *testing.B) {
	tree, _ := OfHashes(createTestHashes(1000), DefaultOptions())
	dump := tree.Dump()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Load(dump)
	}
}
