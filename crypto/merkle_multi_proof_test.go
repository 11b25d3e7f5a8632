package crypto

import (
	"testing"
)

func TestGeneralizedIndex(t *testing.T) {
	// depth=3: leaves at [8..15], leaf 0 -> GI 8, leaf 7 -> GI 15.
	if gi := GeneralizedIndex(3, 0); gi != 8 {
		t.Fatalf("expected 8, got %d", gi)
	}
	if gi := GeneralizedIndex(3, 7); gi != 15 {
		t.Fatalf("expected 15, got %d", gi)
	}
	// depth=1: leaves at [2, 3].
	if gi := GeneralizedIndex(1, 0); gi != 2 {
		t.Fatalf("expected 2, got %d", gi)
	}
	if gi := GeneralizedIndex(1, 1); gi != 3 {
		t.Fatalf("expected 3, got %d", gi)
	}
}

func TestParent(t *testing.T) {
	if p := Parent(8); p != 4 {
		t.Fatalf("expected 4, got %d", p)
	}
	if p := Parent(9); p != 4 {
		t.Fatalf("expected 4, got %d", p)
	}
	if p := Parent(2); p != 1 {
		t.Fatalf("expected 1, got %d", p)
	}
}

func TestSibling(t *testing.T) {
	if s := Sibling(8); s != 9 {
		t.Fatalf("expected 9, got %d", s)
	}
	if s := Sibling(9); s != 8 {
		t.Fatalf("expected 8, got %d", s)
	}
	if s := Sibling(2); s != 3 {
		t.Fatalf("expected 3, got %d", s)
	}
	if s := Sibling(3); s != 2 {
		t.Fatalf("expected 2, got %d", s)
	}
}

func TestIsLeft(t *testing.T) {
	if !IsLeft(8) {
		t.Fatal("8 should be left")
	}
	if IsLeft(9) {
		t.Fatal("9 should be right")
	}
	if !IsLeft(2) {
		t.Fatal("2 should be left")
	}
	if IsLeft(3) {
		t.Fatal("3 should be right")
	}
}

func makeLeafHash(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

// buildDepth2Tree returns the root and sibling-path proof for leaf 0 of a
// 4-leaf (depth-2) tree, mirroring the shape verifyDepositMerkleBranch
// consumes: one leaf plus one sibling hash per level, ordered bottom-up.
func buildDepth2Tree(leaves [4][32]byte) (root [32]byte, proofFor0 []MerkleNode) {
	n1 := merkleHashPair(leaves[0], leaves[1])
	n2 := merkleHashPair(leaves[2], leaves[3])
	root = merkleHashPair(n1, n2)
	proofFor0 = []MerkleNode{
		{GeneralizedIndex: GeneralizedIndex(2, 1), Hash: leaves[1]},
		{GeneralizedIndex: Parent(GeneralizedIndex(2, 1)) ^ 1, Hash: n2},
	}
	return root, proofFor0
}

func TestVerifyMultiProofSingleLeaf(t *testing.T) {
	leaves := [4][32]byte{makeLeafHash(0xAA), makeLeafHash(0xBB), makeLeafHash(0xCC), makeLeafHash(0xDD)}
	root, proofNodes := buildDepth2Tree(leaves)

	proof := &MerkleMultiProof{
		Leaves: []MerkleLeaf{{GeneralizedIndex: GeneralizedIndex(2, 0), Hash: leaves[0]}},
		Proof:  proofNodes,
		Depth:  2,
	}
	if !VerifyMultiProof(root, proof) {
		t.Fatal("valid proof failed verification")
	}
}

func TestVerifyMultiProofWrongRoot(t *testing.T) {
	leaves := [4][32]byte{makeLeafHash(1), makeLeafHash(2), makeLeafHash(3), makeLeafHash(4)}
	_, proofNodes := buildDepth2Tree(leaves)

	proof := &MerkleMultiProof{
		Leaves: []MerkleLeaf{{GeneralizedIndex: GeneralizedIndex(2, 0), Hash: leaves[0]}},
		Proof:  proofNodes,
		Depth:  2,
	}
	wrongRoot := makeLeafHash(0xFF)
	if VerifyMultiProof(wrongRoot, proof) {
		t.Fatal("proof verified against wrong root")
	}
}

func TestVerifyMultiProofTamperedLeaf(t *testing.T) {
	leaves := [4][32]byte{makeLeafHash(1), makeLeafHash(2), makeLeafHash(3), makeLeafHash(4)}
	root, proofNodes := buildDepth2Tree(leaves)

	tamperedLeaf := leaves[0]
	tamperedLeaf[0] ^= 0xFF
	proof := &MerkleMultiProof{
		Leaves: []MerkleLeaf{{GeneralizedIndex: GeneralizedIndex(2, 0), Hash: tamperedLeaf}},
		Proof:  proofNodes,
		Depth:  2,
	}
	if VerifyMultiProof(root, proof) {
		t.Fatal("tampered leaf should not verify")
	}
}

func TestVerifyMultiProofTamperedNode(t *testing.T) {
	leaves := [4][32]byte{makeLeafHash(1), makeLeafHash(2), makeLeafHash(3), makeLeafHash(4)}
	root, proofNodes := buildDepth2Tree(leaves)
	proofNodes[0].Hash[0] ^= 0xFF

	proof := &MerkleMultiProof{
		Leaves: []MerkleLeaf{{GeneralizedIndex: GeneralizedIndex(2, 0), Hash: leaves[0]}},
		Proof:  proofNodes,
		Depth:  2,
	}
	if VerifyMultiProof(root, proof) {
		t.Fatal("tampered proof node should not verify")
	}
}

func TestVerifyMultiProofNil(t *testing.T) {
	var root [32]byte
	if VerifyMultiProof(root, nil) {
		t.Fatal("nil proof should not verify")
	}
}

func TestVerifyMultiProofEmptyLeaves(t *testing.T) {
	var root [32]byte
	proof := &MerkleMultiProof{}
	if VerifyMultiProof(root, proof) {
		t.Fatal("empty proof should not verify")
	}
}

func TestMerkleHashPairDeterministic(t *testing.T) {
	a := makeLeafHash(0xAA)
	b := makeLeafHash(0xBB)

	h1 := merkleHashPair(a, b)
	h2 := merkleHashPair(a, b)
	if h1 != h2 {
		t.Fatal("merkleHashPair is non-deterministic")
	}

	// Order matters.
	h3 := merkleHashPair(b, a)
	if h1 == h3 {
		t.Fatal("merkleHashPair should be order-dependent")
	}
}
