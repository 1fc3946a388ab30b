package merkle

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestRootEmptyIsWellKnownConstant(t *testing.T) {
	root := Root(nil)
	want := sha256.Sum256(nil)
	if !bytes.Equal(root, want[:]) {
		t.Fatalf("Root(nil) = %x, want sha256(nil) = %x", root, want)
	}
}

func TestRootSingleLeafIsReturnedUnhashed(t *testing.T) {
	leaf := []byte("tx-1")
	root := Root([][]byte{leaf})
	if !bytes.Equal(root, leaf) {
		t.Fatalf("Root of a single leaf should be the leaf itself, got %x want %x", root, leaf)
	}
}

func TestRootIsOrderSensitive(t *testing.T) {
	a := []byte("tx-a")
	b := []byte("tx-b")

	r1 := Root([][]byte{a, b})
	r2 := Root([][]byte{b, a})
	if bytes.Equal(r1, r2) {
		t.Fatal("Root should depend on leaf order, but reordering produced the same root")
	}
}

func TestRootDuplicatesLastLeafAtOddLevels(t *testing.T) {
	a, b, c := []byte("tx-a"), []byte("tx-b"), []byte("tx-c")

	got := Root([][]byte{a, b, c})
	want := Root([][]byte{a, b, c, c})
	if !bytes.Equal(got, want) {
		t.Fatalf("odd-length level should duplicate its last leaf: got %x want %x", got, want)
	}
}

func TestRootDeterministic(t *testing.T) {
	leaves := [][]byte{[]byte("tx-1"), []byte("tx-2"), []byte("tx-3"), []byte("tx-4"), []byte("tx-5")}
	r1 := Root(leaves)
	r2 := Root(leaves)
	if !bytes.Equal(r1, r2) {
		t.Fatal("Root is not deterministic across repeated calls with the same input")
	}
}

func TestRootChangesWithAnyLeafMutation(t *testing.T) {
	leaves := [][]byte{[]byte("tx-1"), []byte("tx-2"), []byte("tx-3")}
	original := Root(leaves)

	mutated := make([][]byte, len(leaves))
	copy(mutated, leaves)
	mutated[1] = []byte("tx-2-tampered")

	if bytes.Equal(original, Root(mutated)) {
		t.Fatal("mutating a single leaf did not change the root")
	}
}
