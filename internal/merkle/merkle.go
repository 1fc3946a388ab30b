// Package merkle implements the Merkle commitment collaborator (spec
// component C3): the root hash of an ordered list of transaction
// hashes, with duplicate-last-leaf handling at odd levels.
package merkle

import "crypto/sha256"

// emptyRoot is the well-known constant returned for zero transactions.
var emptyRoot = sha256.Sum256(nil)

// Root computes the Merkle root over leaves, an ordered sequence of
// base-16-encoded transaction hashes (not the raw digests — this
// matters for interoperability, per spec §4.3).
func Root(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		root := emptyRoot
		return root[:]
	}

	level := make([][]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.Sum256(append(append([]byte{}, level[i]...), level[i+1]...))
			next = append(next, h[:])
		}
		level = next
	}

	return level[0]
}
