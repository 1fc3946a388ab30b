// Package block implements the block model & builder collaborator
// (spec component C4) together with its canonical codec (component
// C2, colocated here — see codec.go and SPEC_FULL.md §1).
package block

import "github.com/sole-chain/sole-poa/internal/poa"

// Transaction is the minimal collaborator contract the block model
// depends on (spec §6.4): a stable hex-encoded hash and a standalone
// validity predicate parameterised by the containing block's
// timestamp. The core never imports a concrete transaction type.
type Transaction interface {
	Hash() string
	Validate(blockTimestamp int64) error
	// Bytes returns the transaction's own canonical encoding, used only
	// by this package's codec to frame transactions inside a block;
	// the validation core never inspects transaction bytes itself.
	Bytes() []byte
}

// TransactionDecoder reconstructs a Transaction from the bytes a prior
// Bytes() call produced. Supplied by the caller (the concrete
// transaction collaborator, internal/txn) so that Block decoding stays
// generic over the opaque transaction type.
type TransactionDecoder func([]byte) (Transaction, error)

// BlockHeader is the five-field header described in spec §3.
type BlockHeader struct {
	// Origin is the address of the validator that produced the block.
	Origin string
	// PrevHash is the predecessor block's header hash (or, for
	// genesis, an externally supplied seed).
	PrevHash []byte
	// MerkleRoot is the Merkle root over the block's transaction
	// hashes.
	MerkleRoot []byte
	// Timestamp is the Unix-epoch time the block was built.
	Timestamp int64
	// Consensus carries the PoA parameters in effect when the block
	// was produced.
	Consensus poa.PoA
}

// BlockSignature is a detached signature plus the signer's address.
// Equality and ordering are by value: signature bytes first, then
// address (spec §3), so a signature set can be represented as a
// canonically sorted sequence.
type BlockSignature struct {
	Signature  []byte
	SignerAddr string
}

// Equal reports whether s and o carry the same signature and signer.
func (s BlockSignature) Equal(o BlockSignature) bool {
	return string(s.Signature) == string(o.Signature) && s.SignerAddr == o.SignerAddr
}

// Less orders s before o: signature bytes first, then address.
func (s BlockSignature) Less(o BlockSignature) bool {
	if string(s.Signature) != string(o.Signature) {
		return string(s.Signature) < string(o.Signature)
	}
	return s.SignerAddr < o.SignerAddr
}

// Block is an immutable, value-typed record of an index, a header, an
// unordered-by-equality set of signatures, and an ordered list of
// transactions. Order of Transactions is part of the block's identity
// (it determines the Merkle root).
type Block struct {
	Index        uint64
	Header       BlockHeader
	Signatures   []BlockSignature
	Transactions []Transaction
}
