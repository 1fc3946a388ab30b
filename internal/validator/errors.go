// Package validator implements the single-block and chain-level
// validation collaborator (spec component C5): a pure, single-threaded
// check of a candidate block against its predecessor, a median
// timestamp, and the PoA consensus parameters.
package validator

import "fmt"

// Kind tags a validation failure with one of the closed set of
// variants from spec §7. All validation errors are reported, never
// retried inside the core; the caller decides recovery.
type Kind int

const (
	// KindBlockSignature: a BlockSignature does not verify against the
	// header hash.
	KindBlockSignature Kind = iota
	// KindBlockSigner: a signature's signer address is not a member of
	// the validator set.
	KindBlockSigner
	// KindBlockOrigin: the header's origin address is not a member of
	// the validator set.
	KindBlockOrigin
	// KindPrevBlockHash: declared prevHash does not match the
	// predecessor's computed header hash.
	KindPrevBlockHash
	// KindBlockTimestamp: timestamp does not strictly exceed the
	// median timestamp.
	KindBlockTimestamp
	// KindMedianTimestamp: the median-timestamp window was empty or
	// otherwise could not be computed — treated as a bug, not a
	// rejectable peer block.
	KindMedianTimestamp
	// KindBlockMerkleRoot: declared Merkle root does not match the
	// computed root over the block's transactions.
	KindBlockMerkleRoot
	// KindBlockTx: a contained transaction failed its own validity
	// predicate.
	KindBlockTx
	// KindBlockIndex: index is not exactly one greater than the
	// predecessor's index.
	KindBlockIndex
)

func (k Kind) String() string {
	switch k {
	case KindBlockSignature:
		return "InvalidBlockSignature"
	case KindBlockSigner:
		return "InvalidBlockSigner"
	case KindBlockOrigin:
		return "InvalidBlockOrigin"
	case KindPrevBlockHash:
		return "InvalidPrevBlockHash"
	case KindBlockTimestamp:
		return "InvalidBlockTimestamp"
	case KindMedianTimestamp:
		return "InvalidMedianTimestamp"
	case KindBlockMerkleRoot:
		return "InvalidBlockMerkleRoot"
	case KindBlockTx:
		return "InvalidBlockTx"
	case KindBlockIndex:
		return "InvalidBlockIndex"
	default:
		return "InvalidBlock"
	}
}

// Error is the tagged variant every validation failure returns. It
// carries enough context (index, expected/actual bytes, wrapped
// error) to be logged by the caller without reconstruction.
type Error struct {
	Kind    Kind
	Index   uint64
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validator: %s at index %d: %s: %v", e.Kind, e.Index, e.Message, e.Err)
	}
	return fmt.Sprintf("validator: %s at index %d: %s", e.Kind, e.Index, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind,
// supporting errors.Is(err, validator.ErrKind(KindBlockTx)) style
// checks without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ErrKind constructs a sentinel *Error of the given kind, suitable for
// errors.Is comparisons in caller code and tests.
func ErrKind(k Kind) *Error {
	return &Error{Kind: k}
}

func newErr(k Kind, index uint64, msg string, err error) *Error {
	return &Error{Kind: k, Index: index, Message: msg, Err: err}
}
