// Package clock provides the clock collaborator used by the block
// builder. The core never reads the wall clock directly so that it can
// be driven by a virtual clock in tests.
package clock

import "time"

// Clock produces the current Unix timestamp.
type Clock interface {
	Now() int64
}

// System is the real wall clock.
type System struct{}

// Now returns time.Now().Unix().
func (System) Now() int64 {
	return time.Now().Unix()
}

// Fixed is a virtual clock that always returns the same timestamp,
// useful for deterministic builder tests.
type Fixed int64

// Now returns the fixed timestamp.
func (f Fixed) Now() int64 {
	return int64(f)
}
