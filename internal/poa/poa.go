// Package poa holds the Proof-of-Authority consensus parameters. The
// validation core treats a PoA value as an opaque, read-only
// collaborator produced by configuration loading (internal/config).
package poa

import (
	"encoding/hex"
	"fmt"
)

// Validator is a single authorized signer: its derived address (used
// for validator-set membership in the block header's Origin and a
// BlockSignature's SignerAddr) paired with the uncompressed public key
// needed to verify its signatures. Grounded on the teacher's
// AuthorizedValidators hex-encoded public-key list (consensus.go).
type Validator struct {
	Address   string
	PublicKey []byte
}

// PoA describes the authority set and timing/anti-spam parameters for
// a single chain. Zero value is not valid; use New. Block validation
// (internal/validator) consults only ValidatorSet; the period, limit,
// threshold and min-txs fields are carried and encoded but not
// enforced by any check in this module.
type PoA struct {
	// ValidatorSet is the set of validators permitted to sign and
	// originate blocks.
	ValidatorSet []Validator
	// BlockPeriod is the target number of seconds between blocks.
	BlockPeriod int64
	// GenerationLimit bounds how many blocks a single validator may
	// produce within a rolling window (anti-monopoly).
	GenerationLimit int
	// SigningLimit bounds how many signatures a single block may carry.
	SigningLimit int
	// Threshold is the minimum number of validator signatures a block
	// must carry to be considered final.
	Threshold int
	// MinTxs is the minimum number of transactions a non-genesis block
	// must contain.
	MinTxs int
}

// New validates and returns a PoA record.
func New(validatorSet []Validator, blockPeriod int64, generationLimit, signingLimit, threshold, minTxs int) (PoA, error) {
	p := PoA{
		ValidatorSet:    validatorSet,
		BlockPeriod:     blockPeriod,
		GenerationLimit: generationLimit,
		SigningLimit:    signingLimit,
		Threshold:       threshold,
		MinTxs:          minTxs,
	}
	if err := p.Validate(); err != nil {
		return PoA{}, err
	}
	return p, nil
}

// Validate checks internal consistency of the parameter record.
func (p PoA) Validate() error {
	if len(p.ValidatorSet) == 0 {
		return fmt.Errorf("poa: validator set must not be empty")
	}
	for _, v := range p.ValidatorSet {
		if v.Address == "" {
			return fmt.Errorf("poa: validator entry has empty address")
		}
		if len(v.PublicKey) != 64 && len(v.PublicKey) != 65 {
			return fmt.Errorf("poa: validator %s has malformed public key (%d bytes)", v.Address, len(v.PublicKey))
		}
	}
	if p.BlockPeriod <= 0 {
		return fmt.Errorf("poa: block period must be positive")
	}
	if p.Threshold < 0 || p.Threshold > len(p.ValidatorSet) {
		return fmt.Errorf("poa: threshold %d out of range for %d validators", p.Threshold, len(p.ValidatorSet))
	}
	if p.MinTxs < 0 {
		return fmt.Errorf("poa: min-txs must not be negative")
	}
	return nil
}

// IsValidator reports whether addr is a member of the validator set.
func (p PoA) IsValidator(addr string) bool {
	_, ok := p.find(addr)
	return ok
}

// PublicKeyFor returns the registered public key for addr, if any.
func (p PoA) PublicKeyFor(addr string) ([]byte, bool) {
	v, ok := p.find(addr)
	if !ok {
		return nil, false
	}
	return v.PublicKey, true
}

func (p PoA) find(addr string) (Validator, bool) {
	for _, v := range p.ValidatorSet {
		if v.Address == addr {
			return v, true
		}
	}
	return Validator{}, false
}

// DecodeValidatorHex decodes a hex-encoded validator public key and
// checks that it is 64 or 65 bytes long. It does not derive an address
// (that would need internal/crypto, which this leaf package does not
// import); callers that need one use internal/crypto.Address and
// construct the Validator value directly. DecodeValidatorHex only
// validates hex framing for configuration loading.
func DecodeValidatorHex(pubKeyHex string) ([]byte, error) {
	b, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("poa: invalid validator public key hex: %w", err)
	}
	if len(b) != 64 && len(b) != 65 {
		return nil, fmt.Errorf("poa: validator public key must be 64 or 65 bytes, got %d", len(b))
	}
	return b, nil
}
