// Package crypto implements the cryptographic primitives collaborator
// (spec component C1): a fixed digest function, ECDSA keypairs,
// detached signatures, and deterministic signer-address derivation.
// The Merkle tree and header hashing are layered on top in
// internal/merkle and internal/block; this package only fixes the
// primitives, not the derivation order.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"math/big"

	"golang.org/x/crypto/ripemd160"
)

const addressVersion = byte(0x00)

// Curve is the fixed elliptic curve used for all validator keys.
var Curve = elliptic.P256()

// PrivateKey wraps an ECDSA private key.
type PrivateKey struct {
	ecdsa.PrivateKey
}

// PublicKey is the uncompressed elliptic-curve point (0x04 || X || Y).
type PublicKey []byte

// Signature is a detached, fixed-width r||s signature (64 bytes).
type Signature []byte

// Digest hashes b with the module's fixed collision-resistant digest
// function (SHA-256).
func Digest(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// GenerateKeyPair creates a new validator keypair.
func GenerateKeyPair() (PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(Curve, rand.Reader)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{*priv}, nil
}

// PrivateKeyFromD reconstructs a private key from its raw scalar, used
// when recovering a wallet from a stored or mnemonic-derived seed.
func PrivateKeyFromD(d []byte) PrivateKey {
	priv := new(ecdsa.PrivateKey)
	priv.D = new(big.Int).SetBytes(d)
	priv.PublicKey.Curve = Curve
	priv.PublicKey.X, priv.PublicKey.Y = Curve.ScalarBaseMult(d)
	return PrivateKey{*priv}
}

// MarshalPrivateKey encodes priv for storage (x509 EC private key DER).
func MarshalPrivateKey(priv PrivateKey) ([]byte, error) {
	return x509.MarshalECPrivateKey(&priv.PrivateKey)
}

// UnmarshalPrivateKey decodes a private key previously produced by
// MarshalPrivateKey.
func UnmarshalPrivateKey(der []byte) (PrivateKey, error) {
	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{*priv}, nil
}

// Public derives the uncompressed public key for priv.
func Public(priv PrivateKey) PublicKey {
	return elliptic.Marshal(Curve, priv.PublicKey.X, priv.PublicKey.Y)
}

// Sign produces a detached, fixed-width signature of msg's digest
// (the caller passes the already-hashed message, per spec C1: the
// core hashes the canonical encoding and signs the hash).
func Sign(priv PrivateKey, digest []byte) (Signature, error) {
	r, s, err := ecdsa.Sign(rand.Reader, &priv.PrivateKey, digest)
	if err != nil {
		return nil, err
	}
	return packSignature(r, s), nil
}

// Verify checks sig against digest under pub.
func Verify(pub PublicKey, sig Signature, digest []byte) bool {
	x, y, err := unmarshalPublicKey(pub)
	if err != nil {
		return false
	}
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	pk := ecdsa.PublicKey{Curve: Curve, X: x, Y: y}
	return ecdsa.Verify(&pk, digest, r, s)
}

// Address derives the deterministic, human-displayable signer address
// for a public key: SHA-256, then RIPEMD-160, versioned and
// checksummed, then Base58-encoded — matching the teacher wallet's
// address scheme.
func Address(pub PublicKey) []byte {
	pubKeyHash := HashPubKey(pub)

	versionedPayload := append([]byte{addressVersion}, pubKeyHash...)
	checksum := doubleSHA256(versionedPayload)[:4]

	fullPayload := append(versionedPayload, checksum...)
	return Base58Encode(fullPayload)
}

// HashPubKey returns the SHA-256 → RIPEMD-160 hash of a public key.
func HashPubKey(pub PublicKey) []byte {
	sha := sha256.Sum256(pub)

	hasher := ripemd160.New()
	_, _ = hasher.Write(sha[:])
	return hasher.Sum(nil)
}

// ValidateAddress reports whether address decodes to a well-formed,
// checksummed payload.
func ValidateAddress(address []byte) bool {
	full, err := Base58Decode(address)
	if err != nil || len(full) < 5 {
		return false
	}
	payload := full[:len(full)-4]
	checksum := full[len(full)-4:]
	expected := doubleSHA256(payload)[:4]
	return string(checksum) == string(expected)
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func packSignature(r, s *big.Int) Signature {
	sig := make([]byte, 64)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	return sig
}

func unmarshalPublicKey(pub PublicKey) (x, y *big.Int, err error) {
	switch len(pub) {
	case 64:
		return new(big.Int).SetBytes(pub[:32]), new(big.Int).SetBytes(pub[32:]), nil
	case 65:
		if pub[0] != 0x04 {
			return nil, nil, errors.New("crypto: invalid public key prefix")
		}
		return new(big.Int).SetBytes(pub[1:33]), new(big.Int).SetBytes(pub[33:]), nil
	default:
		return nil, nil, errors.New("crypto: invalid public key length")
	}
}
