// Package wallet manages validator/user keypairs on disk, adapted from
// the teacher's wallet.go/wallets.go. It additionally supports BIP-39
// mnemonic generation and recovery via github.com/tyler-smith/go-bip39,
// a teacher dependency the original program never imported.
package wallet

import (
	"bytes"
	"crypto/elliptic"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/tyler-smith/go-bip39"

	"github.com/sole-chain/sole-poa/internal/crypto"
)

// Wallet holds a keypair. PrivateKey is the x509-marshaled scalar, the
// same on-disk shape the teacher used.
type Wallet struct {
	PrivateKey []byte
	PublicKey  []byte
}

// New generates a fresh wallet.
func New() (*Wallet, error) {
	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate keypair: %w", err)
	}
	return fromPrivateKey(priv)
}

// NewWithMnemonic generates a fresh wallet plus the BIP-39 mnemonic
// that can later recover it, so an operator can write the words down
// instead of the raw key file.
func NewWithMnemonic() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", fmt.Errorf("wallet: generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("wallet: derive mnemonic: %w", err)
	}
	w, err := FromMnemonic(mnemonic, "")
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromMnemonic recovers a wallet deterministically from mnemonic and
// an optional passphrase, seeding the ECDSA scalar from the BIP-39
// seed (spec C1 leaves key derivation outside the core; this is the
// recovery path the wallet layer owns).
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("wallet: invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	priv := crypto.PrivateKeyFromD(seed[:32])
	return fromPrivateKey(priv)
}

func fromPrivateKey(priv crypto.PrivateKey) (*Wallet, error) {
	der, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("wallet: marshal private key: %w", err)
	}
	return &Wallet{PrivateKey: der, PublicKey: crypto.Public(priv)}, nil
}

// PrivKey reconstructs the ECDSA private key.
func (w *Wallet) PrivKey() (crypto.PrivateKey, error) {
	return crypto.UnmarshalPrivateKey(w.PrivateKey)
}

// Address derives the wallet's human-displayable address.
func (w *Wallet) Address() []byte {
	return crypto.Address(w.PublicKey)
}

// Wallets is a named collection of wallets persisted as a single file,
// mirroring the teacher's Wallets/wallet.dat.
type Wallets struct {
	Entries map[string]*Wallet
	path    string
}

// Open loads wallets from path, creating an empty collection if the
// file does not yet exist.
func Open(path string) (*Wallets, error) {
	ws := &Wallets{Entries: make(map[string]*Wallet), path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ws, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}

	gob.Register(elliptic.P256())
	var decoded Wallets
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("wallet: decode %s: %w", path, err)
	}
	ws.Entries = decoded.Entries
	return ws, nil
}

// Add generates a new wallet, stores it under its own address, and
// returns the address.
func (ws *Wallets) Add() (string, error) {
	w, err := New()
	if err != nil {
		return "", err
	}
	addr := string(w.Address())
	ws.Entries[addr] = w
	return addr, nil
}

// Get returns the wallet registered under address, if any.
func (ws *Wallets) Get(address string) (*Wallet, bool) {
	w, ok := ws.Entries[address]
	return w, ok
}

// Save persists the collection to its backing file.
func (ws *Wallets) Save() error {
	var buf bytes.Buffer
	gob.Register(elliptic.P256())
	if err := gob.NewEncoder(&buf).Encode(ws); err != nil {
		return fmt.Errorf("wallet: encode: %w", err)
	}
	if err := os.WriteFile(ws.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("wallet: write %s: %w", ws.path, err)
	}
	return nil
}
