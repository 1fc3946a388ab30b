package txn

import (
	"testing"
	"time"

	"github.com/sole-chain/sole-poa/internal/crypto"
)

func newKeyAndAddress(t *testing.T) (crypto.PrivateKey, []byte) {
	t.Helper()
	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return priv, crypto.Address(crypto.Public(priv))
}

func TestNewCoinbaseIsValidAndRecognized(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	tx := NewCoinbase(addr, "", 50, time.Unix(1000, 0))

	if !tx.IsCoinbase() {
		t.Fatal("NewCoinbase did not produce a transaction recognized as coinbase")
	}
	if err := tx.Validate(1000); err != nil {
		t.Fatalf("expected a freshly minted coinbase to validate, got: %v", err)
	}
}

func TestValidateRejectsTamperedID(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	tx := NewCoinbase(addr, "", 50, time.Unix(1000, 0))
	tx.ID[0] ^= 0xFF

	if err := tx.Validate(1000); err == nil {
		t.Fatal("expected a tampered transaction ID to fail validation")
	}
}

func TestValidateRejectsNonPositiveOutput(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	tx := NewCoinbase(addr, "", 0, time.Unix(1000, 0))
	tx.ID = tx.computeID()

	if err := tx.Validate(1000); err == nil {
		t.Fatal("expected a zero-value output to fail validation")
	}
}

func TestValidateRejectsExcessiveFutureDrift(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	tx := NewCoinbase(addr, "", 50, time.Unix(2000, 0))

	if err := tx.Validate(1000); err == nil {
		t.Fatal("expected a transaction timestamped far ahead of the block to fail validation")
	}
}

func TestValidateRejectsOutputlessTransaction(t *testing.T) {
	tx := &Transaction{
		Vin:       []TxInput{{TxID: nil, Vout: -1, PubKey: []byte("coinbase")}},
		Timestamp: 1000,
	}
	tx.ID = tx.computeID()

	if err := tx.Validate(1000); err == nil {
		t.Fatal("expected a transaction with no outputs to fail validation")
	}
}

func TestHashAndBytesRoundTrip(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	tx := NewCoinbase(addr, "", 50, time.Unix(1000, 0))

	decoded, err := FromBytes(tx.Bytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if decoded.Hash() != tx.Hash() {
		t.Fatalf("decoded hash = %s, want %s", decoded.Hash(), tx.Hash())
	}
	if len(decoded.Vout) != 1 || decoded.Vout[0].Value != 50 {
		t.Fatalf("decoded outputs do not match: %+v", decoded.Vout)
	}
	if err := decoded.Validate(1000); err != nil {
		t.Fatalf("decoded transaction should still validate: %v", err)
	}
}

// buildSpend builds a transaction spending coinbase's single output
// entirely to toAddr, signed by fromPriv.
func buildSpend(t *testing.T, coinbase *Transaction, fromPriv crypto.PrivateKey, fromPub []byte, toAddr []byte, amount int64, ts time.Time) *Transaction {
	t.Helper()
	tx := &Transaction{
		Vin: []TxInput{{
			TxID:   coinbase.ID,
			Vout:   0,
			PubKey: fromPub,
		}},
		Vout: []TxOutput{{
			Value:      amount,
			PubKeyHash: addressPayload(toAddr),
		}},
		Timestamp: ts.Unix(),
	}
	tx.ID = tx.computeID()
	prevTXs := map[string]*Transaction{string(coinbase.ID): coinbase}
	if err := tx.Sign(fromPriv, prevTXs); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tx
}

func TestSignAndVerifySignaturesRoundTrip(t *testing.T) {
	fromPriv, fromAddr := newKeyAndAddress(t)
	_, toAddr := newKeyAndAddress(t)
	fromPub := crypto.Public(fromPriv)

	coinbase := NewCoinbase(fromAddr, "", 100, time.Unix(1000, 0))
	spend := buildSpend(t, coinbase, fromPriv, fromPub, toAddr, 100, time.Unix(1001, 0))

	prevTXs := map[string]*Transaction{string(coinbase.ID): coinbase}
	if err := spend.VerifySignatures(prevTXs); err != nil {
		t.Fatalf("expected signature to verify, got: %v", err)
	}
	if err := spend.Validate(1001); err != nil {
		t.Fatalf("expected spending transaction to validate, got: %v", err)
	}
}

func TestVerifySignaturesRejectsWrongSigner(t *testing.T) {
	fromPriv, fromAddr := newKeyAndAddress(t)
	otherPriv, _ := newKeyAndAddress(t)
	_, toAddr := newKeyAndAddress(t)
	fromPub := crypto.Public(fromPriv)

	coinbase := NewCoinbase(fromAddr, "", 100, time.Unix(1000, 0))
	spend := buildSpend(t, coinbase, fromPriv, fromPub, toAddr, 100, time.Unix(1001, 0))

	// Swap in the public key of a key that doesn't own the output, then
	// expect verification to fail either at the ownership check or the
	// signature check.
	spend.Vin[0].PubKey = crypto.Public(otherPriv)
	prevTXs := map[string]*Transaction{string(coinbase.ID): coinbase}
	if err := spend.VerifySignatures(prevTXs); err == nil {
		t.Fatal("expected verification to fail for a signer that does not own the referenced output")
	}
}

func TestVerifySignaturesRejectsTamperedSignature(t *testing.T) {
	fromPriv, fromAddr := newKeyAndAddress(t)
	_, toAddr := newKeyAndAddress(t)
	fromPub := crypto.Public(fromPriv)

	coinbase := NewCoinbase(fromAddr, "", 100, time.Unix(1000, 0))
	spend := buildSpend(t, coinbase, fromPriv, fromPub, toAddr, 100, time.Unix(1001, 0))
	spend.Vin[0].Signature[0] ^= 0xFF

	prevTXs := map[string]*Transaction{string(coinbase.ID): coinbase}
	if err := spend.VerifySignatures(prevTXs); err == nil {
		t.Fatal("expected a tampered signature to fail verification")
	}
}

func TestVerifySignaturesRejectsMissingPrevTransaction(t *testing.T) {
	fromPriv, fromAddr := newKeyAndAddress(t)
	_, toAddr := newKeyAndAddress(t)
	fromPub := crypto.Public(fromPriv)

	coinbase := NewCoinbase(fromAddr, "", 100, time.Unix(1000, 0))
	spend := buildSpend(t, coinbase, fromPriv, fromPub, toAddr, 100, time.Unix(1001, 0))

	if err := spend.VerifySignatures(map[string]*Transaction{}); err == nil {
		t.Fatal("expected verification to fail when the referenced previous transaction is absent")
	}
}

func TestIsLockedWithKey(t *testing.T) {
	_, addr := newKeyAndAddress(t)
	priv, _ := newKeyAndAddress(t)
	pubKeyHash := addressPayload(addr)

	out := TxOutput{Value: 10, PubKeyHash: pubKeyHash}
	if !out.IsLockedWithKey(pubKeyHash) {
		t.Fatal("IsLockedWithKey should match its own pubkey hash")
	}
	if out.IsLockedWithKey(addressPayload(crypto.Address(crypto.Public(priv)))) {
		t.Fatal("IsLockedWithKey should not match an unrelated pubkey hash")
	}
}
