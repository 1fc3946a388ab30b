package chain

import (
	"testing"
	"time"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/clock"
	"github.com/sole-chain/sole-poa/internal/crypto"
	"github.com/sole-chain/sole-poa/internal/poa"
	"github.com/sole-chain/sole-poa/internal/storage"
	"github.com/sole-chain/sole-poa/internal/txn"
)

type testValidator struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
	addr []byte
}

func newTestValidator(t *testing.T) testValidator {
	t.Helper()
	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	pub := crypto.Public(priv)
	return testValidator{priv: priv, pub: pub, addr: crypto.Address(pub)}
}

func newTestChain(t *testing.T, v testValidator) (*Chain, poa.PoA) {
	t.Helper()
	params, err := poa.New([]poa.Validator{{Address: string(v.addr), PublicKey: v.pub}}, 15, 10, 10, 1, 0)
	if err != nil {
		t.Fatalf("poa.New: %v", err)
	}
	store := storage.NewMemoryStore()
	c, err := Init(store, params, clock.Fixed(1000), []byte("genesis-seed"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c, params
}

func TestInitAndOpenRoundTrip(t *testing.T) {
	v := newTestValidator(t)
	params, err := poa.New([]poa.Validator{{Address: string(v.addr), PublicKey: v.pub}}, 15, 10, 10, 1, 0)
	if err != nil {
		t.Fatalf("poa.New: %v", err)
	}
	store := storage.NewMemoryStore()

	if _, err := Open(store, params, clock.Fixed(1000)); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty for an uninitialized store, got %v", err)
	}

	c, err := Init(store, params, clock.Fixed(1000), []byte("seed"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if c.Height() != 0 {
		t.Fatalf("freshly initialized chain height = %d, want 0", c.Height())
	}

	reopened, err := Open(store, params, clock.Fixed(1000))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Height() != 0 {
		t.Fatalf("reopened chain height = %d, want 0", reopened.Height())
	}
	if reopened.Tip().Index != 0 {
		t.Fatal("reopened chain's tip should be the genesis block")
	}
}

func TestForgeAdvancesHeightAndPersists(t *testing.T) {
	v := newTestValidator(t)
	c, _ := newTestChain(t, v)
	fixed := clock.Fixed(1010)
	c.clock = fixed

	b, err := c.Forge(string(v.addr), v.priv, nil)
	if err != nil {
		t.Fatalf("Forge: %v", err)
	}
	if b.Index != 1 {
		t.Fatalf("forged block index = %d, want 1", b.Index)
	}
	if c.Height() != 1 {
		t.Fatalf("chain height after forge = %d, want 1", c.Height())
	}

	stored, err := c.GetBlock(1)
	if err != nil {
		t.Fatalf("GetBlock(1): %v", err)
	}
	if stored.Header.Timestamp != b.Header.Timestamp {
		t.Fatal("persisted block does not match the forged block")
	}
}

func TestForgeWithCoinbaseUpdatesBalance(t *testing.T) {
	v := newTestValidator(t)
	c, _ := newTestChain(t, v)
	c.clock = clock.Fixed(1010)

	coinbase := txn.NewCoinbase(v.addr, "", 50, time.Unix(1010, 0))
	if _, err := c.Forge(string(v.addr), v.priv, []block.Transaction{coinbase}); err != nil {
		t.Fatalf("Forge: %v", err)
	}

	pubKeyHash := crypto.HashPubKey(v.pub)
	if got := c.Balance(pubKeyHash); got != 50 {
		t.Fatalf("Balance = %d, want 50", got)
	}
}

func TestAppendRejectsWrongIndex(t *testing.T) {
	v := newTestValidator(t)
	c, params := newTestChain(t, v)

	tipHash := block.HeaderHash(c.Tip().Header)
	bad, err := block.NewBlock(string(v.addr), tipHash[:], nil, 5, v.priv, params, clock.Fixed(1010))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if err := c.Append(bad); err == nil {
		t.Fatal("expected Append to reject a block with a non-sequential index")
	}
}

func TestAppendRejectsInvalidSignature(t *testing.T) {
	v := newTestValidator(t)
	c, params := newTestChain(t, v)

	tipHash := block.HeaderHash(c.Tip().Header)
	b, err := block.NewBlock(string(v.addr), tipHash[:], nil, 1, v.priv, params, clock.Fixed(1010))
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	b.Signatures[0].Signature[0] ^= 0xFF

	if err := c.Append(b); err == nil {
		t.Fatal("expected Append to reject a block with an invalid signature")
	}
}

func TestSpendTransactionAcrossTwoBlocks(t *testing.T) {
	sender := newTestValidator(t)
	c, _ := newTestChain(t, sender)
	c.clock = clock.Fixed(1010)

	coinbase := txn.NewCoinbase(sender.addr, "", 100, time.Unix(1010, 0))
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{coinbase}); err != nil {
		t.Fatalf("Forge coinbase: %v", err)
	}

	recipient := newTestValidator(t)
	spend := buildSpendTx(t, coinbase, sender, recipient.addr, 100, 1020)

	c.clock = clock.Fixed(1020)
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{spend}); err != nil {
		t.Fatalf("Forge spend: %v", err)
	}

	senderHash := crypto.HashPubKey(sender.pub)
	recipientHash := crypto.HashPubKey(recipient.pub)
	if got := c.Balance(senderHash); got != 0 {
		t.Fatalf("sender balance after spending entire output = %d, want 0", got)
	}
	if got := c.Balance(recipientHash); got != 100 {
		t.Fatalf("recipient balance = %d, want 100", got)
	}
}

func TestDoubleSpendIsRejected(t *testing.T) {
	sender := newTestValidator(t)
	c, _ := newTestChain(t, sender)
	c.clock = clock.Fixed(1010)

	coinbase := txn.NewCoinbase(sender.addr, "", 100, time.Unix(1010, 0))
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{coinbase}); err != nil {
		t.Fatalf("Forge coinbase: %v", err)
	}

	recipient := newTestValidator(t)
	spend1 := buildSpendTx(t, coinbase, sender, recipient.addr, 100, 1020)
	spend2 := buildSpendTx(t, coinbase, sender, recipient.addr, 100, 1020)

	c.clock = clock.Fixed(1020)
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{spend1, spend2}); err == nil {
		t.Fatal("expected forging two transactions that spend the same output in one block to fail")
	}
}

func TestValueConservationViolationIsRejected(t *testing.T) {
	sender := newTestValidator(t)
	c, _ := newTestChain(t, sender)
	c.clock = clock.Fixed(1010)

	coinbase := txn.NewCoinbase(sender.addr, "", 100, time.Unix(1010, 0))
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{coinbase}); err != nil {
		t.Fatalf("Forge coinbase: %v", err)
	}

	recipient := newTestValidator(t)
	// Attempt to create 150 units of output value from a 100-unit input.
	overspend := buildSpendTx(t, coinbase, sender, recipient.addr, 150, 1020)

	c.clock = clock.Fixed(1020)
	if _, err := c.Forge(string(sender.addr), sender.priv, []block.Transaction{overspend}); err == nil {
		t.Fatal("expected forging a value-creating transaction to fail")
	}
}

func TestValidateStoredChainAcceptsAppendedHistory(t *testing.T) {
	v := newTestValidator(t)
	c, _ := newTestChain(t, v)

	ts := int64(1010)
	for i := 0; i < 5; i++ {
		c.clock = clock.Fixed(ts)
		if _, err := c.Forge(string(v.addr), v.priv, nil); err != nil {
			t.Fatalf("Forge block %d: %v", i, err)
		}
		ts += 10
	}

	if err := c.ValidateStoredChain(); err != nil {
		t.Fatalf("expected the appended history to validate, got: %v", err)
	}
}

// buildSpendTx constructs and signs a transaction spending coinbase's
// single output entirely to toAddr.
func buildSpendTx(t *testing.T, coinbase *txn.Transaction, from testValidator, toAddr []byte, amount int64, ts int64) *txn.Transaction {
	t.Helper()
	decoded, err := txn.FromBytes(coinbase.Bytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	vin := []txn.TxInput{{
		TxID:   decoded.ID,
		Vout:   0,
		PubKey: from.pub,
	}}
	vout := []txn.TxOutput{{
		Value:      amount,
		PubKeyHash: decodePubKeyHash(t, toAddr),
	}}
	prevTXs := map[string]*txn.Transaction{string(decoded.ID): decoded}
	spend, err := txn.New(vin, vout, ts, from.priv, prevTXs)
	if err != nil {
		t.Fatalf("txn.New: %v", err)
	}
	return spend
}

func decodePubKeyHash(t *testing.T, addr []byte) []byte {
	t.Helper()
	full, err := crypto.Base58Decode(addr)
	if err != nil || len(full) < 5 {
		t.Fatalf("Base58Decode: %v", err)
	}
	return full[1 : len(full)-4]
}
