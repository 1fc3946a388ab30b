// Package chain orchestrates the block/validator core against a
// storage collaborator and a concrete transaction type, adapted from
// the teacher's blockchain.go and utxo_set.go. Neither internal/block
// nor internal/validator import this package; chain depends inward on
// them, keeping the core's dependency direction collaborator → core.
package chain

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/clock"
	"github.com/sole-chain/sole-poa/internal/crypto"
	"github.com/sole-chain/sole-poa/internal/poa"
	"github.com/sole-chain/sole-poa/internal/storage"
	"github.com/sole-chain/sole-poa/internal/txn"
	"github.com/sole-chain/sole-poa/internal/validator"
)

// medianWindow mirrors validator.medianWindow; kept in step with spec
// §4.4 (up to the last 11 blocks).
const medianWindow = 11

// Chain combines a storage collaborator with the validation core to
// offer append-only, validated block storage plus UTXO bookkeeping.
type Chain struct {
	mu     sync.Mutex
	store  storage.Store
	params poa.PoA
	clock  clock.Clock

	tip    *block.Block
	height uint64

	// utxo caches unspent outputs by transaction ID, rebuilt on Open and
	// maintained incrementally on Append, mirroring the teacher's
	// UTXOSet.Reindex/Update split (utxo_set.go).
	utxo map[string][]txn.TxOutput
}

func decodeTx(data []byte) (block.Transaction, error) {
	tx, err := txn.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Open loads an existing chain from store, or returns ErrEmpty if the
// store has never been initialized.
func Open(store storage.Store, params poa.PoA, c clock.Clock) (*Chain, error) {
	height, ok, err := store.Height()
	if err != nil {
		return nil, fmt.Errorf("chain: read height: %w", err)
	}
	if !ok {
		return nil, ErrEmpty
	}

	ch := &Chain{store: store, params: params, clock: c, utxo: make(map[string][]txn.TxOutput)}
	if err := ch.loadTip(height); err != nil {
		return nil, err
	}
	if err := ch.reindexUTXO(); err != nil {
		return nil, err
	}
	return ch, nil
}

// ErrEmpty is returned by Open when the store has no genesis block yet.
var ErrEmpty = fmt.Errorf("chain: store has not been initialized")

// Init creates a brand-new chain seeded with a genesis block and
// persists it, mirroring the teacher's InitBlockchain.
func Init(store storage.Store, params poa.PoA, c clock.Clock, genesisSeed []byte) (*Chain, error) {
	if _, ok, err := store.Height(); err != nil {
		return nil, fmt.Errorf("chain: read height: %w", err)
	} else if ok {
		return nil, fmt.Errorf("chain: store already initialized")
	}

	genesis := block.GenesisBlock(genesisSeed, c.Now(), params)
	if err := store.Put(genesis.Index, genesis.Encode()); err != nil {
		return nil, fmt.Errorf("chain: persist genesis: %w", err)
	}

	return &Chain{
		store:  store,
		params: params,
		clock:  c,
		tip:    genesis,
		height: genesis.Index,
		utxo:   make(map[string][]txn.TxOutput),
	}, nil
}

func (c *Chain) loadTip(height uint64) error {
	blob, ok, err := c.store.Get(height)
	if err != nil {
		return fmt.Errorf("chain: load tip: %w", err)
	}
	if !ok {
		return fmt.Errorf("chain: missing block at reported height %d", height)
	}
	b, err := block.Decode(blob, decodeTx)
	if err != nil {
		return fmt.Errorf("chain: decode tip: %w", err)
	}
	c.tip = b
	c.height = height
	return nil
}

// Height returns the current chain height (the tip block's index).
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Tip returns the current tip block.
func (c *Chain) Tip() *block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip
}

// GetBlock loads the block at index from storage.
func (c *Chain) GetBlock(index uint64) (*block.Block, error) {
	blob, ok, err := c.store.Get(index)
	if err != nil {
		return nil, fmt.Errorf("chain: get block %d: %w", index, err)
	}
	if !ok {
		return nil, fmt.Errorf("chain: block %d not found", index)
	}
	return block.Decode(blob, decodeTx)
}

// window loads up to medianWindow trailing blocks ending at the
// current tip, for the median-timestamp rule.
func (c *Chain) window() ([]*block.Block, error) {
	start := uint64(0)
	if c.height+1 > medianWindow {
		start = c.height + 1 - medianWindow
	}
	out := make([]*block.Block, 0, medianWindow)
	for i := start; i <= c.height; i++ {
		b, err := c.GetBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Forge builds, signs, validates and appends a new block carrying txs,
// mirroring the teacher's ForgeBlock but routed through the shared
// validator core instead of an ad hoc check.
func (c *Chain) Forge(origin string, priv crypto.PrivateKey, txs []block.Transaction) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tipHash := block.HeaderHash(c.tip.Header)
	candidate, err := block.NewBlock(origin, tipHash[:], txs, c.height+1, priv, c.params, c.clock)
	if err != nil {
		return nil, fmt.Errorf("chain: build block: %w", err)
	}

	if err := c.appendLocked(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// Append validates candidate against the current tip and median
// window, then persists it as the new tip, mirroring the teacher's
// AddBlock (minus its bespoke signature-only check — the full
// validator core now runs).
func (c *Chain) Append(candidate *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(candidate)
}

func (c *Chain) appendLocked(candidate *block.Block) error {
	if candidate.Index != c.height+1 {
		return fmt.Errorf("chain: expected next index %d, got %d", c.height+1, candidate.Index)
	}

	win, err := c.window()
	if err != nil {
		return err
	}
	medianTs, err := block.MedianTimestamp(win)
	if err != nil {
		return fmt.Errorf("chain: compute median timestamp: %w", err)
	}

	if err := validator.ValidateBlock(medianTs, c.tip, candidate); err != nil {
		return err
	}

	spentThisBlock := make(map[string]bool)
	for _, tx := range candidate.Transactions {
		t, ok := tx.(*txn.Transaction)
		if !ok {
			continue
		}
		if err := c.verifyAgainstUTXO(t, spentThisBlock); err != nil {
			return fmt.Errorf("chain: transaction %s: %w", t.Hash(), err)
		}
		for _, in := range t.Vin {
			spentThisBlock[spendKey(in.TxID, in.Vout)] = true
		}
	}

	if err := c.store.Put(candidate.Index, candidate.Encode()); err != nil {
		return fmt.Errorf("chain: persist block: %w", err)
	}

	c.applyUTXO(candidate)
	c.tip = candidate
	c.height = candidate.Index
	return nil
}

// spendKey identifies a single (txid, vout) output reference, used to
// detect double-spends within one candidate block before any of its
// transactions have been applied to the UTXO cache.
func spendKey(txID []byte, vout int) string {
	return fmt.Sprintf("%x:%d", txID, vout)
}

// verifyAgainstUTXO checks signature ownership, double-spend freedom,
// and value conservation for tx against the chain's current UTXO
// cache and the outputs already claimed earlier in the same candidate
// block (spentThisBlock) — the cache itself is only updated once the
// whole block is accepted, so a same-block double-spend would
// otherwise go unnoticed. This is the UTXO-dependent half of
// transaction validity that txn.Transaction.Validate cannot perform on
// its own (spec §6.4), grounded on the teacher's
// Blockchain.VerifyTransaction.
func (c *Chain) verifyAgainstUTXO(tx *txn.Transaction, spentThisBlock map[string]bool) error {
	if tx.IsCoinbase() {
		return nil
	}

	prevTXs := make(map[string]*txn.Transaction)
	var inputTotal int64
	for _, in := range tx.Vin {
		if spentThisBlock[spendKey(in.TxID, in.Vout)] {
			return fmt.Errorf("double spend within block: txid=%x vout=%d", in.TxID, in.Vout)
		}
		outs, ok := c.utxo[string(in.TxID)]
		if !ok || in.Vout >= len(outs) || outs[in.Vout].PubKeyHash == nil {
			return fmt.Errorf("double spend or unknown output: txid=%x vout=%d", in.TxID, in.Vout)
		}
		inputTotal += outs[in.Vout].Value
		prevTXs[string(in.TxID)] = &txn.Transaction{ID: in.TxID, Vout: outs}
	}

	if err := tx.VerifySignatures(prevTXs); err != nil {
		return err
	}

	var outputTotal int64
	for _, out := range tx.Vout {
		outputTotal += out.Value
	}
	if outputTotal > inputTotal {
		return fmt.Errorf("outputs (%d) exceed inputs (%d)", outputTotal, inputTotal)
	}

	return nil
}

// applyUTXO consumes spent outputs and registers new ones for every
// transaction in b, mirroring the teacher's UTXOSet.Update.
func (c *Chain) applyUTXO(b *block.Block) {
	for _, gtx := range b.Transactions {
		t, ok := gtx.(*txn.Transaction)
		if !ok {
			continue
		}
		if !t.IsCoinbase() {
			for _, in := range t.Vin {
				outs := c.utxo[string(in.TxID)]
				if in.Vout < len(outs) {
					outs[in.Vout] = txn.TxOutput{Value: 0, PubKeyHash: nil}
				}
			}
		}
		c.utxo[string(t.ID)] = append([]txn.TxOutput(nil), t.Vout...)
	}
}

// reindexUTXO rebuilds the UTXO cache by replaying every stored block,
// mirroring the teacher's UTXOSet.Reindex.
func (c *Chain) reindexUTXO() error {
	c.utxo = make(map[string][]txn.TxOutput)
	for i := uint64(0); i <= c.height; i++ {
		b, err := c.GetBlock(i)
		if err != nil {
			return err
		}
		c.applyUTXO(b)
	}
	return nil
}

// SpendableOutputs finds unspent outputs belonging to pubKeyHash
// totaling at least amount, mirroring FindSpendableOutputs.
func (c *Chain) SpendableOutputs(pubKeyHash []byte, amount int64) (int64, map[string][]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unspent := make(map[string][]int)
	var accumulated int64

	for txID, outs := range c.utxo {
		for i, out := range outs {
			if out.PubKeyHash == nil {
				continue
			}
			if out.IsLockedWithKey(pubKeyHash) && accumulated < amount {
				accumulated += out.Value
				unspent[hex.EncodeToString([]byte(txID))] = append(unspent[hex.EncodeToString([]byte(txID))], i)
			}
		}
		if accumulated >= amount {
			break
		}
	}
	return accumulated, unspent
}

// Balance sums every unspent output locked to pubKeyHash.
func (c *Chain) Balance(pubKeyHash []byte) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, outs := range c.utxo {
		for _, out := range outs {
			if out.PubKeyHash != nil && out.IsLockedWithKey(pubKeyHash) {
				total += out.Value
			}
		}
	}
	return total
}

// ValidateStoredChain replays every persisted block through the
// validator core, mirroring a cold-start integrity check.
func (c *Chain) ValidateStoredChain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := make([]*block.Block, 0, c.height+1)
	for i := uint64(0); i <= c.height; i++ {
		b, err := c.GetBlock(i)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	return validator.ValidateChain(blocks)
}

// HeaderHashHex is a small display helper used by the API/CLI layers.
func HeaderHashHex(h block.BlockHeader) string {
	sum := block.HeaderHash(h)
	return hex.EncodeToString(sum[:])
}
