// Package txn provides the concrete UTXO-style transaction used to
// exercise the block/validator core end-to-end. The validation core
// only calls Hash and Validate of the block.Transaction contract (its
// third method, Bytes, serves block's codec); this package is the external transaction
// collaborator of spec §6.4, adapted from the teacher's
// transaction.go/utxo_set.go.
package txn

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sole-chain/sole-poa/internal/crypto"
)

// TxOutput is a spendable amount locked to a public-key hash.
type TxOutput struct {
	Value      int64
	PubKeyHash []byte
}

// IsLockedWithKey reports whether out can be spent by the owner of
// pubKeyHash.
func (out TxOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

// TxInput references a previous transaction's output.
type TxInput struct {
	TxID      []byte
	Vout      int
	Signature []byte
	PubKey    []byte
}

// UsesKey reports whether in was signed by the owner of pubKeyHash.
func (in TxInput) UsesKey(pubKeyHash []byte) bool {
	return bytes.Equal(crypto.HashPubKey(in.PubKey), pubKeyHash)
}

// Transaction is a coinbase or spending transaction. It implements
// block.Transaction (Hash/Validate/Bytes) without importing the block
// package, keeping the dependency direction collaborator → core.
type Transaction struct {
	ID        []byte
	Vin       []TxInput
	Vout      []TxOutput
	Timestamp int64
}

// maxFutureDrift bounds how far ahead of the containing block's
// timestamp a transaction may claim to have been created, mirroring
// the teacher's DriftTolerance (consensus.go) applied at tx scope.
const maxFutureDrift = 2 * 60 // seconds

// Hash returns the stable, hex-encoded transaction hash (spec §6.4).
func (tx *Transaction) Hash() string {
	return hex.EncodeToString(tx.ID)
}

// Bytes returns the transaction's own canonical encoding, used by
// block.Block's codec to frame transactions (see block/codec.go).
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.BigEndian, int64(len(tx.Vin)))
	for _, in := range tx.Vin {
		writeBytes(&buf, in.TxID)
		binary.Write(&buf, binary.BigEndian, int64(in.Vout))
		writeBytes(&buf, in.Signature)
		writeBytes(&buf, in.PubKey)
	}

	binary.Write(&buf, binary.BigEndian, int64(len(tx.Vout)))
	for _, out := range tx.Vout {
		binary.Write(&buf, binary.BigEndian, out.Value)
		writeBytes(&buf, out.PubKeyHash)
	}

	binary.Write(&buf, binary.BigEndian, tx.Timestamp)
	writeBytes(&buf, tx.ID)

	return buf.Bytes()
}

// FromBytes reconstructs a Transaction from bytes produced by Bytes.
// Registered as a block.TransactionDecoder by callers that decode
// blocks (internal/chain).
func FromBytes(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx := &Transaction{}

	var vinCount int64
	if err := binary.Read(r, binary.BigEndian, &vinCount); err != nil {
		return nil, fmt.Errorf("txn: decode input count: %w", err)
	}
	for i := int64(0); i < vinCount; i++ {
		var in TxInput
		var err error
		if in.TxID, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("txn: decode input %d txid: %w", i, err)
		}
		var vout int64
		if err := binary.Read(r, binary.BigEndian, &vout); err != nil {
			return nil, fmt.Errorf("txn: decode input %d vout: %w", i, err)
		}
		in.Vout = int(vout)
		if in.Signature, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("txn: decode input %d signature: %w", i, err)
		}
		if in.PubKey, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("txn: decode input %d pubkey: %w", i, err)
		}
		tx.Vin = append(tx.Vin, in)
	}

	var voutCount int64
	if err := binary.Read(r, binary.BigEndian, &voutCount); err != nil {
		return nil, fmt.Errorf("txn: decode output count: %w", err)
	}
	for i := int64(0); i < voutCount; i++ {
		var out TxOutput
		if err := binary.Read(r, binary.BigEndian, &out.Value); err != nil {
			return nil, fmt.Errorf("txn: decode output %d value: %w", i, err)
		}
		var err error
		if out.PubKeyHash, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("txn: decode output %d pubkeyhash: %w", i, err)
		}
		tx.Vout = append(tx.Vout, out)
	}

	if err := binary.Read(r, binary.BigEndian, &tx.Timestamp); err != nil {
		return nil, fmt.Errorf("txn: decode timestamp: %w", err)
	}
	id, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("txn: decode id: %w", err)
	}
	tx.ID = id

	return tx, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, int64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n int64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// computeID hashes the transaction's content (everything but ID
// itself), matching the teacher's Transaction.Hash/SerializeForHash.
func (tx *Transaction) computeID() []byte {
	var buf bytes.Buffer
	for _, in := range tx.Vin {
		buf.Write(in.TxID)
		binary.Write(&buf, binary.BigEndian, int64(in.Vout))
		buf.Write(in.PubKey)
		buf.Write(in.Signature)
	}
	for _, out := range tx.Vout {
		binary.Write(&buf, binary.BigEndian, out.Value)
		buf.Write(out.PubKeyHash)
	}
	binary.Write(&buf, binary.BigEndian, tx.Timestamp)
	h := sha256.Sum256(buf.Bytes())
	return h[:]
}

// IsCoinbase reports whether tx is a block-reward transaction.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && len(tx.Vin[0].TxID) == 0 && tx.Vin[0].Vout == -1
}

// Validate is the standalone validity predicate spec §6.4 requires:
// parameterised only by the containing block's timestamp, with no
// access to chain or UTXO state. It checks structural integrity (the
// transaction's ID matches its own content hash) and a timestamp
// drift bound; double-spend and value-conservation checks require
// UTXO state and live in internal/chain's verifyAgainstUTXO instead.
func (tx *Transaction) Validate(blockTimestamp int64) error {
	if !bytes.Equal(tx.ID, tx.computeID()) {
		return errors.New("txn: id does not match transaction content")
	}
	if !tx.IsCoinbase() && len(tx.Vin) == 0 {
		return errors.New("txn: non-coinbase transaction has no inputs")
	}
	if len(tx.Vout) == 0 {
		return errors.New("txn: transaction has no outputs")
	}
	for _, out := range tx.Vout {
		if out.Value <= 0 {
			return errors.New("txn: output amount must be positive")
		}
	}
	if tx.Timestamp > blockTimestamp+maxFutureDrift {
		return fmt.Errorf("txn: timestamp %d too far ahead of block timestamp %d", tx.Timestamp, blockTimestamp)
	}
	return nil
}

// NewCoinbase builds a block-reward transaction.
func NewCoinbase(to []byte, data string, amount int64, ts time.Time) *Transaction {
	if data == "" {
		data = fmt.Sprintf("reward to %s", to)
	}
	in := TxInput{TxID: nil, Vout: -1, Signature: nil, PubKey: []byte(data)}
	out := TxOutput{Value: amount, PubKeyHash: addressPayload(to)}
	tx := &Transaction{Vin: []TxInput{in}, Vout: []TxOutput{out}, Timestamp: ts.Unix()}
	tx.ID = tx.computeID()
	return tx
}

// addressPayload strips the version byte and checksum from a decoded
// base58 address, matching the teacher's TxOutput.Lock.
func addressPayload(address []byte) []byte {
	full, err := crypto.Base58Decode(address)
	if err != nil || len(full) < 5 {
		return nil
	}
	return full[1 : len(full)-4]
}
