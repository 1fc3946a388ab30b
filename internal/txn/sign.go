package txn

import (
	"bytes"
	"errors"

	"github.com/sole-chain/sole-poa/internal/crypto"
)

// trimmedCopy returns a copy of tx with signatures and public keys
// stripped from every input, the shape that gets signed/verified —
// matching the teacher's Transaction.TrimmedCopy.
func (tx *Transaction) trimmedCopy() *Transaction {
	inputs := make([]TxInput, len(tx.Vin))
	for i, in := range tx.Vin {
		inputs[i] = TxInput{TxID: in.TxID, Vout: in.Vout}
	}
	outputs := make([]TxOutput, len(tx.Vout))
	copy(outputs, tx.Vout)
	return &Transaction{ID: tx.ID, Vin: inputs, Vout: outputs, Timestamp: tx.Timestamp}
}

// New builds and signs a spending transaction from already-selected
// inputs and outputs, mirroring the teacher's NewUTXOTransaction (minus
// its wallet-file and UTXO-set lookups, which the caller resolves
// before calling New — this package stays independent of chain state).
func New(vin []TxInput, vout []TxOutput, ts int64, priv crypto.PrivateKey, prevTXs map[string]*Transaction) (*Transaction, error) {
	tx := &Transaction{Vin: vin, Vout: vout, Timestamp: ts}
	tx.ID = tx.computeID()
	if err := tx.Sign(priv, prevTXs); err != nil {
		return nil, err
	}
	return tx, nil
}

// Sign signs every input of tx using priv, given the previous
// transactions each input spends from, then recomputes tx.ID so it
// covers the new signatures.
func (tx *Transaction) Sign(priv crypto.PrivateKey, prevTXs map[string]*Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	for _, in := range tx.Vin {
		prev, ok := prevTXs[string(in.TxID)]
		if !ok || prev == nil {
			return errors.New("txn: previous transaction not found for input")
		}
	}

	txCopy := tx.trimmedCopy()

	for i, in := range tx.Vin {
		prev := prevTXs[string(in.TxID)]
		txCopy.Vin[i].Signature = nil
		txCopy.Vin[i].PubKey = prev.Vout[in.Vout].PubKeyHash
		txCopy.ID = txCopy.computeID()
		txCopy.Vin[i].PubKey = nil

		sig, err := crypto.Sign(priv, txCopy.ID)
		if err != nil {
			return err
		}
		tx.Vin[i].Signature = sig
	}

	tx.ID = tx.computeID()
	return nil
}

// VerifySignatures checks every input's signature against the output
// it claims to spend, given the previous transactions.
func (tx *Transaction) VerifySignatures(prevTXs map[string]*Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	for _, in := range tx.Vin {
		prev, ok := prevTXs[string(in.TxID)]
		if !ok || prev == nil {
			return errors.New("txn: previous transaction not found for input")
		}
	}

	txCopy := tx.trimmedCopy()

	for i, in := range tx.Vin {
		prev := prevTXs[string(in.TxID)]

		signerHash := crypto.HashPubKey(in.PubKey)
		if !bytes.Equal(signerHash, prev.Vout[in.Vout].PubKeyHash) {
			return errors.New("txn: input signer does not own the referenced output")
		}

		txCopy.Vin[i].Signature = nil
		txCopy.Vin[i].PubKey = prev.Vout[in.Vout].PubKeyHash
		txCopy.ID = txCopy.computeID()
		txCopy.Vin[i].PubKey = nil

		if !crypto.Verify(in.PubKey, in.Signature, txCopy.ID) {
			return errors.New("txn: signature does not verify")
		}
	}

	return nil
}
