package api

import (
	"encoding/hex"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/txn"
)

type jsonOutput struct {
	PubKeyHash string `json:"pub_key_hash"`
	Value      int64  `json:"value"`
}

type jsonInput struct {
	TxID      string `json:"txid"`
	Vout      int    `json:"vout"`
	Signature string `json:"signature,omitempty"`
}

type jsonTransaction struct {
	ID        string       `json:"id"`
	Coinbase  bool         `json:"coinbase"`
	Inputs    []jsonInput  `json:"inputs"`
	Outputs   []jsonOutput `json:"outputs"`
	Timestamp int64        `json:"timestamp"`
}

func toJSONTransaction(t block.Transaction) jsonTransaction {
	out := jsonTransaction{ID: t.Hash()}
	tx, ok := t.(*txn.Transaction)
	if !ok {
		return out
	}
	out.Coinbase = tx.IsCoinbase()
	out.Timestamp = tx.Timestamp
	for _, in := range tx.Vin {
		out.Inputs = append(out.Inputs, jsonInput{
			TxID:      hex.EncodeToString(in.TxID),
			Vout:      in.Vout,
			Signature: hex.EncodeToString(in.Signature),
		})
	}
	for _, o := range tx.Vout {
		out.Outputs = append(out.Outputs, jsonOutput{
			PubKeyHash: hex.EncodeToString(o.PubKeyHash),
			Value:      o.Value,
		})
	}
	return out
}

type jsonSignature struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

type jsonBlock struct {
	Index        uint64            `json:"index"`
	Origin       string            `json:"origin"`
	PrevHash     string            `json:"prev_hash"`
	MerkleRoot   string            `json:"merkle_root"`
	Timestamp    int64             `json:"timestamp"`
	Hash         string            `json:"hash"`
	Signatures   []jsonSignature   `json:"signatures"`
	Transactions []jsonTransaction `json:"transactions"`
}

func toJSONBlock(b *block.Block) jsonBlock {
	h := block.HeaderHash(b.Header)

	sigs := make([]jsonSignature, 0, len(b.Signatures))
	for _, s := range b.Signatures {
		sigs = append(sigs, jsonSignature{Signer: s.SignerAddr, Signature: hex.EncodeToString(s.Signature)})
	}

	txs := make([]jsonTransaction, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		txs = append(txs, toJSONTransaction(t))
	}

	return jsonBlock{
		Index:        b.Index,
		Origin:       b.Header.Origin,
		PrevHash:     hex.EncodeToString(b.Header.PrevHash),
		MerkleRoot:   hex.EncodeToString(b.Header.MerkleRoot),
		Timestamp:    b.Header.Timestamp,
		Hash:         hex.EncodeToString(h[:]),
		Signatures:   sigs,
		Transactions: txs,
	}
}
