package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/sole-chain/sole-poa/internal/poa"
)

// Canonical encoding (spec §4.2): every entity has exactly one byte
// representation, built from length-prefixed fields and fixed-width
// big-endian integers. Signature sets are sorted before encoding
// (spec §3's total order) so two honest nodes holding the same set of
// signatures always produce identical bytes — insertion order would
// break determinism.

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putInt64(buf *bytes.Buffer, v int64) {
	putUint64(buf, uint64(v))
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	n, err := r.Read(b[:])
	if err != nil || n != 4 {
		return 0, fmt.Errorf("block: decode uint32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	n, err := r.Read(b[:])
	if err != nil || n != 8 {
		return 0, fmt.Errorf("block: decode uint64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n > 0 {
		read, err := r.Read(out)
		if err != nil || uint32(read) != n {
			return nil, fmt.Errorf("block: decode bytes: short read")
		}
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodePoA writes the canonical encoding of a PoA parameter record.
func EncodePoA(buf *bytes.Buffer, p poa.PoA) {
	putUint32(buf, uint32(len(p.ValidatorSet)))
	for _, v := range p.ValidatorSet {
		putString(buf, v.Address)
		putBytes(buf, v.PublicKey)
	}
	putInt64(buf, p.BlockPeriod)
	putUint32(buf, uint32(p.GenerationLimit))
	putUint32(buf, uint32(p.SigningLimit))
	putUint32(buf, uint32(p.Threshold))
	putUint32(buf, uint32(p.MinTxs))
}

// DecodePoA reads back a PoA parameter record written by EncodePoA.
func DecodePoA(r *bytes.Reader) (poa.PoA, error) {
	count, err := readUint32(r)
	if err != nil {
		return poa.PoA{}, err
	}
	validatorSet := make([]poa.Validator, count)
	for i := range validatorSet {
		addr, err := readString(r)
		if err != nil {
			return poa.PoA{}, err
		}
		pubKey, err := readBytes(r)
		if err != nil {
			return poa.PoA{}, err
		}
		validatorSet[i] = poa.Validator{Address: addr, PublicKey: pubKey}
	}
	blockPeriod, err := readInt64(r)
	if err != nil {
		return poa.PoA{}, err
	}
	genLimit, err := readUint32(r)
	if err != nil {
		return poa.PoA{}, err
	}
	signLimit, err := readUint32(r)
	if err != nil {
		return poa.PoA{}, err
	}
	threshold, err := readUint32(r)
	if err != nil {
		return poa.PoA{}, err
	}
	minTxs, err := readUint32(r)
	if err != nil {
		return poa.PoA{}, err
	}
	return poa.PoA{
		ValidatorSet:    validatorSet,
		BlockPeriod:     blockPeriod,
		GenerationLimit: int(genLimit),
		SigningLimit:    int(signLimit),
		Threshold:       int(threshold),
		MinTxs:          int(minTxs),
	}, nil
}

// EncodeHeader writes the canonical encoding of a BlockHeader:
// origin, length-prefixed prevHash, length-prefixed merkleRoot,
// fixed-width timestamp, then the recursive PoA encoding.
func EncodeHeader(h BlockHeader) []byte {
	var buf bytes.Buffer
	putString(&buf, h.Origin)
	putBytes(&buf, h.PrevHash)
	putBytes(&buf, h.MerkleRoot)
	putInt64(&buf, h.Timestamp)
	EncodePoA(&buf, h.Consensus)
	return buf.Bytes()
}

// DecodeHeader reads back a BlockHeader written by EncodeHeader.
func DecodeHeader(data []byte) (BlockHeader, error) {
	r := bytes.NewReader(data)
	origin, err := readString(r)
	if err != nil {
		return BlockHeader{}, err
	}
	prevHash, err := readBytes(r)
	if err != nil {
		return BlockHeader{}, err
	}
	merkleRoot, err := readBytes(r)
	if err != nil {
		return BlockHeader{}, err
	}
	timestamp, err := readInt64(r)
	if err != nil {
		return BlockHeader{}, err
	}
	consensus, err := DecodePoA(r)
	if err != nil {
		return BlockHeader{}, err
	}
	return BlockHeader{
		Origin:     origin,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Consensus:  consensus,
	}, nil
}

// EncodeSignature writes the canonical encoding of a BlockSignature:
// the signature bytes followed by the signer's address.
func EncodeSignature(buf *bytes.Buffer, s BlockSignature) {
	putBytes(buf, s.Signature)
	putString(buf, s.SignerAddr)
}

// DecodeSignature reads back a BlockSignature written by EncodeSignature.
func DecodeSignature(r *bytes.Reader) (BlockSignature, error) {
	sig, err := readBytes(r)
	if err != nil {
		return BlockSignature{}, err
	}
	addr, err := readString(r)
	if err != nil {
		return BlockSignature{}, err
	}
	return BlockSignature{Signature: sig, SignerAddr: addr}, nil
}

// sortedSignatures returns a copy of sigs sorted by the total order
// of spec §3 (signature bytes first, then address).
func sortedSignatures(sigs []BlockSignature) []BlockSignature {
	out := make([]BlockSignature, len(sigs))
	copy(out, sigs)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Encode writes the canonical encoding of a whole Block: index,
// header, the signature set (sorted, length-prefixed), then the
// transaction list (length-prefixed, in list order — order is part of
// the block's identity).
func (b *Block) Encode() []byte {
	var buf bytes.Buffer
	putUint64(&buf, b.Index)
	putBytes(&buf, EncodeHeader(b.Header))

	sorted := sortedSignatures(b.Signatures)
	putUint32(&buf, uint32(len(sorted)))
	for _, s := range sorted {
		EncodeSignature(&buf, s)
	}

	putUint32(&buf, uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		putBytes(&buf, tx.Bytes())
	}

	return buf.Bytes()
}

// Decode reconstructs a Block from bytes produced by Encode. decodeTx
// reconstructs each transaction from its own canonical bytes; decoding
// is total — malformed input always returns an error, never panics.
func Decode(data []byte, decodeTx TransactionDecoder) (*Block, error) {
	r := bytes.NewReader(data)

	index, err := readUint64(r)
	if err != nil {
		return nil, fmt.Errorf("block: decode index: %w", err)
	}

	headerBytes, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("block: decode header: %w", err)
	}
	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("block: decode header: %w", err)
	}

	sigCount, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("block: decode signature count: %w", err)
	}
	signatures := make([]BlockSignature, sigCount)
	for i := range signatures {
		s, err := DecodeSignature(r)
		if err != nil {
			return nil, fmt.Errorf("block: decode signature %d: %w", i, err)
		}
		signatures[i] = s
	}

	txCount, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("block: decode transaction count: %w", err)
	}
	transactions := make([]Transaction, txCount)
	for i := range transactions {
		txBytes, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("block: decode transaction %d: %w", i, err)
		}
		tx, err := decodeTx(txBytes)
		if err != nil {
			return nil, fmt.Errorf("block: decode transaction %d: %w", i, err)
		}
		transactions[i] = tx
	}

	return &Block{
		Index:        index,
		Header:       header,
		Signatures:   signatures,
		Transactions: transactions,
	}, nil
}
