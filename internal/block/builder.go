package block

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sole-chain/sole-poa/internal/clock"
	"github.com/sole-chain/sole-poa/internal/crypto"
	"github.com/sole-chain/sole-poa/internal/merkle"
	"github.com/sole-chain/sole-poa/internal/poa"
)

// ErrEmptyWindow is returned by MedianTimestamp when given no blocks.
var ErrEmptyWindow = errors.New("block: median timestamp window is empty")

// HeaderHash returns hash(canonicalEncode(header)) — the block's
// content-addressed identity (spec §4.4).
func HeaderHash(h BlockHeader) [32]byte {
	return crypto.Digest(EncodeHeader(h))
}

// merkleRootOf computes the Merkle root over the base-16-encoded
// hashes of txs, in list order.
func merkleRootOf(txs []Transaction) []byte {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = []byte(tx.Hash())
	}
	return merkle.Root(leaves)
}

// NewBlock builds and signs a new block. The returned block always
// validates rules 1 and 2 against the supplied prevHash, and its own
// embedded signature verifies; the caller is responsible for ensuring
// index and prevHash are consistent with chain state (spec §4.4).
func NewBlock(origin string, prevHash []byte, txs []Transaction, index uint64, priv crypto.PrivateKey, p poa.PoA, c clock.Clock) (*Block, error) {
	header := BlockHeader{
		Origin:     origin,
		PrevHash:   prevHash,
		MerkleRoot: merkleRootOf(txs),
		Timestamp:  c.Now(),
		Consensus:  p,
	}

	h := HeaderHash(header)
	sig, err := crypto.Sign(priv, h[:])
	if err != nil {
		return nil, fmt.Errorf("block: sign header: %w", err)
	}

	signerAddr := string(crypto.Address(crypto.Public(priv)))

	return &Block{
		Index:        index,
		Header:       header,
		Signatures:   []BlockSignature{{Signature: sig, SignerAddr: signerAddr}},
		Transactions: txs,
	}, nil
}

// GenesisBlock builds the genesis block: index 0, no signatures, no
// transactions, prevHash set verbatim to seed (spec §9 open question:
// the seed is never itself hashed), and the zero/empty origin address.
func GenesisBlock(seed []byte, timestamp int64, p poa.PoA) *Block {
	return &Block{
		Index: 0,
		Header: BlockHeader{
			Origin:     "",
			PrevHash:   seed,
			MerkleRoot: merkleRootOf(nil),
			Timestamp:  timestamp,
			Consensus:  p,
		},
		Signatures:   nil,
		Transactions: nil,
	}
}

// SortByIndex sorts blocks in ascending order of Index.
func SortByIndex(blocks []*Block) {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })
}

// MedianTimestamp computes the median of the timestamps of every block
// passed in; choosing the window (up to the last 11 blocks, spec §4.4)
// is the caller's job. It uses the corrected (non-off-by-one)
// even-length formula per spec §9's Open Question resolution: for an
// even-length sorted window of n timestamps, it averages and rounds
// ts[n/2-1] and ts[n/2], not ts[n/2] and ts[n/2+1].
func MedianTimestamp(blocks []*Block) (int64, error) {
	if len(blocks) == 0 {
		return 0, ErrEmptyWindow
	}
	if len(blocks) == 1 {
		return blocks[0].Header.Timestamp, nil
	}

	ts := make([]int64, len(blocks))
	for i, b := range blocks {
		ts[i] = b.Header.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	n := len(ts)
	k := n / 2
	if n%2 == 1 {
		return ts[k], nil
	}
	sum := ts[k-1] + ts[k]
	return roundDiv2(sum), nil
}

// roundDiv2 divides sum by two, rounding half away from zero.
func roundDiv2(sum int64) int64 {
	if sum >= 0 {
		return (sum + 1) / 2
	}
	return -((-sum + 1) / 2)
}
