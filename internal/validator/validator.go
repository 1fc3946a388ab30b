package validator

import (
	"fmt"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/crypto"
	"github.com/sole-chain/sole-poa/internal/merkle"
)

// medianWindow is the trailing window size used for the median
// timestamp rule (spec §4.4/§8.2: up to the last 11 blocks).
const medianWindow = 11

// ValidateBlock checks a candidate block against its predecessor, a
// median timestamp, and the PoA consensus parameters, in the order
// spec §4.5 specifies. Evaluation short-circuits on the first failure.
func ValidateBlock(medianTs int64, predecessor, candidate *block.Block) error {
	// 1. Every transaction is valid given candidate's timestamp.
	for i, tx := range candidate.Transactions {
		if err := tx.Validate(candidate.Header.Timestamp); err != nil {
			return newErr(KindBlockTx, candidate.Index, fmt.Sprintf("transaction %d invalid", i), err)
		}
	}

	// 2. Merkle root matches the declared root.
	computed := merkleRootOf(candidate.Transactions)
	if string(computed) != string(candidate.Header.MerkleRoot) {
		return newErr(KindBlockMerkleRoot, candidate.Index,
			fmt.Sprintf("computed %x, declared %x", computed, candidate.Header.MerkleRoot), nil)
	}

	// 3. Timestamp strictly exceeds the median.
	if candidate.Header.Timestamp <= medianTs {
		return newErr(KindBlockTimestamp, candidate.Index,
			fmt.Sprintf("timestamp %d does not exceed median %d", candidate.Header.Timestamp, medianTs), nil)
	}

	// 4. Declared prevHash matches the predecessor's header hash.
	predHash := block.HeaderHash(predecessor.Header)
	if string(candidate.Header.PrevHash) != string(predHash[:]) {
		return newErr(KindPrevBlockHash, candidate.Index,
			fmt.Sprintf("declared %x, computed %x", candidate.Header.PrevHash, predHash), nil)
	}

	// 5. Index is exactly one greater than the predecessor's.
	if candidate.Index != predecessor.Index+1 {
		return newErr(KindBlockIndex, candidate.Index,
			fmt.Sprintf("expected index %d, got %d", predecessor.Index+1, candidate.Index), nil)
	}

	// 6. Every signature verifies and its signer is an authorized
	// validator (spec §9: the reference implementation leaves this
	// unchecked; a complete validator must enforce it).
	poaParams := candidate.Header.Consensus
	candidateHash := block.HeaderHash(candidate.Header)
	for _, sig := range candidate.Signatures {
		pub, ok := poaParams.PublicKeyFor(sig.SignerAddr)
		if !ok {
			return newErr(KindBlockSigner, candidate.Index,
				fmt.Sprintf("signer %s is not an authorized validator", sig.SignerAddr), nil)
		}
		if !crypto.Verify(pub, sig.Signature, candidateHash[:]) {
			return newErr(KindBlockSignature, candidate.Index,
				fmt.Sprintf("signature from %s does not verify", sig.SignerAddr), nil)
		}
	}

	// 7. Origin is an authorized validator.
	if !poaParams.IsValidator(candidate.Header.Origin) {
		return newErr(KindBlockOrigin, candidate.Index,
			fmt.Sprintf("origin %s is not an authorized validator", candidate.Header.Origin), nil)
	}

	return nil
}

// VerifyBlockSignature verifies sig against the candidate's header
// hash under pub (spec C5: verifyBlockSig).
func VerifyBlockSignature(pub []byte, sig block.BlockSignature, candidate *block.Block) error {
	h := block.HeaderHash(candidate.Header)
	if !crypto.Verify(pub, sig.Signature, h[:]) {
		return newErr(KindBlockSignature, candidate.Index,
			fmt.Sprintf("signature from %s does not verify", sig.SignerAddr), nil)
	}
	return nil
}

// ValidateChain checks every block in blocks against its predecessor
// and a sliding window of up to 11 trailing timestamps (spec C5:
// validateChain). blocks need not be pre-sorted; ValidateChain sorts a
// local copy in descending index order before pairing predecessors.
func ValidateChain(blocks []*block.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	ordered := make([]*block.Block, len(blocks))
	copy(ordered, blocks)
	block.SortByIndex(ordered)
	descending := make([]*block.Block, len(ordered))
	for i, b := range ordered {
		descending[len(ordered)-1-i] = b
	}

	for i := 0; i < len(descending); i++ {
		candidate := descending[i]
		if candidate.Index == 0 {
			// Genesis has no predecessor and no median-timestamp rule.
			continue
		}

		start := i + 1
		end := start + medianWindow
		if end > len(descending) {
			end = len(descending)
		}
		window := descending[start:end]
		medianTs, err := block.MedianTimestamp(window)
		if err != nil {
			return newErr(KindMedianTimestamp, candidate.Index, "failed to compute median timestamp", err)
		}

		predecessor := findPredecessor(ordered, candidate.Index)
		if predecessor == nil {
			return newErr(KindPrevBlockHash, candidate.Index, "predecessor block not present in chain", nil)
		}

		if err := ValidateBlock(medianTs, predecessor, candidate); err != nil {
			return err
		}
	}

	return nil
}

func findPredecessor(ascending []*block.Block, index uint64) *block.Block {
	if index == 0 {
		return nil
	}
	for _, b := range ascending {
		if b.Index == index-1 {
			return b
		}
	}
	return nil
}

func merkleRootOf(txs []block.Transaction) []byte {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = []byte(tx.Hash())
	}
	return merkle.Root(leaves)
}
