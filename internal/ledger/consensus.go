package ledger

import (
	"fmt"
)

// ValidateBlock checks block against its explicit predecessor, the set of
// transaction keys already admitted earlier in the chain, and — when
// verifier is non-nil — every transaction's signature.
//
// predecessor is nil only for the genesis block. This takes the candidate
// block's own predecessor as an explicit parameter rather than comparing
// against whatever the caller considers the "current tip" — the original
// blockchain controller this was ported from compared every candidate
// against self.chain[-1], which misvalidates any block that is not
// appended to the current tip (e.g. while replaying a peer's chain, or
// validating a block that arrived out of order). Callers walking a full
// chain must pass each block's actual prior block.
//
// The genesis block is not mined, so the difficulty check applies only to
// blocks that have a predecessor.
func ValidateBlock(block Block, predecessor *Block, difficultyBits uint8, admittedKeys map[[32]byte]struct{}, verifier Signer) error {
	if predecessor == nil {
		if block.Index != 0 {
			return fmt.Errorf("ledger: non-genesis block %d has no predecessor", block.Index)
		}
		if block.PrevHash != ZeroHash {
			return fmt.Errorf("ledger: genesis block has non-zero prev_hash")
		}
	} else {
		if block.Index != predecessor.Index+1 {
			return fmt.Errorf("ledger: block index %d does not follow predecessor index %d", block.Index, predecessor.Index)
		}
		if block.PrevHash != predecessor.Hash {
			return fmt.Errorf("ledger: block %d prev_hash does not match predecessor hash", block.Index)
		}
	}

	if block.computeHash() != block.Hash {
		return fmt.Errorf("ledger: block %d hash does not match its recomputed contents", block.Index)
	}

	if predecessor != nil && LeadingZeroBits(block.Hash) < int(difficultyBits) {
		return fmt.Errorf("ledger: block %d does not satisfy difficulty %d", block.Index, difficultyBits)
	}

	for _, tx := range block.Transactions {
		if admittedKeys != nil {
			if _, dup := admittedKeys[tx.Key()]; dup {
				return fmt.Errorf("ledger: block %d contains already-admitted transaction %s", block.Index, tx.KeyString())
			}
		}
		if verifier != nil && !VerifyTransaction(verifier, tx) {
			return fmt.Errorf("ledger: block %d contains transaction %s with an invalid signature", block.Index, tx.KeyString())
		}
	}

	return nil
}

// IsInternallyValid walks chain end-to-end, validating every block against
// its actual predecessor, verifying every transaction's signature against
// verifier, and rejecting any chain containing a duplicate transaction key.
// An empty chain, or one whose first block is not a valid genesis block,
// is invalid. verifier may be nil, in which case signatures are not
// checked — used only by tests that construct chains with no real signer
// in scope.
func IsInternallyValid(chain []Block, difficultyBits uint8, verifier Signer) bool {
	if len(chain) == 0 {
		return false
	}

	admitted := make(map[[32]byte]struct{})

	if err := ValidateBlock(chain[0], nil, difficultyBits, admitted, verifier); err != nil {
		return false
	}
	for _, tx := range chain[0].Transactions {
		admitted[tx.Key()] = struct{}{}
	}

	for i := 1; i < len(chain); i++ {
		predecessor := chain[i-1]
		if err := ValidateBlock(chain[i], &predecessor, difficultyBits, admitted, verifier); err != nil {
			return false
		}
		for _, tx := range chain[i].Transactions {
			admitted[tx.Key()] = struct{}{}
		}
	}

	return true
}
