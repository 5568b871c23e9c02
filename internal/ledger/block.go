package ledger

import (
	"crypto/sha256"
	"encoding/binary"
)

// ZeroHash is the genesis block's prev_hash: 32 zero bytes.
var ZeroHash [32]byte

// Block is a sealed set of transactions plus the hash-chain linkage.
// Fields mirror spec.md §3 exactly; Hash is always the recomputed value,
// never trusted from the wire without verification.
type Block struct {
	Index        uint64
	Timestamp    int64
	PrevHash     [32]byte
	Transactions []Transaction
	Nonce        uint64
	Hash         [32]byte
}

// computeHash returns SHA-256(index || timestamp || prev_hash ||
// canonical(transactions) || nonce), per spec.md §3's Block invariant.
func (b Block) computeHash() [32]byte {
	var buf []byte

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], b.Index)
	buf = append(buf, idx[:]...)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(b.Timestamp))
	buf = append(buf, ts[:]...)

	buf = append(buf, b.PrevHash[:]...)
	buf = append(buf, CanonicalEncodeTransactions(b.Transactions)...)

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.Nonce)
	buf = append(buf, nonce[:]...)

	return sha256.Sum256(buf)
}

// Seal recomputes and sets b.Hash from its current fields, used after
// mining settles on a nonce or to refresh the hash field before
// comparison.
func (b *Block) Seal() {
	b.Hash = b.computeHash()
}

// LeadingZeroBits counts the number of leading zero bits in hash.
func LeadingZeroBits(hash [32]byte) int {
	count := 0
	for _, byt := range hash {
		if byt == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if byt&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// NewGenesisBlock returns the chain's genesis block: index 0, all-zero
// prev_hash, no transactions.
func NewGenesisBlock(timestamp int64) Block {
	b := Block{
		Index:     0,
		Timestamp: timestamp,
		PrevHash:  ZeroHash,
	}
	b.Seal()
	return b
}
