package ledger

import (
	"crypto/sha256"
	"encoding/binary"
)

// Command is the opaque-bytes-plus-semantic-type payload a Transaction
// carries. Kind names the command's semantic type (e.g.
// "navigation.set_altitude"); Data is its serialized parameters, opaque
// to the Ledger — only the Gateway and the command's ultimate handler
// interpret it.
type Command struct {
	Kind string
	Data []byte
}

// CanonicalEncode returns the deterministic byte encoding of c, used both
// as the signing input and as part of a Transaction's unique key.
func (c Command) CanonicalEncode() []byte {
	return CanonicalEncode(map[string]interface{}{
		"kind": c.Kind,
		"data": c.Data,
	})
}

// Transaction is a signed, timestamped Command from a single source,
// admitted to the Ledger's pending pool before being batched into a
// Block.
type Transaction struct {
	Timestamp int64 // unix nanoseconds
	SourceID  string
	Command   Command
	Signature []byte
}

// canonicalKeyInput returns command || timestamp || source_id, exactly
// the concatenation spec.md §3 defines the transaction's unique key
// over — deliberately not a canonical map, since the spec names a literal
// concatenation rather than a structured encoding.
func (t Transaction) canonicalKeyInput() []byte {
	buf := append([]byte(nil), t.Command.CanonicalEncode()...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(t.Timestamp))
	buf = append(buf, ts[:]...)
	buf = append(buf, t.SourceID...)
	return buf
}

// Key returns the transaction's unique key: SHA-256 of
// canonical(command) || timestamp || source_id.
func (t Transaction) Key() [32]byte {
	return sha256.Sum256(t.canonicalKeyInput())
}

// KeyString returns Key hex-encoded, for use as a map/cache key.
func (t Transaction) KeyString() string {
	k := t.Key()
	return hexString(k[:])
}

// canonicalEncodeFull returns the deterministic encoding of every field,
// including the signature, used when canonically encoding a Block's
// transaction list for hashing.
func (t Transaction) canonicalEncodeFull() []byte {
	return CanonicalEncode(map[string]interface{}{
		"command":   t.Command.CanonicalEncode(),
		"timestamp": t.Timestamp,
		"source_id": t.SourceID,
		"signature": t.Signature,
	})
}

// CanonicalEncodeTransactions deterministically encodes an ordered list
// of transactions, preserving their order (pending-pool admission order,
// not re-sorted — only map keys are sorted by the canonical encoder).
func CanonicalEncodeTransactions(txs []Transaction) []byte {
	elems := make([]interface{}, len(txs))
	for i, tx := range txs {
		elems[i] = tx.canonicalEncodeFull()
	}
	return CanonicalEncode(elems)
}

const hexDigits = "0123456789abcdef"

func hexString(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
