package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Store persists a Ledger's chain as an append-only newline-delimited
// JSON file, one Block per line. No third-party serialization library in
// the surrounding stack covers structured append-only logs (the pack's
// redis and yaml dependencies serve caching and configuration
// respectively, not durable local storage), so this uses encoding/json
// directly over a buffered os.File.
type Store struct {
	path string
}

// NewStore returns a Store for the block file at path. It does not touch
// the file; Append and WriteAll create it if absent.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// wireBlock is Block's on-disk shape. Transactions embed their Command
// and Signature as-is; encoding/json renders [32]byte fields as arrays of
// integers, which round-trips correctly though it is not human-friendly —
// acceptable for an internal recovery log nothing else reads.
type wireBlock struct {
	Index        uint64        `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	PrevHash     [32]byte      `json:"prev_hash"`
	Transactions []Transaction `json:"transactions"`
	Nonce        uint64        `json:"nonce"`
	Hash         [32]byte      `json:"hash"`
}

func toWire(b Block) wireBlock {
	return wireBlock{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		PrevHash:     b.PrevHash,
		Transactions: b.Transactions,
		Nonce:        b.Nonce,
		Hash:         b.Hash,
	}
}

func fromWire(w wireBlock) Block {
	return Block{
		Index:        w.Index,
		Timestamp:    w.Timestamp,
		PrevHash:     w.PrevHash,
		Transactions: w.Transactions,
		Nonce:        w.Nonce,
		Hash:         w.Hash,
	}
}

// Append writes a single block to the end of the file, fsyncing before
// returning so a crash immediately after Append cannot lose the block.
func (s *Store) Append(b Block) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open block store: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(toWire(b))
	if err != nil {
		return fmt.Errorf("ledger: marshal block %d: %w", b.Index, err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("ledger: write block %d: %w", b.Index, err)
	}
	return f.Sync()
}

// WriteAll truncates the store and writes the full chain, used after a
// ConsensusSwap replaces the local chain wholesale.
func (s *Store) WriteAll(chain []Block) error {
	f, err := os.OpenFile(s.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open block store: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, b := range chain {
		data, err := json.Marshal(toWire(b))
		if err != nil {
			return fmt.Errorf("ledger: marshal block %d: %w", b.Index, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("ledger: write block %d: %w", b.Index, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Load reads every block from the store in file order. If the file does
// not exist, Load returns an empty chain and no error — callers should
// seed a fresh genesis block in that case.
func (s *Store) Load() ([]Block, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open block store: %w", err)
	}
	defer f.Close()

	var chain []Block
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var w wireBlock
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, fmt.Errorf("ledger: decode block record: %w", err)
		}
		chain = append(chain, fromWire(w))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan block store: %w", err)
	}
	return chain, nil
}

// MarshalChain encodes a full chain as a JSON array of blocks, for
// exchange over the peer network.
func MarshalChain(chain []Block) ([]byte, error) {
	wire := make([]wireBlock, len(chain))
	for i, b := range chain {
		wire[i] = toWire(b)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal chain: %w", err)
	}
	return data, nil
}

// UnmarshalChain decodes a chain previously produced by MarshalChain. It
// performs no validation — callers must run IsInternallyValid before
// trusting the result.
func UnmarshalChain(data []byte) ([]Block, error) {
	var wire []wireBlock
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal chain: %w", err)
	}
	chain := make([]Block, len(wire))
	for i, w := range wire {
		chain[i] = fromWire(w)
	}
	return chain, nil
}

// LoadValidated loads the chain and validates it end-to-end, including
// every transaction's signature against verifier, before returning, per
// spec.md §5's reload-time requirement that a ledger never resumes serving
// from an unverified file.
func LoadValidated(path string, difficultyBits uint8, verifier Signer) ([]Block, error) {
	store := NewStore(path)
	chain, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	if !IsInternallyValid(chain, difficultyBits, verifier) {
		return nil, fmt.Errorf("ledger: block store at %s failed chain validation on reload", path)
	}
	return chain, nil
}
