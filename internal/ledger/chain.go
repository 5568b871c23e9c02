// Package ledger implements the Command Ledger: an append-only
// hash-chained log with proof-of-work blocks, signature verification,
// batched transaction admission, and longest-valid-chain consensus.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/security"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// Config holds the Ledger's tunables, all overridable via the recognized
// configuration options in spec.md §6.
type Config struct {
	MaxPending     int           // 100
	BatchThreshold int           // 10
	DifficultyBits uint8         // default 16
	MiningBudget   time.Duration // 5s
	TxTTL          time.Duration // 60s
}

// DefaultConfig returns spec.md §4.4's literal defaults.
func DefaultConfig() Config {
	return Config{
		MaxPending:     100,
		BatchThreshold: 10,
		DifficultyBits: 16,
		MiningBudget:   MiningBudget,
		TxTTL:          60 * time.Second,
	}
}

// Rejection is the typed rejection submit_command surfaces per spec.md §7.
type Rejection string

const (
	RejectionNone             Rejection = ""
	RejectionLedgerFull       Rejection = "LedgerFull"
	RejectionSignatureInvalid Rejection = "SignatureInvalid"
	RejectionReplayed         Rejection = "Replayed"
)

// Ledger owns its Chain and Pending Pool exclusively — no other component
// holds a mutable reference, per spec.md §5's shared-resource policy.
type Ledger struct {
	mu sync.Mutex

	chain   []Block
	pending []Transaction

	cfg    Config
	signer Signer
	replay *security.ReplayGuard

	bus    *eventbus.Bus
	logger *logging.Logger
	store  *Store
}

// New creates a Ledger seeded with a genesis block at the given time.
func New(cfg Config, signer Signer, bus *eventbus.Bus, logger *logging.Logger) *Ledger {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultConfig().MaxPending
	}
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = DefaultConfig().BatchThreshold
	}
	if cfg.MiningBudget <= 0 {
		cfg.MiningBudget = MiningBudget
	}
	if cfg.TxTTL <= 0 {
		cfg.TxTTL = DefaultConfig().TxTTL
	}

	genesis := NewGenesisBlock(time.Now().UnixNano())
	return &Ledger{
		chain:  []Block{genesis},
		cfg:    cfg,
		signer: signer,
		replay: security.NewReplayGuard(cfg.TxTTL, 0, logger),
		bus:    bus,
		logger: logger,
	}
}

// NewFromPath creates a Ledger whose chain is restored from a persisted
// block store at path. If the store is absent or empty, the Ledger starts
// from a fresh genesis block, which is written to the store; if the stored
// chain fails validation, NewFromPath returns an error. Subsequent mined
// blocks are appended to the same store.
func NewFromPath(path string, cfg Config, signer Signer, bus *eventbus.Bus, logger *logging.Logger) (*Ledger, error) {
	if cfg.DifficultyBits == 0 {
		cfg.DifficultyBits = DefaultConfig().DifficultyBits
	}

	l := New(cfg, signer, bus, logger)
	l.store = NewStore(path)

	restored, err := LoadValidated(path, cfg.DifficultyBits, signer)
	if err != nil {
		return nil, err
	}
	if len(restored) > 0 {
		l.chain = restored
	} else if err := l.store.WriteAll(l.chain); err != nil {
		return nil, err
	}
	return l, nil
}

// Tip returns the current chain head.
func (l *Ledger) Tip() Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain[len(l.chain)-1]
}

// Len returns the chain's block count, including genesis.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chain)
}

// PendingLen returns the number of transactions currently pending.
func (l *Ledger) PendingLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Submit admits tx to the pending pool. Rejects if the pool is full, the
// signature is invalid, or tx is a replay / outside the TTL window. When
// the pool reaches BatchThreshold, a block is mined synchronously before
// Submit returns — callers that want this offloaded should run Submit
// itself inside a worker-pool task.
func (l *Ledger) Submit(ctx context.Context, tx Transaction) (Rejection, error) {
	if !VerifyTransaction(l.signer, tx) {
		return RejectionSignatureInvalid, nil
	}

	now := time.Now()
	if d := now.Sub(time.Unix(0, tx.Timestamp)); d > l.cfg.TxTTL || d < -l.cfg.TxTTL {
		return RejectionReplayed, nil
	}
	if !l.replay.ValidateAndMark(tx.KeyString()) {
		return RejectionReplayed, nil
	}

	l.mu.Lock()
	if len(l.pending) >= l.cfg.MaxPending {
		l.mu.Unlock()
		return RejectionLedgerFull, nil
	}
	l.pending = append(l.pending, tx)
	shouldMine := len(l.pending) >= l.cfg.BatchThreshold
	l.mu.Unlock()

	if shouldMine {
		if _, err := l.MineBlock(ctx); err != nil {
			l.emitMiningFailure(err)
			return RejectionNone, nil
		}
	}
	return RejectionNone, nil
}

// MineBlock builds a candidate block from the pending pool and performs
// proof-of-work. On success the block is appended to the chain, the
// pending pool is cleared, and a BlockCreated event is emitted. On budget
// exhaustion the pending pool is left untouched and
// ErrMiningBudgetExceeded is returned — this is not fatal.
func (l *Ledger) MineBlock(ctx context.Context) (*Block, error) {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return nil, nil
	}
	tip := l.chain[len(l.chain)-1]
	txs := append([]Transaction(nil), l.pending...)
	l.mu.Unlock()

	candidate := Block{
		Index:        tip.Index + 1,
		Timestamp:    time.Now().UnixNano(),
		PrevHash:     tip.Hash,
		Transactions: txs,
	}

	mined, err := mine(ctx, candidate, l.cfg.DifficultyBits, l.cfg.MiningBudget)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	// Re-validate against the current tip: another mining cycle may have
	// advanced the chain while this one was running proof-of-work.
	tip = l.chain[len(l.chain)-1]
	if mined.PrevHash != tip.Hash {
		l.mu.Unlock()
		return nil, fmt.Errorf("ledger: chain advanced during mining, retry")
	}
	if err := ValidateBlock(mined, &tip, l.cfg.DifficultyBits, l.admittedKeysLocked(), l.signer); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("ledger: mined block failed validation: %w", err)
	}
	l.chain = append(l.chain, mined)
	l.pending = l.pending[:0]
	store := l.store
	l.mu.Unlock()

	if store != nil {
		if err := store.Append(mined); err != nil && l.logger != nil {
			l.logger.LogLedgerOperation(ctx, hexString(mined.Hash[:]), "persist_block", err)
		}
	}

	l.emitBlockCreated(mined)
	return &mined, nil
}

// admittedKeysLocked returns the set of transaction keys already present
// in the chain. Must be called with l.mu held.
func (l *Ledger) admittedKeysLocked() map[[32]byte]struct{} {
	keys := make(map[[32]byte]struct{})
	for _, b := range l.chain {
		for _, tx := range b.Transactions {
			keys[tx.Key()] = struct{}{}
		}
	}
	return keys
}

// History yields every admitted transaction in chain order, skipping
// genesis.
func (l *Ledger) History() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Transaction
	for _, b := range l.chain[1:] {
		out = append(out, b.Transactions...)
	}
	return out
}

// Snapshot returns a copy of the current chain, for peer exchange and
// consensus comparisons.
func (l *Ledger) Snapshot() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Block(nil), l.chain...)
}

// ValidateChain reports whether the current chain still passes
// IsInternallyValid under this Ledger's own signer, including per-
// transaction signature verification. The System Controller's consensus
// monitor calls this on every tick to detect local corruption.
func (l *Ledger) ValidateChain() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return IsInternallyValid(l.chain, l.cfg.DifficultyBits, l.signer)
}

// ConsensusSwap atomically replaces the local chain with candidate if it
// (a) is internally valid end-to-end, (b) is strictly longer than the
// current chain, and (c) shares a common prefix with the current chain up
// to at least genesis, per spec.md §4.4. Applying the same candidate
// twice is idempotent: the second call observes the (now-identical)
// chain and the comparisons are no-ops.
func (l *Ledger) ConsensusSwap(candidate []Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !IsInternallyValid(candidate, l.cfg.DifficultyBits, l.signer) {
		return false
	}
	if len(candidate) <= len(l.chain) {
		return false
	}
	if !sharesGenesis(candidate, l.chain) {
		return false
	}

	l.chain = append([]Block(nil), candidate...)
	if l.store != nil {
		if err := l.store.WriteAll(candidate); err != nil && l.logger != nil {
			l.logger.LogLedgerOperation(context.Background(), "", "persist_consensus_swap", err)
		}
	}
	return true
}

func sharesGenesis(a, b []Block) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return a[0].Hash == b[0].Hash
}

func (l *Ledger) emitBlockCreated(b Block) {
	if l.bus == nil {
		return
	}
	_ = l.bus.Publish(eventbus.New(eventbus.KindBlockCreated, "ledger", eventbus.PriorityNormal, b))
}

func (l *Ledger) emitMiningFailure(err error) {
	if l.bus != nil {
		_ = l.bus.Publish(eventbus.New(eventbus.KindError, "ledger", eventbus.PriorityNormal,
			cerrors.LedgerError("mine_block", err)))
	}
	if l.logger != nil {
		l.logger.LogLedgerOperation(context.Background(), "", "mine_block", err)
	}
}

// EmitConsensusFailure publishes a ConsensusFailure event, called by the
// System Controller's consensus monitor when the local chain fails
// validation and no recovery candidate exists.
func (l *Ledger) EmitConsensusFailure(reason string) {
	if l.bus == nil {
		return
	}
	_ = l.bus.Publish(eventbus.New(eventbus.KindConsensusFailure, "ledger", eventbus.PriorityCritical,
		cerrors.ConsensusFailure(reason)))
}

// EmitConsensusRecovery publishes a ConsensusRecovery event, called once
// the controller has successfully swapped in a recovered chain.
func (l *Ledger) EmitConsensusRecovery(blockCount int) {
	if l.bus == nil {
		return
	}
	_ = l.bus.Publish(eventbus.New(eventbus.KindConsensusRecovery, "ledger", eventbus.PriorityHigh, blockCount))
}
