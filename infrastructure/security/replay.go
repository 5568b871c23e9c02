// Package security provides replay protection for the command ledger's
// transaction admission window.
package security

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
)

// ReplayGuard tracks recently admitted transaction ids within a sliding
// TTL window, rejecting duplicates without requiring a background sweep
// goroutine: expirable.LRU evicts entries lazily on access and on its own
// internal janitor tick.
type ReplayGuard struct {
	window time.Duration
	seen   *expirable.LRU[string, time.Time]
	logger *logging.Logger
}

// NewReplayGuard creates a new ReplayGuard. window is how long a
// transaction id is remembered; maxSize bounds memory under a sustained
// flood (0 = the ledger's default of 100,000 entries).
func NewReplayGuard(window time.Duration, maxSize int, logger *logging.Logger) *ReplayGuard {
	if window <= 0 {
		window = 60 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &ReplayGuard{
		window: window,
		seen:   expirable.NewLRU[string, time.Time](maxSize, nil, window),
		logger: logger,
	}
}

// ValidateAndMark reports whether txID is fresh (not a replay) and, if so,
// marks it seen. Empty ids are always rejected.
func (g *ReplayGuard) ValidateAndMark(txID string) bool {
	if txID == "" {
		return false
	}

	if _, exists := g.seen.Get(txID); exists {
		if g.logger != nil {
			g.logger.WithFields(map[string]interface{}{
				"tx_id":  txID,
				"window": g.window,
			}).Warn("replayed transaction rejected")
		}
		return false
	}

	g.seen.Add(txID, time.Now())
	return true
}

// IsReplay reports whether txID has already been seen within the window,
// without marking it.
func (g *ReplayGuard) IsReplay(txID string) bool {
	if txID == "" {
		return false
	}
	_, exists := g.seen.Get(txID)
	return exists
}

// Size returns the current number of tracked transaction ids.
func (g *ReplayGuard) Size() int {
	return g.seen.Len()
}

// Clear removes all tracked transaction ids, used in tests and when the
// ledger is reset to genesis.
func (g *ReplayGuard) Clear() {
	g.seen.Purge()
}
