// Package peernet provides the abstract peer network spec.md §4.4's
// consensus monitor draws candidate chains from: cooperating nodes each
// hold their own view of the Command Ledger's chain, and the monitor
// asks the network for every peer's current candidate before picking the
// longest internally valid one.
package peernet

import (
	"context"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
)

// Network is the abstract peer network. Implementations never validate
// candidates themselves — that is the consensus monitor's job, via
// ledger.IsInternallyValid and ledger.Ledger.ConsensusSwap.
type Network interface {
	// Broadcast announces chain as this node's current candidate to every
	// reachable peer.
	Broadcast(ctx context.Context, chain []ledger.Block) error
	// Candidates returns every peer's most recently broadcast chain. A
	// peer that has broadcast nothing yet, or is unreachable, is simply
	// absent from the result — callers must not treat an empty result as
	// an error.
	Candidates(ctx context.Context) ([][]ledger.Block, error)
	// PeerCount reports how many peers this node currently tracks.
	PeerCount() int
}
