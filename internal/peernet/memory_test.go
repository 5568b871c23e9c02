package peernet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
)

func TestInMemoryBroadcastVisibleToOtherNodes(t *testing.T) {
	hub := NewHub()
	alice := NewInMemory("alice", hub)
	bob := NewInMemory("bob", hub)

	chain := []ledger.Block{ledger.NewGenesisBlock(1000)}
	require.NoError(t, alice.Broadcast(context.Background(), chain))

	candidates, err := bob.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, chain[0].Hash, candidates[0][0].Hash)

	assert.Equal(t, 1, bob.PeerCount())
}

func TestInMemoryExcludesOwnBroadcast(t *testing.T) {
	hub := NewHub()
	alice := NewInMemory("alice", hub)

	chain := []ledger.Block{ledger.NewGenesisBlock(1000)}
	require.NoError(t, alice.Broadcast(context.Background(), chain))

	candidates, err := alice.Candidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, 0, alice.PeerCount())
}
