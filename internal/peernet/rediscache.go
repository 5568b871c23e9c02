package peernet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
)

// RedisCache shares candidate chains across nodes via Redis, for
// multi-node deployments where a direct websocket mesh is impractical
// (e.g. nodes behind separate NAT boundaries, or a large peer count where
// dialing every peer on every consensus-monitor tick is wasteful).
// Candidates are stored under one key per node, with a TTL slightly
// longer than the consensus monitor's cadence so a stalled peer's stale
// candidate ages out instead of being considered forever.
type RedisCache struct {
	client  *redis.Client
	nodeID  string
	prefix  string
	entryTTL time.Duration
}

// DefaultCandidateTTL exceeds spec.md §4.4's 5s consensus-monitor cadence
// by a comfortable margin so a single missed tick does not evict a peer.
const DefaultCandidateTTL = 20 * time.Second

// NewRedisCache wraps an existing redis client. prefix namespaces keys
// (e.g. "sentinel:candidates:") for shared Redis instances.
func NewRedisCache(client *redis.Client, nodeID, prefix string, entryTTL time.Duration) *RedisCache {
	if entryTTL <= 0 {
		entryTTL = DefaultCandidateTTL
	}
	return &RedisCache{client: client, nodeID: nodeID, prefix: prefix, entryTTL: entryTTL}
}

func (c *RedisCache) key(nodeID string) string {
	return c.prefix + nodeID
}

// Broadcast publishes this node's candidate chain under its own key.
func (c *RedisCache) Broadcast(ctx context.Context, chain []ledger.Block) error {
	data, err := ledger.MarshalChain(chain)
	if err != nil {
		return fmt.Errorf("peernet: marshal candidate chain: %w", err)
	}
	if err := c.client.Set(ctx, c.key(c.nodeID), data, c.entryTTL).Err(); err != nil {
		return fmt.Errorf("peernet: redis set: %w", err)
	}
	return nil
}

// Candidates scans every node key under prefix (excluding this node's
// own) and decodes each stored chain. Keys with no TTL remaining have
// already been evicted by Redis and are simply absent from the scan.
func (c *RedisCache) Candidates(ctx context.Context) ([][]ledger.Block, error) {
	var out [][]ledger.Block
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == c.key(c.nodeID) {
			continue
		}
		data, err := c.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("peernet: redis get %s: %w", key, err)
		}
		chain, err := ledger.UnmarshalChain(data)
		if err != nil {
			continue
		}
		out = append(out, chain)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("peernet: redis scan: %w", err)
	}
	return out, nil
}

// PeerCount counts the distinct node keys currently present, excluding
// this node's own.
func (c *RedisCache) PeerCount() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if iter.Val() != c.key(c.nodeID) {
			count++
		}
	}
	return count
}
