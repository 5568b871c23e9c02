// Package ratelimit provides a token-bucket ingress backstop, layered
// beneath the Secure Command Gateway's exact per-source sliding-window
// rate check.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config configures a RateLimiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the gateway's default ingress backstop: 100
// commands/sec sustained, bursting to 200.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 100,
		Burst:             200,
	}
}

// RateLimiter wraps golang.org/x/time/rate. Allow must pass two token
// buckets: the configured one, and a second bucket refilling at 60x the
// configured per-second rate with twice the burst. The second bucket is
// never tighter than the first, so it does not add a long-window limit.
type RateLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	perMinute *rate.Limiter
	config    Config
}

// New creates a new RateLimiter.
func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}

	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		perMinute: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond*60), cfg.Burst*2),
		config:    cfg,
	}
}

// Allow reports whether one event may proceed now.
func (r *RateLimiter) Allow() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Allow() && r.perMinute.Allow()
}

// Wait blocks until an event is permitted or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.RLock()
	limiter := r.limiter
	r.mu.RUnlock()
	return limiter.Wait(ctx)
}

// Reset replaces the underlying limiters with fresh ones at the
// configured rate.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
	r.perMinute = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond*60), r.config.Burst*2)
}

// PerSourceLimiter tracks an independent RateLimiter per command source id,
// so one misbehaving source cannot exhaust the budget shared by the rest
// of the fleet.
type PerSourceLimiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*RateLimiter
}

// NewPerSource creates a PerSourceLimiter using cfg for every new source.
func NewPerSource(cfg Config) *PerSourceLimiter {
	return &PerSourceLimiter{
		config:   cfg,
		limiters: make(map[string]*RateLimiter),
	}
}

// Allow reports whether sourceID may submit another command now,
// lazily creating that source's limiter on first use.
func (p *PerSourceLimiter) Allow(sourceID string) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[sourceID]
	if !ok {
		limiter = New(p.config)
		p.limiters[sourceID] = limiter
	}
	p.mu.Unlock()
	return limiter.Allow()
}

// Reset clears sourceID's limiter back to its configured rate.
func (p *PerSourceLimiter) Reset(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limiter, ok := p.limiters[sourceID]; ok {
		limiter.Reset()
	}
}

// Forget drops sourceID's limiter entirely, e.g. when a node leaves the
// fleet, so its bucket does not linger in memory forever.
func (p *PerSourceLimiter) Forget(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, sourceID)
}
