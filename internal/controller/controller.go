// Package controller implements the System Controller: three concurrent
// tasks (event pump, update loop, consensus monitor) with graceful,
// bounded-drain cancellation, per spec.md §4.8. The lifecycle shape —
// context.CancelFunc + sync.WaitGroup + time.Ticker, a Start/Stop pair
// guarded by a running flag — follows
// internal/app/services/automation/scheduler.go's Scheduler.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/errorfabric"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/gateway"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/peernet"
)

// DrainWindow is how long Stop waits for the three tasks to exit
// gracefully before returning, per spec.md §4.8.
const DrainWindow = 2 * time.Second

// ConsensusQuerySpec is the cron schedule for the consensus monitor,
// spec.md §4.8's "every 5s".
const ConsensusQuerySpec = "@every 5s"

// DefaultProcessingRateHz is the update loop's default tick rate,
// spec.md §6's `ai_processing_rate` default.
const DefaultProcessingRateHz = 25.0

// Config configures a Controller's concurrent tasks.
type Config struct {
	ProcessingRateHz float64
	DifficultyBits   uint8
}

// DefaultConfig returns spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{ProcessingRateHz: DefaultProcessingRateHz, DifficultyBits: 16}
}

// Controller runs the Component Registry's update loop, drains the
// event bus, and monitors ledger consensus, all cancellable together.
type Controller struct {
	cfg Config

	registry *component.Registry
	chain    *ledger.Ledger
	network  peernet.Network
	gateway  *gateway.Gateway
	fabric   *errorfabric.Fabric
	bus      *eventbus.Bus
	logger   *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	cron    *cron.Cron
}

// New builds a Controller. network and gateway may be nil — if network
// is nil the consensus monitor only validates the local chain and never
// attempts a peer swap.
func New(cfg Config, registry *component.Registry, chain *ledger.Ledger, network peernet.Network, gw *gateway.Gateway, fabric *errorfabric.Fabric, bus *eventbus.Bus, logger *logging.Logger) *Controller {
	if cfg.ProcessingRateHz <= 0 {
		cfg.ProcessingRateHz = DefaultProcessingRateHz
	}
	if cfg.DifficultyBits == 0 {
		cfg.DifficultyBits = 16
	}
	return &Controller{
		cfg:      cfg,
		registry: registry,
		chain:    chain,
		network:  network,
		gateway:  gw,
		fabric:   fabric,
		bus:      bus,
		logger:   logger,
	}
}

// Start launches the event pump, update loop, and consensus monitor as
// independent goroutines under a shared cancellable context. Calling
// Start twice without an intervening Stop is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	if c.bus != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.bus.Run(runCtx)
		}()
	}

	if c.registry != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runUpdateLoop(runCtx)
		}()
	}

	if c.chain != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runConsensusMonitor(runCtx)
		}()
	}
}

// Stop cancels every running task and waits up to DrainWindow for them
// to exit. A task still running after DrainWindow is abandoned — Stop
// returns regardless.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	cr := c.cron
	c.cron = nil
	c.running = false
	c.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(DrainWindow):
		c.log("controller: drain window exceeded, abandoning tasks")
	}
}

func (c *Controller) runUpdateLoop(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / c.cfg.ProcessingRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := interval
			if !last.IsZero() {
				dt = now.Sub(last)
			}
			last = now
			c.registry.UpdateAll(ctx, dt)
		}
	}
}

func (c *Controller) runConsensusMonitor(ctx context.Context) {
	cr := cron.New()
	_, err := cr.AddFunc(ConsensusQuerySpec, func() { c.checkConsensus(ctx) })
	if err != nil {
		c.log("controller: schedule consensus monitor failed")
		return
	}

	c.mu.Lock()
	c.cron = cr
	c.mu.Unlock()

	cr.Start()
	<-ctx.Done()
}

// findAndSwapLongerChain queries the peer network for candidate chains and
// swaps in the longest one that passes ConsensusSwap. Returns an error if
// no candidate chain qualifies, so it can be driven through the Blockchain
// Recovery Strategy's circuit breaker.
func (c *Controller) findAndSwapLongerChain(ctx context.Context) error {
	candidates, err := c.network.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("peer candidate query failed: %w", err)
	}

	swapped := false
	bestLen := c.chain.Len()
	for _, candidate := range candidates {
		if len(candidate) <= bestLen {
			continue
		}
		if c.chain.ConsensusSwap(candidate) {
			swapped = true
			bestLen = len(candidate)
		}
	}

	if !swapped {
		return errors.New("no valid longer chain available from peers")
	}
	return nil
}

// checkConsensus re-validates the local chain every ConsensusQuerySpec
// tick. On failure it routes peer-swap attempts through the Blockchain
// Recovery Strategy so a partitioned peer network backs off behind a
// circuit breaker instead of querying every peer on every 5s tick.
func (c *Controller) checkConsensus(ctx context.Context) {
	if c.chain.ValidateChain() {
		return
	}

	reason := "local chain failed internal validation"
	c.chain.EmitConsensusFailure(reason)

	if c.network == nil {
		c.emergencyProtocol(ctx, reason)
		return
	}

	var recoverErr error
	if c.fabric != nil {
		recoverErr = c.fabric.Recover(ctx, cerrors.ConsensusFailure(reason), "consensus_monitor", c.findAndSwapLongerChain)
	} else {
		recoverErr = c.findAndSwapLongerChain(ctx)
	}

	if recoverErr != nil {
		c.emergencyProtocol(ctx, recoverErr.Error())
		return
	}

	c.chain.EmitConsensusRecovery(c.chain.Len())
}

// emergencyProtocol pauses actuator dispatch by activating
// CommandLockdown/EmergencyBeacon on the command gateway's
// countermeasure set, if one is wired, per spec.md §4.8.
func (c *Controller) emergencyProtocol(ctx context.Context, reason string) {
	if c.gateway != nil {
		c.gateway.Countermeasures().Activate(gateway.TagCommandLockdown)
		c.gateway.Countermeasures().Activate(gateway.TagEmergencyBeacon)
	}
	if c.fabric != nil {
		c.fabric.Dispatch(ctx, cerrors.ConsensusFailure(reason))
	}
	if c.bus != nil {
		_ = c.bus.Publish(eventbus.New(eventbus.KindEmergencyProtocol, "controller", eventbus.PriorityCritical, reason))
	}
	c.log("controller: emergency protocol activated: " + reason)
}

func (c *Controller) log(message string) {
	if c.logger != nil {
		c.logger.Warn(context.Background(), message, nil)
	}
}
