// Package errorfabric is the cross-cutting error sink: it classifies
// unknown errors, runs per-category handler chains, and holds the
// Recovery Strategy registered for each (category, origin) pair.
package errorfabric

import (
	"context"
	"strings"
	"sync"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/resilience"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// Handler inspects a classified error and reports whether it consumed
// it — a consumed error stops the chain for its category.
type Handler func(ctx context.Context, err *cerrors.ClassifiedError) (consumed bool)

// RecoveryStrategy retries or otherwise recovers from a failed operation.
// operation is the same call that originally failed; the strategy decides
// whether and how to re-invoke it.
type RecoveryStrategy func(ctx context.Context, err *cerrors.ClassifiedError, operation func(context.Context) error) error

// defaultOriginKey is the RecoveryStrategy registered for every origin
// under a category unless a more specific origin overrides it.
const defaultOriginKey = "*"

// Fabric dispatches classified errors to per-category handler chains and
// holds Recovery Strategies, matching spec.md §4.3/§7 exactly. It imports
// no component package directly: every component wires its own handlers
// and recovery strategies in at startup, keeping the dependency graph a
// strict one-way fan-in.
type Fabric struct {
	mu         sync.RWMutex
	handlers   map[cerrors.Category][]Handler
	recoveries map[cerrors.Category]map[string]RecoveryStrategy

	bus    *eventbus.Bus
	logger *logging.Logger
}

// New creates a Fabric with the default Network Recovery Strategy
// (exponential backoff per infrastructure/resilience.NetworkRecoveryConfig)
// already registered, matching spec.md §7's per-category default table.
func New(bus *eventbus.Bus, logger *logging.Logger) *Fabric {
	f := &Fabric{
		handlers:   make(map[cerrors.Category][]Handler),
		recoveries: make(map[cerrors.Category]map[string]RecoveryStrategy),
		bus:        bus,
		logger:     logger,
	}

	f.RegisterRecovery(cerrors.CategoryNetwork, defaultOriginKey,
		func(ctx context.Context, err *cerrors.ClassifiedError, operation func(context.Context) error) error {
			cfg := resilience.NetworkRecoveryConfig()
			return resilience.Retry(ctx, cfg, func() error { return operation(ctx) })
		})

	consensusBreaker := resilience.New(resilience.ConsensusRecoveryConfig())
	f.RegisterRecovery(cerrors.CategoryBlockchain, defaultOriginKey,
		func(ctx context.Context, err *cerrors.ClassifiedError, operation func(context.Context) error) error {
			return consensusBreaker.Execute(ctx, func() error { return operation(ctx) })
		})

	return f
}

// RegisterHandler appends handler to category's chain, in registration
// order — the order handlers are added is the order they run.
func (f *Fabric) RegisterHandler(category cerrors.Category, handler Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[category] = append(f.handlers[category], handler)
}

// RegisterRecovery registers a RecoveryStrategy for (category, origin).
// origin "*" registers the category-wide default.
func (f *Fabric) RegisterRecovery(category cerrors.Category, origin string, strategy RecoveryStrategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recoveries[category] == nil {
		f.recoveries[category] = make(map[string]RecoveryStrategy)
	}
	f.recoveries[category][origin] = strategy
}

// Classify normalizes err into a ClassifiedError. Errors already
// classified pass through; everything else is wrapped as
// CategoryUnknown and then refined by message content, per spec.md §4.3:
// connection/timeout → Network, parameter/type → Software.
func Classify(err error) *cerrors.ClassifiedError {
	classified := cerrors.Classify(err)
	if classified == nil {
		return nil
	}
	if classified.Category == cerrors.CategoryUnknown {
		refineUnknown(classified)
	}
	return classified
}

func refineUnknown(err *cerrors.ClassifiedError) {
	msg := strings.ToLower(err.Message)
	if err.Err != nil {
		msg += " " + strings.ToLower(err.Err.Error())
	}
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		err.Category = cerrors.CategoryNetwork
	case strings.Contains(msg, "parameter") || strings.Contains(msg, "type"):
		err.Category = cerrors.CategorySoftware
	}
}

// Dispatch runs err.Category's handler chain in registration order,
// stopping at the first handler that reports consumed. On
// SeverityCritical a SystemFailure event is always published, even if a
// handler consumed the error.
func (f *Fabric) Dispatch(ctx context.Context, err *cerrors.ClassifiedError) {
	if err == nil {
		return
	}

	f.mu.RLock()
	chain := append([]Handler(nil), f.handlers[err.Category]...)
	f.mu.RUnlock()

	for _, h := range chain {
		if h(ctx, err) {
			break
		}
	}

	if f.logger != nil {
		f.logger.Error(ctx, err.Message, err, map[string]interface{}{
			"category":  err.Category,
			"severity":  err.Severity.String(),
			"component": err.Component,
		})
	}

	if err.Severity == cerrors.SeverityCritical {
		f.publishSystemFailure(err)
	}
}

// Recover looks up the Recovery Strategy for (err.Category, origin),
// falling back to the category-wide default, and invokes it with
// operation. If no strategy is registered, operation is invoked once
// directly — non-Network categories mostly implement recovery as a side
// effect (degrade a sensor, pause dispatch) rather than a retry, so they
// register a no-op operation and do the real work inside the strategy.
func (f *Fabric) Recover(ctx context.Context, err *cerrors.ClassifiedError, origin string, operation func(context.Context) error) error {
	f.mu.RLock()
	byOrigin := f.recoveries[err.Category]
	strategy, ok := byOrigin[origin]
	if !ok {
		strategy, ok = byOrigin[defaultOriginKey]
	}
	f.mu.RUnlock()

	if !ok || strategy == nil {
		return operation(ctx)
	}
	return strategy(ctx, err, operation)
}

func (f *Fabric) publishSystemFailure(err *cerrors.ClassifiedError) {
	if f.bus == nil {
		return
	}
	_ = f.bus.Publish(eventbus.New(eventbus.KindSystemFailure, err.Component, eventbus.PriorityCritical, err))
}
