package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
)

// DefaultCapacity is the bounded queue size across all four priority
// buckets combined.
const DefaultCapacity = 4096

// SlowHandlerThreshold is the per-handler invocation budget; exceeding it
// emits a SlowHandler meta-event but never fails the delivery.
const SlowHandlerThreshold = 50 * time.Millisecond

// ErrBackpressureFull is returned by Publish when the queue is at
// capacity and the event's priority is not PriorityCritical.
var ErrBackpressureFull = errors.New("eventbus: queue at capacity")

// ErrUnknownKind is returned by Publish for a kind outside the closed set.
var ErrUnknownKind = errors.New("eventbus: unknown event kind")

// Handler processes a delivered event. A returned error is reported to
// the bus's error sink (if set) but does not stop delivery to other
// handlers.
type Handler func(ctx context.Context, event Event) error

// PatternPredicate matches events for a pattern subscription.
type PatternPredicate func(event Event) bool

type patternSub struct {
	id        string
	predicate PatternPredicate
	handler   Handler
}

// Bus is the single-consumer, bounded priority event bus. One goroutine
// (started by Run) drains the queue; Publish/Subscribe are safe to call
// from any goroutine.
type Bus struct {
	mu       sync.Mutex
	queues   [numPriorities][]Event
	total    int
	capacity int

	handlersByKind map[Kind][]handlerSub
	patterns       []patternSub

	wake chan struct{}

	// OnHandlerError, if set, receives errors returned by handlers; when
	// unset, handler errors are logged through logger (if any).
	OnHandlerError func(event Event, err error)

	logger *logging.Logger

	runOnce sync.Once
	done    chan struct{}
}

type handlerSub struct {
	id      string
	handler Handler
}

// New creates a Bus with the given capacity (DefaultCapacity if <= 0).
func New(capacity int, logger *logging.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity:       capacity,
		handlersByKind: make(map[Kind][]handlerSub),
		wake:           make(chan struct{}, 1),
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// Subscribe registers handler for a single kind. Handlers registered
// while an event is mid-delivery take effect starting with the next
// dequeued event, never the one currently being delivered, since Deliver
// snapshots the handler slice before invoking.
func (b *Bus) Subscribe(kind Kind, handler Handler) string {
	id := uuid.New().String()
	b.mu.Lock()
	b.handlersByKind[kind] = append(b.handlersByKind[kind], handlerSub{id: id, handler: handler})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a handler previously registered by Subscribe or
// SubscribePattern, identified by the id each returned.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.handlersByKind {
		b.handlersByKind[kind] = removeSub(subs, id)
	}
	filtered := b.patterns[:0]
	for _, p := range b.patterns {
		if p.id != id {
			filtered = append(filtered, p)
		}
	}
	b.patterns = filtered
}

func removeSub(subs []handlerSub, id string) []handlerSub {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// SubscribePattern registers handler for every event matching predicate,
// independent of kind.
func (b *Bus) SubscribePattern(predicate PatternPredicate, handler Handler) string {
	id := uuid.New().String()
	b.mu.Lock()
	b.patterns = append(b.patterns, patternSub{id: id, predicate: predicate, handler: handler})
	b.mu.Unlock()
	return id
}

// Publish enqueues event and returns once it is admitted to the queue —
// it does not wait for delivery. Returns ErrUnknownKind if event.Kind is
// outside the closed set, ErrBackpressureFull if the queue is full and
// event.Priority is not PriorityCritical.
func (b *Bus) Publish(event Event) error {
	if !IsKnown(event.Kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, event.Kind)
	}

	b.mu.Lock()
	if b.total >= b.capacity {
		if event.Priority != PriorityCritical {
			b.mu.Unlock()
			return ErrBackpressureFull
		}
		evicted, ok := b.evictLowestLocked()
		if ok {
			b.enqueueLocked(event)
			b.mu.Unlock()
			b.signal()
			b.emitMeta(New(KindQueueEvicted, "eventbus", PriorityHigh, QueueEvictedPayload{Evicted: evicted}))
			return nil
		}
		// Nothing lower-priority to evict (queue is entirely
		// priority-0); admit anyway since this is itself priority-0 and
		// the alternative is unconditional loss.
	}
	b.enqueueLocked(event)
	b.mu.Unlock()
	b.signal()
	return nil
}

func (b *Bus) enqueueLocked(event Event) {
	b.queues[event.Priority] = append(b.queues[event.Priority], event)
	b.total++
}

// evictLowestLocked drops the oldest event from the lowest non-empty
// priority bucket strictly below PriorityCritical. Must be called with
// mu held; does not itself enqueue the new event.
func (b *Bus) evictLowestLocked() (Event, bool) {
	for p := numPriorities - 1; p > int(PriorityCritical); p-- {
		if len(b.queues[p]) > 0 {
			evicted := b.queues[p][0]
			b.queues[p] = b.queues[p][1:]
			b.total--
			return evicted, true
		}
	}
	return Event{}, false
}

func (b *Bus) dequeueLocked() (Event, bool) {
	for p := 0; p < numPriorities; p++ {
		if len(b.queues[p]) > 0 {
			ev := b.queues[p][0]
			b.queues[p] = b.queues[p][1:]
			b.total--
			return ev, true
		}
	}
	return Event{}, false
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// emitMeta publishes a self-hosted meta-event (SlowHandler/QueueEvicted),
// swallowing backpressure errors — losing a diagnostic event is
// preferable to blocking or recursing under sustained overload.
func (b *Bus) emitMeta(event Event) {
	_ = b.Publish(event)
}

// Run starts the dispatch loop and blocks until ctx is cancelled. Only
// the first call to Run on a given Bus has effect.
func (b *Bus) Run(ctx context.Context) {
	b.runOnce.Do(func() {
		defer close(b.done)
		for {
			b.mu.Lock()
			ev, ok := b.dequeueLocked()
			b.mu.Unlock()

			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-b.wake:
					continue
				}
			}

			b.deliver(ctx, ev)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	})
}

// Done is closed once Run's dispatch loop has returned.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// QueueLen returns the total number of events currently queued across all
// priorities, for telemetry.
func (b *Bus) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *Bus) deliver(ctx context.Context, ev Event) {
	b.mu.Lock()
	kindSubs := append([]handlerSub(nil), b.handlersByKind[ev.Kind]...)
	patterns := append([]patternSub(nil), b.patterns...)
	b.mu.Unlock()

	for _, sub := range kindSubs {
		b.invoke(ctx, sub.handler, ev)
	}
	for _, p := range patterns {
		if p.predicate(ev) {
			b.invoke(ctx, p.handler, ev)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, handler Handler, ev Event) {
	start := time.Now()
	err := handler(ctx, ev)
	elapsed := time.Since(start)

	if elapsed > SlowHandlerThreshold {
		b.emitMeta(New(KindSlowHandler, "eventbus", PriorityLow, SlowHandlerPayload{
			HandlerKind: ev.Kind,
			Duration:    elapsed,
		}))
	}

	if err != nil {
		if b.OnHandlerError != nil {
			b.OnHandlerError(ev, err)
		} else if b.logger != nil {
			b.logger.LogErrorWithStack(ctx, err, "event handler failed", map[string]interface{}{
				"event_kind": ev.Kind,
				"event_id":   ev.ID,
			})
		}
	}
}
