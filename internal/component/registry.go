package component

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// MaxConsecutiveFailures is the count of consecutive Update failures
// (including the one that degraded the component) at which the Registry
// transitions a Degraded component to Error and removes it from the
// update rotation.
const MaxConsecutiveFailures = 2

// Handle is a weak, id-based reference to a registered component: it
// exposes state and descriptor without granting mutable access to the
// component itself, per the ownership rule in spec.md §3.
type Handle struct {
	ID         string
	Descriptor Descriptor
	State      State
}

type entry struct {
	id                  string
	component           Component
	state               State
	consecutiveFailures int
	inRotation          bool
}

// Registry exclusively owns every registered Component's lifetime.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*entry
	order      []string // registration order, for reverse-order shutdown

	bus    *eventbus.Bus
	logger *logging.Logger

	// OnComponentError, if set, is invoked whenever a component's Update
	// or Initialize returns an error, so the caller can route it through
	// the error fabric without this package importing it directly.
	OnComponentError func(componentID string, descriptor Descriptor, err error)
}

// NewRegistry creates a Registry. bus and logger may be nil (useful in
// isolated unit tests); when bus is non-nil, lifecycle transitions are
// published as ComponentRegistered/ComponentInitialized/
// ComponentUnregistered events.
func NewRegistry(bus *eventbus.Bus, logger *logging.Logger) *Registry {
	return &Registry{
		components: make(map[string]*entry),
		bus:        bus,
		logger:     logger,
	}
}

// Register adds component to the registry, runs Initialize, and
// transitions Offline→Initializing→Online on success (remaining Offline
// and surfacing the error on failure, per the lifecycle in spec.md §3).
func (r *Registry) Register(ctx context.Context, c Component) (string, error) {
	id := uuid.New().String()
	desc := c.Descriptor()

	e := &entry{id: id, component: c, state: StateOffline}

	r.mu.Lock()
	r.components[id] = e
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.publish(eventbus.KindComponentRegistered, id, desc.Name)

	e.state = StateInitializing
	if err := c.Initialize(ctx); err != nil {
		r.mu.Lock()
		e.state = StateOffline
		r.mu.Unlock()
		r.reportError(id, desc, err)
		return id, fmt.Errorf("component %q initialize: %w", desc.Name, err)
	}

	r.mu.Lock()
	e.state = StateOnline
	e.inRotation = true
	r.mu.Unlock()

	r.publish(eventbus.KindComponentInitialized, id, desc.Name)
	return id, nil
}

// Unregister shuts down and removes a single component by id. Prefer
// ShutdownAll for orderly full-system teardown.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.components[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("component %q not registered", id)
	}
	delete(r.components, id)
	r.order = removeID(r.order, id)
	r.mu.Unlock()

	err := e.component.Shutdown(ctx)
	r.publish(eventbus.KindComponentUnregistered, id, e.component.Descriptor().Name)
	return err
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, existing := range order {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// Get returns a weak Handle for id.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.components[id]
	if !ok {
		return Handle{}, false
	}
	return Handle{ID: e.id, Descriptor: e.component.Descriptor(), State: e.state}, true
}

// ByType returns handles for every component whose capability set
// contains tag.
func (r *Registry) ByType(tag string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Handle
	for _, id := range r.order {
		e := r.components[id]
		if e == nil {
			continue
		}
		desc := e.component.Descriptor()
		if desc.HasCapability(tag) {
			out = append(out, Handle{ID: e.id, Descriptor: desc, State: e.state})
		}
	}
	return out
}

// UpdateAll drives update(dt) on every component currently in rotation,
// in registration order. A component's own Update error transitions
// Online→Degraded on the first occurrence, Degraded→Error (removed from
// rotation, handle retained for diagnostics) on the next.
func (r *Registry) UpdateAll(ctx context.Context, dt time.Duration) {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, id := range ids {
		r.mu.RLock()
		e := r.components[id]
		r.mu.RUnlock()
		if e == nil || !e.inRotation {
			continue
		}

		err := e.component.Update(ctx, dt)
		if err == nil {
			r.mu.Lock()
			if e.state == StateDegraded {
				e.state = StateOnline
			}
			e.consecutiveFailures = 0
			r.mu.Unlock()
			continue
		}

		r.mu.Lock()
		e.consecutiveFailures++
		switch e.state {
		case StateOnline:
			e.state = StateDegraded
		case StateDegraded:
			if e.consecutiveFailures >= MaxConsecutiveFailures {
				e.state = StateError
				e.inRotation = false
			}
		}
		desc := e.component.Descriptor()
		r.mu.Unlock()

		r.reportError(id, desc, err)
	}
}

// ShutdownAll shuts down every registered component in reverse
// registration order, per spec.md §4.2.
func (r *Registry) ShutdownAll(ctx context.Context) []error {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		r.mu.RLock()
		e := r.components[id]
		r.mu.RUnlock()
		if e == nil {
			continue
		}
		if err := e.component.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("component %q shutdown: %w", e.component.Descriptor().Name, err))
		}
		r.mu.Lock()
		e.state = StateOffline
		e.inRotation = false
		r.mu.Unlock()
	}
	return errs
}

// Len returns the number of currently registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns a Handle for every registered component, in
// registration order, for status reporting.
func (r *Registry) Snapshot() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]Handle, 0, len(r.order))
	for _, id := range r.order {
		e := r.components[id]
		handles = append(handles, Handle{ID: e.id, Descriptor: e.component.Descriptor(), State: e.state})
	}
	return handles
}

func (r *Registry) publish(kind eventbus.Kind, componentID, name string) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(eventbus.New(kind, componentID, eventbus.PriorityNormal, name))
}

func (r *Registry) reportError(id string, desc Descriptor, err error) {
	if r.OnComponentError != nil {
		r.OnComponentError(id, desc, err)
	} else if r.logger != nil {
		r.logger.LogErrorWithStack(context.Background(), err, "component error", map[string]interface{}{
			"component_id":   id,
			"component_name": desc.Name,
		})
	}
}
