// Package component implements the Component Registry: lifecycle-managed
// participants with a capability set, exclusively owned by the registry —
// everything else holds only id-based handles.
package component

import (
	"context"
	"time"
)

// State is a component's lifecycle state.
type State string

const (
	StateOffline      State = "offline"
	StateInitializing State = "initializing"
	StateOnline       State = "online"
	StateDegraded     State = "degraded"
	StateError        State = "error"
	StateMaintenance  State = "maintenance"
)

// Descriptor advertises a component's name and capability tags, replacing
// the deep inheritance trees (Plugin → SystemComponent → SensorPlugin →
// ...) with a flat tag set: polymorphism by tag, not by subclass.
type Descriptor struct {
	Name         string
	Capabilities []string
}

// HasCapability reports whether tag is present in the descriptor.
func (d Descriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Component is a named, stateful participant with three lifecycle
// operations. The Registry is the sole owner of a Component's lifetime;
// callers elsewhere in the runtime hold only its id.
type Component interface {
	Descriptor() Descriptor
	Initialize(ctx context.Context) error
	Update(ctx context.Context, dt time.Duration) error
	Shutdown(ctx context.Context) error
}
