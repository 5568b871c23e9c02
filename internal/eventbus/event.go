// Package eventbus implements the runtime's typed, priority-ordered
// publish/subscribe bus: a single dispatch goroutine drains a bounded
// queue and invokes handlers sequentially, cooperative-scheduler style.
package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of event kinds the bus will deliver. Unlike the
// teacher's free-form NOTIFY channel names, Kind is a fixed enumeration —
// unknown kinds are rejected at Publish.
type Kind string

const (
	KindComponentRegistered   Kind = "ComponentRegistered"
	KindComponentUnregistered Kind = "ComponentUnregistered"
	KindComponentInitialized  Kind = "ComponentInitialized"
	KindSensorDataUpdated     Kind = "SensorDataUpdated"
	KindSensorDropped         Kind = "SensorDropped"
	KindSensorAlignmentDone   Kind = "SensorAlignmentComplete"
	KindFusedStateUpdated     Kind = "FusedStateUpdated"
	KindNavigationPosUpdated  Kind = "NavigationPositionUpdated"
	KindBlockCreated          Kind = "BlockCreated"
	KindConsensusFailure      Kind = "ConsensusFailure"
	KindConsensusRecovery     Kind = "ConsensusRecovery"
	KindSecurityViolation     Kind = "SecurityViolation"
	KindAntiHijackingActive   Kind = "AntiHijackingActive"
	KindSlowHandler           Kind = "SlowHandler"
	KindQueueEvicted          Kind = "QueueEvicted"
	KindError                 Kind = "Error"
	KindSystemFailure         Kind = "SystemFailure"
	KindMaintenanceAlert      Kind = "MaintenanceAlert"
	KindEmergencyProtocol     Kind = "EmergencyProtocol"
	KindHILConnected          Kind = "HILConnected"
	KindHILDisconnected       Kind = "HILDisconnected"
)

// knownKinds backs IsKnown; Publish rejects anything not in this set so a
// typo'd kind fails loudly instead of silently going unhandled.
var knownKinds = map[Kind]struct{}{
	KindComponentRegistered:   {},
	KindComponentUnregistered: {},
	KindComponentInitialized:  {},
	KindSensorDataUpdated:     {},
	KindSensorDropped:         {},
	KindSensorAlignmentDone:   {},
	KindFusedStateUpdated:     {},
	KindNavigationPosUpdated:  {},
	KindBlockCreated:          {},
	KindConsensusFailure:      {},
	KindConsensusRecovery:     {},
	KindSecurityViolation:     {},
	KindAntiHijackingActive:   {},
	KindSlowHandler:           {},
	KindQueueEvicted:          {},
	KindError:                 {},
	KindSystemFailure:         {},
	KindMaintenanceAlert:      {},
	KindEmergencyProtocol:     {},
	KindHILConnected:          {},
	KindHILDisconnected:       {},
}

// IsKnown reports whether kind is part of the closed event-kind set.
func IsKnown(kind Kind) bool {
	_, ok := knownKinds[kind]
	return ok
}

// Priority 0 is highest, 3 is lowest. Events of priority p are delivered
// strictly before any queued event of priority p+1.
type Priority uint8

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3

	numPriorities = 4
)

// Event is immutable once published: fields are set once at New and never
// mutated, so delivery to multiple subscribers never races.
type Event struct {
	ID        string
	Kind      Kind
	SourceID  string
	Timestamp int64 // monotonic nanoseconds, anchored to Unix time at process start
	Priority  Priority
	Payload   interface{}
}

// clockBase anchors event timestamps to the wall clock once; each
// timestamp adds the monotonic time elapsed since then.
var clockBase = time.Now()

// New constructs an Event with a fresh id and the current monotonic
// timestamp.
func New(kind Kind, sourceID string, priority Priority, payload interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		SourceID:  sourceID,
		Timestamp: clockBase.UnixNano() + int64(time.Since(clockBase)),
		Priority:  priority,
		Payload:   payload,
	}
}

// SlowHandlerPayload is the payload of a self-hosted SlowHandler event,
// emitted when a handler invocation exceeds the 50ms budget.
type SlowHandlerPayload struct {
	HandlerKind Kind
	Duration    time.Duration
}

// QueueEvictedPayload is the payload of a self-hosted QueueEvicted event,
// carrying the event that was dropped to make room for a priority-0
// publish against a full queue.
type QueueEvictedPayload struct {
	Evicted Event
}
