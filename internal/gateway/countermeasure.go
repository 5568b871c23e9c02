package gateway

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Tag identifies one of the four countermeasures spec.md §4.5 names.
type Tag string

const (
	TagCommandLockdown    Tag = "CommandLockdown"
	TagEmergencyBeacon    Tag = "EmergencyBeacon"
	TagEnhancedValidation Tag = "EnhancedValidation"
	TagParameterLockdown  Tag = "ParameterLockdown"
)

// DefaultDefensiveTTL is the auto-expiry window for EnhancedValidation and
// ParameterLockdown, per spec.md §4.5's "double-check every subsequent
// command for 30 s".
const DefaultDefensiveTTL = 30 * time.Second

// Set tracks active countermeasures. EnhancedValidation and
// ParameterLockdown auto-expire unless renewed by further anomalies;
// CommandLockdown and EmergencyBeacon never expire on their own — only an
// Admin command over the out-of-band channel clears them.
type Set struct {
	mu        sync.Mutex
	defensive *expirable.LRU[Tag, time.Time]
	lockdown  bool
	beacon    bool
}

// NewSet creates a Set with the given defensive-countermeasure TTL (pass
// 0 for DefaultDefensiveTTL).
func NewSet(defensiveTTL time.Duration) *Set {
	if defensiveTTL <= 0 {
		defensiveTTL = DefaultDefensiveTTL
	}
	return &Set{defensive: expirable.NewLRU[Tag, time.Time](8, nil, defensiveTTL)}
}

// Activate raises tag. For EnhancedValidation/ParameterLockdown this
// (re)starts the TTL; for CommandLockdown/EmergencyBeacon it persists
// until explicitly cleared.
func (s *Set) Activate(tag Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tag {
	case TagCommandLockdown:
		s.lockdown = true
	case TagEmergencyBeacon:
		s.beacon = true
	default:
		s.defensive.Add(tag, time.Now())
	}
}

// IsActive reports whether tag is currently in force.
func (s *Set) IsActive(tag Tag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tag {
	case TagCommandLockdown:
		return s.lockdown
	case TagEmergencyBeacon:
		return s.beacon
	default:
		_, ok := s.defensive.Get(tag)
		return ok
	}
}

// ClearLockdown releases CommandLockdown and EmergencyBeacon. Callers
// must have already authenticated the clearing request over the admin
// channel — Set itself enforces no authorization.
func (s *Set) ClearLockdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockdown = false
	s.beacon = false
}

// Escalate applies the countermeasure ladder for a raised anomaly's
// severity, per spec.md §4.5:
//   - severity >= 8: CommandLockdown + EmergencyBeacon.
//   - 5 <= severity < 8: EnhancedValidation for "unusual_pattern", else
//     ParameterLockdown.
//
// Escalate returns true if CommandLockdown was (re-)activated, signaling
// the caller should also emit an EmergencyProtocol record.
func (s *Set) Escalate(a *Anomaly) (lockdownActivated bool) {
	switch {
	case a.Severity >= 8:
		s.Activate(TagCommandLockdown)
		s.Activate(TagEmergencyBeacon)
		return true
	case a.Severity >= 5:
		if a.Type == "unusual_pattern" {
			s.Activate(TagEnhancedValidation)
		} else {
			s.Activate(TagParameterLockdown)
		}
		return false
	default:
		return false
	}
}
