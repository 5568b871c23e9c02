// Package gateway implements the Secure Command Gateway every actuator
// command passes through before reaching the Command Ledger: frequency,
// rate, parameter, and behavioral anomaly checks feeding a severity-graded
// countermeasure ladder, translated from the anti-hijacking manager in
// original_source/src/core/security/anti_hijack.py into idiomatic Go.
package gateway

import (
	"sync"
	"time"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/ratelimit"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/permissions"
)

// Command is a pre-ledger command awaiting the Gateway's checks. Params
// carries kind-specific arguments (e.g. {"value": 12000.0} for an
// altitude command, {"action": "shutdown"} for a system command).
type Command struct {
	Kind     string
	SourceID string
	Role     permissions.Role
	Params   map[string]interface{}
}

// Anomaly mirrors the original SecurityAnomaly dataclass: a single
// classified security event raised by one check.
type Anomaly struct {
	Timestamp int64
	Type      string
	Severity  int
	SourceID  string
	Details   map[string]interface{}
}

func newAnomaly(typ string, severity int, sourceID string, details map[string]interface{}) *Anomaly {
	return &Anomaly{
		Timestamp: time.Now().UnixNano(),
		Type:      typ,
		Severity:  severity,
		SourceID:  sourceID,
		Details:   details,
	}
}

// FrequencyCheck flags a command kind that occurs more than the allowed
// threshold within the last 50 commands of any kind, from any source.
type FrequencyCheck struct {
	mu        sync.Mutex
	window    []string
	maxWindow int
	threshold int
}

// NewFrequencyCheck returns a FrequencyCheck with spec defaults: a 50-slot
// window and threshold of 7 occurrences.
func NewFrequencyCheck() *FrequencyCheck {
	return &FrequencyCheck{maxWindow: 50, threshold: 7}
}

func (f *FrequencyCheck) Check(cmd Command) *Anomaly {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, k := range f.window {
		if k == cmd.Kind {
			count++
		}
	}

	f.window = append(f.window, cmd.Kind)
	if len(f.window) > f.maxWindow {
		f.window = f.window[len(f.window)-f.maxWindow:]
	}

	if count > f.threshold {
		return newAnomaly("excessive_commands", 8, cmd.SourceID, map[string]interface{}{
			"kind": cmd.Kind, "count_in_window": count,
		})
	}
	return nil
}

// RateCheck flags a source exceeding the per-second sliding-window limit,
// backstopped by a token-bucket limiter shared across all per-source
// rate enforcement in the runtime.
type RateCheck struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	limit    int
	window   time.Duration
	backstop *ratelimit.PerSourceLimiter
}

// NewRateCheck returns a RateCheck with spec defaults: 20 commands/sec per
// source. backstop may be nil to disable the secondary token-bucket path.
func NewRateCheck(backstop *ratelimit.PerSourceLimiter) *RateCheck {
	return &RateCheck{
		windows:  make(map[string][]time.Time),
		limit:    20,
		window:   time.Second,
		backstop: backstop,
	}
}

func (r *RateCheck) Check(cmd Command) *Anomaly {
	now := time.Now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	ts := r.windows[cmd.SourceID]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	r.windows[cmd.SourceID] = kept
	count := len(kept)
	r.mu.Unlock()

	if r.backstop != nil && !r.backstop.Allow(cmd.SourceID) {
		return newAnomaly("rate_exceeded", 8, cmd.SourceID, map[string]interface{}{"backstop_triggered": true})
	}
	if count > r.limit {
		return newAnomaly("rate_exceeded", 8, cmd.SourceID, map[string]interface{}{"count_in_window": count})
	}
	return nil
}

// bounds is an inclusive [min, max] parameter range.
type bounds struct{ min, max float64 }

// parameterBounds maps command kind to the allowed range of its "value"
// parameter, per spec.md §4.5's examples.
var parameterBounds = map[string]bounds{
	"navigation.altitude": {min: 0, max: 30000},
	"navigation.speed":    {min: 0, max: 1000},
}

// restrictedSystemActions requires Admin role regardless of any other
// grant, per spec.md §4.5.
var restrictedSystemActions = map[string]struct{}{
	"shutdown":        {},
	"reset":           {},
	"firmware_update": {},
}

// ParameterCheck validates a command's parameters against its kind's
// bounds, and restricts privileged system actions to Admin callers.
type ParameterCheck struct{}

// Check validates cmd. tighten scales numeric bounds toward zero (e.g.
// 0.9 under ParameterLockdown's tightened envelope); pass 1.0 for the
// normal envelope.
func (ParameterCheck) Check(cmd Command, tighten float64) *Anomaly {
	if b, ok := parameterBounds[cmd.Kind]; ok {
		if v, ok := floatParam(cmd.Params, "value"); ok {
			lo, hi := b.min*tighten, b.max*tighten
			if v < lo || v > hi {
				return newAnomaly("invalid_parameters", 8, cmd.SourceID, map[string]interface{}{
					"kind": cmd.Kind, "value": v, "bounds": [2]float64{lo, hi},
				})
			}
		}
	}

	if cmd.Kind == "system.action" {
		if action, _ := cmd.Params["action"].(string); action != "" {
			if _, restricted := restrictedSystemActions[action]; restricted && cmd.Role != permissions.RoleAdmin {
				return newAnomaly("invalid_parameters", 9, cmd.SourceID, map[string]interface{}{"action": action})
			}
		}
	}
	return nil
}

func floatParam(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// BehavioralCheck flags a source's first-seen command kind once it has
// built up a baseline of warmupSamples prior commands, as a heuristic
// stand-in for a learned pattern envelope. A trained behavioral model is
// an ML concern the runtime's Non-goals hand off to an external
// collaborator; this check only needs a deterministic baseline to drive
// the countermeasure ladder.
type BehavioralCheck struct {
	mu            sync.Mutex
	seen          map[string]map[string]int
	warmupSamples int
}

// NewBehavioralCheck returns a BehavioralCheck with a 5-command warmup.
func NewBehavioralCheck() *BehavioralCheck {
	return &BehavioralCheck{seen: make(map[string]map[string]int), warmupSamples: 5}
}

func (b *BehavioralCheck) Check(cmd Command) *Anomaly {
	b.mu.Lock()
	defer b.mu.Unlock()

	kinds := b.seen[cmd.SourceID]
	if kinds == nil {
		kinds = make(map[string]int)
		b.seen[cmd.SourceID] = kinds
	}

	total := 0
	for _, c := range kinds {
		total += c
	}
	_, known := kinds[cmd.Kind]
	kinds[cmd.Kind]++

	if total >= b.warmupSamples && !known {
		return newAnomaly("unusual_pattern", 7, cmd.SourceID, map[string]interface{}{"kind": cmd.Kind})
	}
	return nil
}
