package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/ratelimit"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/permissions"
)

// Rejection is the typed rejection submit_command surfaces to the SDK
// front door, per spec.md §7.
type Rejection string

const (
	RejectionNone             Rejection = ""
	RejectionUnauthorized     Rejection = "Unauthorized"
	RejectionThrottled        Rejection = "Throttled"
	RejectionAnomalous        Rejection = "Anomalous"
	RejectionLedgerFull       Rejection = "LedgerFull"
	RejectionSignatureInvalid Rejection = "SignatureInvalid"
)

// Gateway is the Secure Command Gateway: every actuator-bound command
// passes its checks before reaching the Ledger.
type Gateway struct {
	frequency  *FrequencyCheck
	rate       *RateCheck
	parameter  ParameterCheck
	behavioral *BehavioralCheck

	countermeasures *Set
	permissions     permissions.Table

	chain  *ledger.Ledger
	signer ledger.Signer // Gateway's own signer, for emergency-protocol records it originates

	bus    *eventbus.Bus
	logger *logging.Logger
}

// New creates a Gateway wired to chain for admission and signer for
// self-originated records (emergency protocol entries). rateBackstop may
// be nil to disable the secondary token-bucket rate path.
func New(chain *ledger.Ledger, signer ledger.Signer, perms permissions.Table, rateBackstop *ratelimit.PerSourceLimiter, bus *eventbus.Bus, logger *logging.Logger) *Gateway {
	return &Gateway{
		frequency:       NewFrequencyCheck(),
		rate:            NewRateCheck(rateBackstop),
		behavioral:      NewBehavioralCheck(),
		countermeasures: NewSet(DefaultDefensiveTTL),
		permissions:     perms,
		chain:           chain,
		signer:          signer,
		bus:             bus,
		logger:          logger,
	}
}

// resourceFor derives the RBAC resource from a command kind's prefix
// ("navigation.altitude" -> "navigation").
func resourceFor(kind string) string {
	if i := strings.IndexByte(kind, '.'); i >= 0 {
		return kind[:i]
	}
	return kind
}

// SubmitCommand runs every check, escalates countermeasures for any
// anomaly raised, and — if nothing rejects the command — admits it to the
// Ledger as a signed Transaction attributed to cmd.SourceID.
func (g *Gateway) SubmitCommand(ctx context.Context, cmd Command, action string) (Rejection, error) {
	if g.countermeasures.IsActive(TagCommandLockdown) {
		return RejectionAnomalous, nil
	}

	if !g.permissions.Check(cmd.Role, resourceFor(cmd.Kind), action) {
		return RejectionUnauthorized, nil
	}

	tighten := 1.0
	if g.countermeasures.IsActive(TagParameterLockdown) {
		tighten = 0.9
	}

	anomalies := g.runChecks(cmd, tighten)
	lockdownTriggered := false
	for _, a := range anomalies {
		if g.countermeasures.Escalate(a) {
			lockdownTriggered = true
		}
		g.publishSecurityViolation(a)
	}

	if lockdownTriggered {
		g.emitEmergencyProtocol(ctx, anomalies[len(anomalies)-1])
	}
	if len(anomalies) > 0 {
		for _, a := range anomalies {
			if a.Type == "rate_exceeded" {
				return RejectionThrottled, nil
			}
		}
		return RejectionAnomalous, nil
	}

	ledgerCmd := ledger.Command{Kind: cmd.Kind, Data: ledger.CanonicalEncode(cmd.Params)}
	sig, err := ledger.SignCommand(g.signer, ledgerCmd)
	if err != nil {
		return RejectionSignatureInvalid, fmt.Errorf("gateway: sign command: %w", err)
	}

	tx := ledger.Transaction{
		Timestamp: time.Now().UnixNano(),
		SourceID:  cmd.SourceID,
		Command:   ledgerCmd,
		Signature: sig,
	}

	rej, err := g.chain.Submit(ctx, tx)
	if err != nil {
		return RejectionNone, fmt.Errorf("gateway: submit to ledger: %w", err)
	}
	switch rej {
	case ledger.RejectionLedgerFull:
		return RejectionLedgerFull, nil
	case ledger.RejectionSignatureInvalid:
		return RejectionSignatureInvalid, nil
	case ledger.RejectionReplayed:
		return RejectionAnomalous, nil
	default:
		return RejectionNone, nil
	}
}

// runChecks applies all four checks independently and returns every
// anomaly raised, in check order: frequency, rate, parameter, behavioral.
func (g *Gateway) runChecks(cmd Command, tighten float64) []*Anomaly {
	var anomalies []*Anomaly
	if a := g.frequency.Check(cmd); a != nil {
		anomalies = append(anomalies, a)
	}
	if a := g.rate.Check(cmd); a != nil {
		anomalies = append(anomalies, a)
	}
	if a := g.parameter.Check(cmd, tighten); a != nil {
		anomalies = append(anomalies, a)
	}
	if a := g.behavioral.Check(cmd); a != nil {
		anomalies = append(anomalies, a)
	}
	return anomalies
}

func (g *Gateway) publishSecurityViolation(a *Anomaly) {
	if g.bus == nil {
		return
	}
	priority := eventbus.PriorityNormal
	if a.Severity >= 8 {
		priority = eventbus.PriorityCritical
	} else if a.Severity >= 5 {
		priority = eventbus.PriorityHigh
	}
	_ = g.bus.Publish(eventbus.New(eventbus.KindSecurityViolation, a.SourceID, priority, a))
	_ = g.bus.Publish(eventbus.New(eventbus.KindAntiHijackingActive, a.SourceID, priority, g.countermeasures))
}

// emitEmergencyProtocol records the triggering anomaly as a
// gateway-originated ledger transaction, bypassing the regular checks
// (the Gateway signs for itself, not on behalf of the anomalous source),
// and publishes an EmergencyProtocol event.
func (g *Gateway) emitEmergencyProtocol(ctx context.Context, cause *Anomaly) {
	cmd := ledger.Command{
		Kind: "system.emergency_protocol",
		Data: ledger.CanonicalEncode(map[string]interface{}{
			"anomaly_type": cause.Type,
			"severity":     cause.Severity,
			"source_id":    cause.SourceID,
		}),
	}
	sig, err := ledger.SignCommand(g.signer, cmd)
	if err != nil {
		if g.logger != nil {
			g.logger.LogSecurityEvent(ctx, "emergency_protocol_sign_failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	tx := ledger.Transaction{
		Timestamp: time.Now().UnixNano(),
		SourceID:  "gateway",
		Command:   cmd,
		Signature: sig,
	}
	if _, err := g.chain.Submit(ctx, tx); err != nil && g.logger != nil {
		g.logger.LogSecurityEvent(ctx, "emergency_protocol_submit_failed", map[string]interface{}{"error": err.Error()})
	}

	if g.bus != nil {
		_ = g.bus.Publish(eventbus.New(eventbus.KindEmergencyProtocol, "gateway", eventbus.PriorityCritical, cause))
	}
}

// Countermeasures exposes the active countermeasure set, for the admin
// channel and for status/telemetry reporting.
func (g *Gateway) Countermeasures() *Set { return g.countermeasures }
