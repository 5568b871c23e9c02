package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/permissions"
)

func newTestGateway(t *testing.T) (*Gateway, ledger.Signer) {
	t.Helper()
	signer, err := ledger.NewEd25519SignerFromSeed("gw-test", make([]byte, 32))
	require.NoError(t, err)

	cfg := ledger.DefaultConfig()
	cfg.DifficultyBits = 1
	cfg.BatchThreshold = 1000 // never auto-mine mid-test
	chain := ledger.New(cfg, signer, nil, nil)

	gw := New(chain, signer, permissions.DefaultTable(), nil, nil, nil)
	return gw, signer
}

func TestSubmitCommandRejectsUnauthorizedRole(t *testing.T) {
	gw, _ := newTestGateway(t)

	cmd := Command{Kind: "mission.launch", SourceID: "src-1", Role: permissions.RoleObserver, Params: nil}
	rej, err := gw.SubmitCommand(context.Background(), cmd, "execute")
	require.NoError(t, err)
	assert.Equal(t, RejectionUnauthorized, rej)
}

func TestSubmitCommandAdmitsWithinBounds(t *testing.T) {
	gw, _ := newTestGateway(t)

	cmd := Command{
		Kind:     "navigation.altitude",
		SourceID: "src-1",
		Role:     permissions.RoleOperator,
		Params:   map[string]interface{}{"value": 5000.0},
	}
	rej, err := gw.SubmitCommand(context.Background(), cmd, "control")
	require.NoError(t, err)
	assert.Equal(t, RejectionNone, rej)
}

func TestSubmitCommandRejectsOutOfBoundsParameter(t *testing.T) {
	gw, _ := newTestGateway(t)

	cmd := Command{
		Kind:     "navigation.altitude",
		SourceID: "src-1",
		Role:     permissions.RoleOperator,
		Params:   map[string]interface{}{"value": 99999.0},
	}
	rej, err := gw.SubmitCommand(context.Background(), cmd, "control")
	require.NoError(t, err)
	assert.Equal(t, RejectionAnomalous, rej)
}

func TestSubmitCommandRestrictsSystemActionToAdmin(t *testing.T) {
	gw, _ := newTestGateway(t)

	cmd := Command{
		Kind:     "system.action",
		SourceID: "src-1",
		Role:     permissions.RoleMaintenance,
		Params:   map[string]interface{}{"action": "shutdown"},
	}
	rej, err := gw.SubmitCommand(context.Background(), cmd, "update")
	require.NoError(t, err)
	assert.Equal(t, RejectionAnomalous, rej)
	assert.True(t, gw.Countermeasures().IsActive(TagCommandLockdown))
}

func TestSeverityEightEscalatesToCommandLockdown(t *testing.T) {
	gw, _ := newTestGateway(t)

	cmd := Command{
		Kind:     "navigation.altitude",
		SourceID: "src-1",
		Role:     permissions.RoleOperator,
		Params:   map[string]interface{}{"value": -1.0},
	}
	_, err := gw.SubmitCommand(context.Background(), cmd, "control")
	require.NoError(t, err)
	assert.True(t, gw.Countermeasures().IsActive(TagCommandLockdown))

	// Lockdown blocks every subsequent command outright, including
	// otherwise-valid ones.
	ok := Command{
		Kind:     "navigation.altitude",
		SourceID: "src-1",
		Role:     permissions.RoleOperator,
		Params:   map[string]interface{}{"value": 100.0},
	}
	rej, err := gw.SubmitCommand(context.Background(), ok, "control")
	require.NoError(t, err)
	assert.Equal(t, RejectionAnomalous, rej)
}

func TestSetClearLockdownReleasesLockdownAndBeacon(t *testing.T) {
	set := NewSet(0)
	set.Activate(TagCommandLockdown)
	set.Activate(TagEmergencyBeacon)
	require.True(t, set.IsActive(TagCommandLockdown))

	set.ClearLockdown()
	assert.False(t, set.IsActive(TagCommandLockdown))
	assert.False(t, set.IsActive(TagEmergencyBeacon))
}

func TestFrequencyCheckFlagsExcessiveRepeats(t *testing.T) {
	fc := NewFrequencyCheck()
	var last *Anomaly
	for i := 0; i < 9; i++ {
		last = fc.Check(Command{Kind: "navigation.altitude", SourceID: "src-1"})
	}
	require.NotNil(t, last)
	assert.Equal(t, "excessive_commands", last.Type)
	assert.Equal(t, 8, last.Severity)
}

func TestBehavioralCheckFlagsNewKindAfterWarmup(t *testing.T) {
	bc := NewBehavioralCheck()
	for i := 0; i < 5; i++ {
		assert.Nil(t, bc.Check(Command{Kind: "navigation.altitude", SourceID: "src-1"}))
	}
	a := bc.Check(Command{Kind: "system.action", SourceID: "src-1"})
	require.NotNil(t, a)
	assert.Equal(t, "unusual_pattern", a.Type)
}
