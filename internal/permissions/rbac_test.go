package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminMatchesEverything(t *testing.T) {
	table := DefaultTable()
	assert.True(t, table.Check(RoleAdmin, "anything", "anything"))
	assert.True(t, table.Check(RoleAdmin, "mission", "create"))
}

func TestOperatorDefaults(t *testing.T) {
	table := DefaultTable()
	assert.True(t, table.Check(RoleOperator, "mission", "execute"))
	assert.True(t, table.Check(RoleOperator, "sensors", "read"))
	assert.True(t, table.Check(RoleOperator, "navigation", "control"))
	assert.False(t, table.Check(RoleOperator, "navigation", "diagnose"))
	assert.False(t, table.Check(RoleOperator, "system", "update"))
}

func TestObserverIsReadOnly(t *testing.T) {
	table := DefaultTable()
	assert.True(t, table.Check(RoleObserver, "telemetry", "read"))
	assert.False(t, table.Check(RoleObserver, "telemetry", "write"))
	assert.False(t, table.Check(RoleObserver, "mission", "create"))
}

func TestMaintenanceDefaults(t *testing.T) {
	table := DefaultTable()
	assert.True(t, table.Check(RoleMaintenance, "sensors", "calibrate"))
	assert.True(t, table.Check(RoleMaintenance, "system", "diagnose"))
	assert.False(t, table.Check(RoleMaintenance, "mission", "execute"))
}

func TestUnknownRoleHasNoGrants(t *testing.T) {
	table := DefaultTable()
	assert.False(t, table.Check(Role("Intruder"), "mission", "read"))
}

func TestCustomTableOverridesDefaults(t *testing.T) {
	table := NewTable(map[Role][]Grant{
		RoleObserver: {{Resource: "telemetry", Actions: []string{Wildcard}}},
	})
	assert.True(t, table.Check(RoleObserver, "telemetry", "write"))
	assert.False(t, table.Check(RoleObserver, "mission", "read"))
}
