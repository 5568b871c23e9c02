// Package permissions implements the pure (role, resource, action)
// permission matcher spec.md §4.6 and §6 define, generalized from the
// teacher's service-to-service role gating into a closed-set RBAC table.
package permissions

// Role is one of the four closed roles spec.md §4.6 names.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleOperator    Role = "Operator"
	RoleObserver    Role = "Observer"
	RoleMaintenance Role = "Maintenance"
)

// Wildcard matches any resource or any action.
const Wildcard = "*"

// Grant pairs a resource with the set of actions permitted on it. Either
// may be Wildcard.
type Grant struct {
	Resource string
	Actions  []string
}

func (g Grant) matchesResource(resource string) bool {
	return g.Resource == Wildcard || g.Resource == resource
}

func (g Grant) matchesAction(action string) bool {
	for _, a := range g.Actions {
		if a == Wildcard || a == action {
			return true
		}
	}
	return false
}

// Table is an immutable role → grants mapping. Check is pure: the same
// (role, resource, action) always yields the same result.
type Table struct {
	grants map[Role][]Grant
}

// DefaultTable returns the default permission table spec.md §6 lists.
func DefaultTable() Table {
	return Table{grants: map[Role][]Grant{
		RoleAdmin: {
			{Resource: Wildcard, Actions: []string{Wildcard}},
		},
		RoleOperator: {
			{Resource: "mission", Actions: []string{"create", "execute", "abort"}},
			{Resource: "sensors", Actions: []string{"configure", "read"}},
			{Resource: "navigation", Actions: []string{"control"}},
		},
		RoleObserver: {
			{Resource: "mission", Actions: []string{"read"}},
			{Resource: "sensors", Actions: []string{"read"}},
			{Resource: "telemetry", Actions: []string{"read"}},
		},
		RoleMaintenance: {
			{Resource: "sensors", Actions: []string{"configure", "calibrate", "diagnose"}},
			{Resource: "system", Actions: []string{"diagnose", "update"}},
		},
	}}
}

// NewTable builds a Table from a caller-supplied grants map, for
// deployments that override the defaults.
func NewTable(grants map[Role][]Grant) Table {
	return Table{grants: grants}
}

// Check reports whether role is permitted to perform action on resource:
// true iff any of role's grants matches both the resource (by equality or
// Wildcard) and the action (by membership or Wildcard). An unknown role
// has no grants and Check always returns false.
func (t Table) Check(role Role, resource, action string) bool {
	for _, g := range t.grants[role] {
		if g.matchesResource(resource) && g.matchesAction(action) {
			return true
		}
	}
	return false
}

// Grants returns role's grants, for audit logging and introspection. The
// returned slice is a copy; mutating it does not affect the Table.
func (t Table) Grants(role Role) []Grant {
	src := t.grants[role]
	out := make([]Grant, len(src))
	copy(out, src)
	return out
}
