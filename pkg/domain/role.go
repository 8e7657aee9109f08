package domain

// Role describes one organization role.
type Role struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Priority int      `yaml:"priority"`
	Scopes   []string `yaml:"scopes"`
}

// Built-in role identifiers.
const (
	RoleMember  = "member"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleOwner   = "owner"
)

// RoleSet is the set of recognized roles.
type RoleSet struct {
	roles map[string]Role
	order []string
}

// NewRoleSet builds a role set. Later duplicates replace earlier ones.
func NewRoleSet(roles ...Role) *RoleSet {
	rs := &RoleSet{roles: make(map[string]Role, len(roles))}
	for _, r := range roles {
		if _, ok := rs.roles[r.ID]; !ok {
			rs.order = append(rs.order, r.ID)
		}
		rs.roles[r.ID] = r
	}
	return rs
}

// DefaultRoles returns the built-in role set.
func DefaultRoles() *RoleSet {
	return NewRoleSet(
		Role{ID: RoleMember, Name: "Member", Priority: 0, Scopes: []string{ScopeOrgRead}},
		Role{ID: RoleAdmin, Name: "Admin", Priority: 1, Scopes: []string{ScopeOrgRead, ScopeOrgWrite}},
		Role{ID: RoleManager, Name: "Manager", Priority: 2, Scopes: []string{ScopeOrgRead, ScopeOrgWrite, ScopeOrgAdmin}},
		Role{ID: RoleOwner, Name: "Owner", Priority: 3, Scopes: []string{ScopeOrgRead, ScopeOrgWrite, ScopeOrgAdmin}},
	)
}

// Has returns true if id names a recognized role.
func (rs *RoleSet) Has(id string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.roles[id]
	return ok
}

// Get returns the role with the given id.
func (rs *RoleSet) Get(id string) (Role, bool) {
	if rs == nil {
		return Role{}, false
	}
	r, ok := rs.roles[id]
	return r, ok
}

// IDs returns role identifiers in declaration order.
func (rs *RoleSet) IDs() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}
