package authz

import "github.com/google/uuid"

// ScopeType identifies the tier a role assignment or resource is anchored at.
type ScopeType string

const (
	ScopeTenant    ScopeType = "TENANT"
	ScopeWorkspace ScopeType = "WORKSPACE"
	ScopeTeam      ScopeType = "TEAM"
)

// ScopeChain locates a resource inside the tenant hierarchy. TenantID is
// always set; WorkspaceID and TeamID are uuid.Nil when the resource is
// anchored higher up.
type ScopeChain struct {
	TenantID    uuid.UUID
	WorkspaceID uuid.UUID
	TeamID      uuid.UUID
}

// TenantChain returns a chain anchored directly at the tenant.
func TenantChain(tenantID uuid.UUID) ScopeChain {
	return ScopeChain{TenantID: tenantID}
}

// covers reports whether an assignment at (scopeType, scopeID) is an
// ancestor-or-equal of the chain. A workspace-scoped assignment covers the
// workspace itself and every team inside it, but never a sibling workspace.
func (c ScopeChain) covers(scopeType ScopeType, scopeID uuid.UUID) bool {
	switch scopeType {
	case ScopeTenant:
		return scopeID == c.TenantID
	case ScopeWorkspace:
		return c.WorkspaceID != uuid.Nil && scopeID == c.WorkspaceID
	case ScopeTeam:
		return c.TeamID != uuid.Nil && scopeID == c.TeamID
	}
	return false
}
