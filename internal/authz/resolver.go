package authz

import "github.com/google/uuid"

// applicable filters the principal's assignments down to those whose scope is
// an ancestor-or-equal of the resource's scope chain. A role granted at a
// workspace applies to that workspace and its teams, never to a sibling
// workspace in the same tenant.
func applicable(assignments []Assignment, chain ScopeChain) []Assignment {
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if chain.covers(a.ScopeType, a.ScopeID) {
			out = append(out, a)
		}
	}
	return out
}

// permitted decides (principal, action, scope chain) from the assignments
// handed to it. It is a pure function: callers fetch assignments once and the
// decision is computed without further I/O.
//
// Superusers are read-only auditors: every read is allowed, every mutation is
// denied, with platform-level user management as the single exception.
//
// The base view action is granted by membership anywhere in the tenant, since
// every role tier carries view at its own scope and tenant-wide readability is
// then narrowed per record by the visibility resolver. Mutations are stricter:
// only assignments that are ancestor-or-equal of the resource's chain apply.
func permitted(p Principal, assignments []Assignment, action Action, chain ScopeChain) bool {
	if p.Superuser {
		if action == ActionManagePlatformUsers {
			return true
		}
		return action.Read()
	}
	if action == ActionManagePlatformUsers {
		return false
	}
	if action.Read() {
		return tenantMember(assignments, chain.TenantID)
	}
	for _, a := range applicable(assignments, chain) {
		if a.Role.Allows(action) {
			return true
		}
	}
	return false
}

// tenantMember reports whether the principal holds any assignment, of any
// tier, inside the given tenant.
func tenantMember(assignments []Assignment, tenantID uuid.UUID) bool {
	for _, a := range assignments {
		if a.TenantID == tenantID {
			return true
		}
	}
	return false
}

// hasAdminTier reports whether the principal holds TENANT_OWNER or
// TENANT_ADMIN at the chain's tenant.
func hasAdminTier(assignments []Assignment, chain ScopeChain) bool {
	for _, a := range assignments {
		if a.ScopeType == ScopeTenant && a.ScopeID == chain.TenantID && a.Role.adminTier() {
			return true
		}
	}
	return false
}

// canBypassLock reports whether any applicable assignment carries the cycle
// lock bypass.
func canBypassLock(assignments []Assignment, chain ScopeChain) bool {
	for _, a := range applicable(assignments, chain) {
		if a.Role.BypassesCycleLock() {
			return true
		}
	}
	return false
}
