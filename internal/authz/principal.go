package authz

import "github.com/google/uuid"

// Principal is the authenticated actor a decision is computed for. TenantID
// is the effective tenant resolved from the session, never from request
// parameters.
type Principal struct {
	ID        int64
	TenantID  uuid.UUID
	Superuser bool
}

// Anonymous reports whether no valid principal is present.
func (p Principal) Anonymous() bool {
	return p.ID == 0
}
