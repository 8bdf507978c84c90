package authz

import "github.com/google/uuid"

// Visibility controls who may read a record, independent of role-based
// action permission.
type Visibility string

const (
	// VisibilityPublicTenant makes the record readable by every tenant member.
	VisibilityPublicTenant Visibility = "PUBLIC_TENANT"
	// VisibilityPrivate restricts reads to the owner, the whitelist and
	// tenant admin-tier roles.
	VisibilityPrivate Visibility = "PRIVATE"
)

// Resource is the engine's view of a guarded record. Child records (key
// results, initiatives) set ParentID and carry no visibility of their own;
// they inherit the parent objective's computed outcome.
type Resource struct {
	ID         uuid.UUID
	OwnerID    int64
	Scope      ScopeChain
	Visibility Visibility
	Whitelist  []int64
	ParentID   uuid.UUID
	CycleID    uuid.UUID
}

// Child reports whether the resource inherits visibility from a parent.
func (r Resource) Child() bool {
	return r.ParentID != uuid.Nil
}

// ParentLookup resolves a child's parent objective. The hierarchy is fixed at
// one level, so resolution is a single hop, never a graph walk.
type ParentLookup func(id uuid.UUID) (Resource, bool)

// visible decides whether one specific record is readable by the principal.
// The caller has already established the base view permission. Superuser
// reads see everything, cross-tenant included; that path is audited by the
// engine.
func visible(p Principal, assignments []Assignment, res Resource, parent ParentLookup) bool {
	if p.Superuser {
		return true
	}
	if res.Child() && parent != nil {
		parentRes, ok := parent(res.ParentID)
		if !ok {
			// Orphaned child: nothing to inherit from, keep it hidden.
			return false
		}
		return visible(p, assignments, parentRes, nil)
	}
	switch res.Visibility {
	case VisibilityPublicTenant:
		return tenantMember(assignments, res.Scope.TenantID)
	case VisibilityPrivate:
		if res.OwnerID == p.ID {
			return true
		}
		for _, id := range res.Whitelist {
			if id == p.ID {
				return true
			}
		}
		return hasAdminTier(assignments, res.Scope)
	}
	return false
}
