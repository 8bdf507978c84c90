package roles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/shared"
)

// ErrUnknownRole is returned when the requested role tag is not part of the
// closed role set.
var ErrUnknownRole = errors.New("roles: unknown role")

// ChainResolver resolves a scope instance into its full chain. Resolution
// doubles as the scope-existence check: grants against scopes that do not
// exist fail here.
type ChainResolver interface {
	ChainFor(ctx context.Context, scopeType authz.ScopeType, scopeID uuid.UUID) (authz.ScopeChain, error)
}

// Service manages role assignments. Every grant and revoke is guarded by
// manage_users at the target scope, so workspace leads can manage their
// workspace but never the tenant above it.
type Service struct {
	store  authz.AssignmentStore
	chains ChainResolver
	engine *authz.Engine
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(store authz.AssignmentStore, chains ChainResolver, engine *authz.Engine) *Service {
	return &Service{store: store, chains: chains, engine: engine, now: time.Now}
}

// GrantInput names the assignment to create. The scope type is implied by the
// role, so callers only pass the scope instance id.
type GrantInput struct {
	PrincipalID int64
	Role        authz.Role
	ScopeID     uuid.UUID
}

// Grant assigns a role. Assigning a role the principal already holds is a
// no-op; assigning a different role at the same scope replaces the old one.
func (s *Service) Grant(ctx context.Context, actor authz.Principal, in GrantInput) error {
	if !in.Role.Valid() {
		return ErrUnknownRole
	}
	chain, err := s.chains.ChainFor(ctx, in.Role.ScopeType(), in.ScopeID)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(ctx, actor, chain); err != nil {
		return err
	}
	return s.store.Assign(ctx, authz.Assignment{
		PrincipalID: in.PrincipalID,
		Role:        in.Role,
		ScopeType:   in.Role.ScopeType(),
		ScopeID:     in.ScopeID,
		TenantID:    chain.TenantID,
		CreatedAt:   s.now(),
	})
}

// Revoke removes an assignment. Revoking a tuple that does not exist is a
// no-op so callers can retry safely.
func (s *Service) Revoke(ctx context.Context, actor authz.Principal, in GrantInput) error {
	if !in.Role.Valid() {
		return ErrUnknownRole
	}
	chain, err := s.chains.ChainFor(ctx, in.Role.ScopeType(), in.ScopeID)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(ctx, actor, chain); err != nil {
		return err
	}
	return s.store.Revoke(ctx, in.PrincipalID, in.Role, in.Role.ScopeType(), in.ScopeID)
}

// ListForPrincipal returns a principal's assignments. Principals always see
// their own; anyone else's require manage_users at the actor's tenant, and
// the result is filtered to that tenant. Superusers see everything.
func (s *Service) ListForPrincipal(ctx context.Context, actor authz.Principal, principalID int64) ([]authz.Assignment, error) {
	if actor.Anonymous() {
		return nil, shared.GuardError(authz.Decision{Reason: authz.ReasonUnauthenticated})
	}
	all, err := s.store.ListAssignments(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if actor.Superuser || actor.ID == principalID {
		return all, nil
	}
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal: actor,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: authz.TenantChain(actor.TenantID)},
	})
	if err != nil {
		return nil, err
	}
	if err := shared.GuardError(d); err != nil {
		return nil, err
	}
	out := make([]authz.Assignment, 0, len(all))
	for _, a := range all {
		if a.TenantID == actor.TenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

// authorizeManage checks manage_users at the chain the grant targets. A
// tenant admin passes for any scope under the tenant, a workspace lead only
// for scopes inside the workspace.
func (s *Service) authorizeManage(ctx context.Context, actor authz.Principal, chain authz.ScopeChain) error {
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal: actor,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: chain},
	})
	if err != nil {
		return err
	}
	return shared.GuardError(d)
}
