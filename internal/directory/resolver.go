package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/compasshq/compass/internal/authz"
)

// ScopeResolver turns (scopeType, scopeID) into the full scope chain and
// answers scope-existence checks for role grants. Concurrent lookups of the
// same scope are collapsed through singleflight; the hierarchy itself is
// immutable once created, so collapsed results are safe to share.
type ScopeResolver struct {
	repo  RepositoryPort
	group singleflight.Group
}

// NewScopeResolver constructs a resolver over the repository.
func NewScopeResolver(repo RepositoryPort) *ScopeResolver {
	return &ScopeResolver{repo: repo}
}

// ChainFor resolves the scope chain anchored at the given scope instance.
func (s *ScopeResolver) ChainFor(ctx context.Context, scopeType authz.ScopeType, scopeID uuid.UUID) (authz.ScopeChain, error) {
	key := fmt.Sprintf("%s:%s", scopeType, scopeID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.chainFor(ctx, scopeType, scopeID)
	})
	if err != nil {
		return authz.ScopeChain{}, err
	}
	return v.(authz.ScopeChain), nil
}

func (s *ScopeResolver) chainFor(ctx context.Context, scopeType authz.ScopeType, scopeID uuid.UUID) (authz.ScopeChain, error) {
	switch scopeType {
	case authz.ScopeTenant:
		t, err := s.repo.GetTenant(ctx, scopeID)
		if err != nil {
			return authz.ScopeChain{}, err
		}
		return authz.ScopeChain{TenantID: t.ID}, nil
	case authz.ScopeWorkspace:
		w, err := s.repo.GetWorkspace(ctx, scopeID)
		if err != nil {
			return authz.ScopeChain{}, err
		}
		return authz.ScopeChain{TenantID: w.TenantID, WorkspaceID: w.ID}, nil
	case authz.ScopeTeam:
		tm, err := s.repo.GetTeam(ctx, scopeID)
		if err != nil {
			return authz.ScopeChain{}, err
		}
		return authz.ScopeChain{TenantID: tm.TenantID, WorkspaceID: tm.WorkspaceID, TeamID: tm.ID}, nil
	}
	return authz.ScopeChain{}, fmt.Errorf("directory: unknown scope type %q", scopeType)
}
