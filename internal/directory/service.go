package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
)

// Service handles tenant hierarchy business logic.
type Service struct {
	repo   RepositoryPort
	grants authz.AssignmentStore
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, grants authz.AssignmentStore) *Service {
	return &Service{repo: repo, grants: grants}
}

// CreateTenant provisions a tenant and bootstraps the creator as
// TENANT_OWNER. This is the one self-granted assignment in the system.
func (s *Service) CreateTenant(ctx context.Context, creatorID int64, name, slug string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, errors.New("directory: tenant name required")
	}
	t := Tenant{
		ID:        uuid.New(),
		Name:      name,
		Slug:      strings.TrimSpace(slug),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateTenant(ctx, t); err != nil {
		return Tenant{}, err
	}
	err := s.grants.Assign(ctx, authz.Assignment{
		PrincipalID: creatorID,
		Role:        authz.RoleTenantOwner,
		ScopeType:   authz.ScopeTenant,
		ScopeID:     t.ID,
		TenantID:    t.ID,
	})
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}

// CreateWorkspace adds a workspace under the tenant.
func (s *Service) CreateWorkspace(ctx context.Context, tenantID uuid.UUID, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, errors.New("directory: workspace name required")
	}
	if _, err := s.repo.GetTenant(ctx, tenantID); err != nil {
		return Workspace{}, err
	}
	w := Workspace{ID: uuid.New(), TenantID: tenantID, Name: name, CreatedAt: time.Now()}
	if err := s.repo.CreateWorkspace(ctx, w); err != nil {
		return Workspace{}, err
	}
	return w, nil
}

// CreateTeam adds a team under the workspace.
func (s *Service) CreateTeam(ctx context.Context, workspaceID uuid.UUID, name string) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, errors.New("directory: team name required")
	}
	w, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return Team{}, err
	}
	tm := Team{ID: uuid.New(), WorkspaceID: w.ID, TenantID: w.TenantID, Name: name, CreatedAt: time.Now()}
	if err := s.repo.CreateTeam(ctx, tm); err != nil {
		return Team{}, err
	}
	return tm, nil
}

// workspaceChain resolves the chain for a workspace-anchored check.
func (s *Service) workspaceChain(ctx context.Context, workspaceID uuid.UUID) (authz.ScopeChain, error) {
	w, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return authz.ScopeChain{}, err
	}
	return authz.ScopeChain{TenantID: w.TenantID, WorkspaceID: w.ID}, nil
}

// ListWorkspaces returns the tenant's workspaces.
func (s *Service) ListWorkspaces(ctx context.Context, tenantID uuid.UUID) ([]Workspace, error) {
	return s.repo.ListWorkspaces(ctx, tenantID)
}

// ListTeams returns the workspace's teams.
func (s *Service) ListTeams(ctx context.Context, workspaceID uuid.UUID) ([]Team, error) {
	return s.repo.ListTeams(ctx, workspaceID)
}
