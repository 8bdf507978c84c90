package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compasshq/compass/internal/shared"
)

// RepositoryPort defines data access for the tenant hierarchy.
type RepositoryPort interface {
	CreateTenant(ctx context.Context, t Tenant) error
	CreateWorkspace(ctx context.Context, w Workspace) error
	CreateTeam(ctx context.Context, tm Team) error
	GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (Workspace, error)
	GetTeam(ctx context.Context, id uuid.UUID) (Team, error)
	ListWorkspaces(ctx context.Context, tenantID uuid.UUID) ([]Workspace, error)
	ListTeams(ctx context.Context, workspaceID uuid.UUID) ([]Team, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTenant inserts a tenant.
func (r *Repository) CreateTenant(ctx context.Context, t Tenant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.CreatedAt)
	return err
}

// CreateWorkspace inserts a workspace.
func (r *Repository) CreateWorkspace(ctx context.Context, w Workspace) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workspaces (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.TenantID, w.Name, w.CreatedAt)
	return err
}

// CreateTeam inserts a team.
func (r *Repository) CreateTeam(ctx context.Context, tm Team) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO teams (id, workspace_id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		tm.ID, tm.WorkspaceID, tm.TenantID, tm.Name, tm.CreatedAt)
	return err
}

// GetTenant fetches a tenant by id.
func (r *Repository) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, created_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, shared.ErrNotFound
	}
	return t, err
}

// GetWorkspace fetches a workspace by id.
func (r *Repository) GetWorkspace(ctx context.Context, id uuid.UUID) (Workspace, error) {
	var w Workspace
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at FROM workspaces WHERE id = $1`, id).
		Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Workspace{}, shared.ErrNotFound
	}
	return w, err
}

// GetTeam fetches a team by id.
func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (Team, error) {
	var tm Team
	err := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, tenant_id, name, created_at FROM teams WHERE id = $1`, id).
		Scan(&tm.ID, &tm.WorkspaceID, &tm.TenantID, &tm.Name, &tm.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, shared.ErrNotFound
	}
	return tm, err
}

// ListWorkspaces returns workspaces of a tenant ordered by name.
func (r *Repository) ListWorkspaces(ctx context.Context, tenantID uuid.UUID) ([]Workspace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, created_at FROM workspaces WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListTeams returns teams of a workspace ordered by name.
func (r *Repository) ListTeams(ctx context.Context, workspaceID uuid.UUID) ([]Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, tenant_id, name, created_at FROM teams WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var tm Team
		if err := rows.Scan(&tm.ID, &tm.WorkspaceID, &tm.TenantID, &tm.Name, &tm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}
