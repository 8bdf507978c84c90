package authz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists role assignments in Postgres. The role_assignments table
// carries a unique key on (principal_id, scope_type, scope_id) so a principal
// holds one role per scope instance.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ListAssignments returns all assignments for the principal.
func (s *PGStore) ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT principal_id, role, scope_type, scope_id, tenant_id, created_at
		FROM role_assignments
		WHERE principal_id = $1
		ORDER BY scope_type, scope_id`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		var role, scopeType string
		if err := rows.Scan(&a.PrincipalID, &role, &scopeType, &a.ScopeID, &a.TenantID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = Role(role)
		a.ScopeType = ScopeType(scopeType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasAssignment reports whether the exact tuple exists.
func (s *PGStore) HasAssignment(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_assignments
			WHERE principal_id = $1 AND role = $2 AND scope_type = $3 AND scope_id = $4
		)`, principalID, string(role), string(scopeType), scopeID).Scan(&exists)
	return exists, err
}

// Assign upserts the assignment. Re-assigning the same tuple leaves the row
// untouched; a different role at the same scope replaces the old one.
func (s *PGStore) Assign(ctx context.Context, a Assignment) error {
	at := a.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_assignments (principal_id, role, scope_type, scope_id, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (principal_id, scope_type, scope_id)
		DO UPDATE SET role = EXCLUDED.role
		WHERE role_assignments.role <> EXCLUDED.role`,
		a.PrincipalID, string(a.Role), string(a.ScopeType), a.ScopeID, a.TenantID, at)
	return err
}

// Revoke deletes the tuple. Deleting a missing tuple is not an error.
func (s *PGStore) Revoke(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE principal_id = $1 AND role = $2 AND scope_type = $3 AND scope_id = $4`,
		principalID, string(role), string(scopeType), scopeID)
	return err
}
