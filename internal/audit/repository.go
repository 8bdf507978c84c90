package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides access to the decision audit store.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error)
	All(ctx context.Context, filters TimelineFilters) ([]Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one decision entry.
func (r *PGRepository) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO decision_audit (at, principal_id, tenant_id, action, resource_id, decision, reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, '00000000-0000-0000-0000-000000000000'::uuid), $6, $7)`,
		e.At.UTC(), e.PrincipalID, e.TenantID, e.Action, e.ResourceID, e.Decision, e.Reason,
	)
	return err
}

// Window returns one page of entries, newest first.
func (r *PGRepository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Entry, error) {
	query, args := buildTimelineQuery(f)
	query += fmt.Sprintf(" ORDER BY at DESC, id DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, offset, limit)
	return r.query(ctx, query, args)
}

// All returns every matching entry, newest first, for exports.
func (r *PGRepository) All(ctx context.Context, f TimelineFilters) ([]Entry, error) {
	query, args := buildTimelineQuery(f)
	query += " ORDER BY at DESC, id DESC"
	return r.query(ctx, query, args)
}

// DeleteOlderThan drops entries past the retention horizon and reports how
// many were removed.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM decision_audit WHERE at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildTimelineQuery(f TimelineFilters) (string, []any) {
	query := `
		SELECT id, at, principal_id, tenant_id, action, COALESCE(resource_id, '00000000-0000-0000-0000-000000000000'::uuid), decision, reason
		FROM decision_audit
		WHERE 1=1`
	args := make([]any, 0, 6)
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}
	if !f.From.IsZero() {
		add(" AND at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add(" AND at < $%d", f.To.UTC())
	}
	if f.TenantID != uuid.Nil {
		add(" AND tenant_id = $%d", f.TenantID)
	}
	if f.PrincipalID != 0 {
		add(" AND principal_id = $%d", f.PrincipalID)
	}
	if f.Decision != "" {
		add(" AND decision = $%d", f.Decision)
	}
	if f.Reason != "" {
		add(" AND reason = $%d", f.Reason)
	}
	return query, args
}

func (r *PGRepository) query(ctx context.Context, query string, args []any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.PrincipalID, &e.TenantID, &e.Action, &e.ResourceID, &e.Decision, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
