package cycles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/shared"
)

// RepositoryPort defines data access for cycles.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Cycle, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Cycle, error)
	Create(ctx context.Context, c Cycle) error
	SetStatus(ctx context.Context, id uuid.UUID, status authz.CycleStatus, at time.Time) error
	ListExpiringActive(ctx context.Context, before time.Time) ([]Cycle, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cycleColumns = `id, tenant_id, name, starts_on, ends_on, status, created_at, updated_at`

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	var status string
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.StartsOn, &c.EndsOn, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cycle{}, err
	}
	c.Status = authz.CycleStatus(status)
	return c, nil
}

// Get fetches one cycle.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Cycle, error) {
	c, err := scanCycle(r.pool.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Cycle{}, shared.ErrNotFound
	}
	return c, err
}

// List returns the tenant's cycles newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Cycle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cycleColumns+` FROM cycles WHERE tenant_id = $1 ORDER BY starts_on DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a cycle.
func (r *Repository) Create(ctx context.Context, c Cycle) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cycles (`+cycleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.TenantID, c.Name, c.StartsOn, c.EndsOn, string(c.Status), c.CreatedAt, c.UpdatedAt)
	return err
}

// SetStatus updates the governance status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status authz.CycleStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cycles SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListExpiringActive returns ACTIVE cycles whose end date has passed; the
// worker locks them.
func (r *Repository) ListExpiringActive(ctx context.Context, before time.Time) ([]Cycle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cycleColumns+` FROM cycles WHERE status = 'ACTIVE' AND ends_on < $1`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
