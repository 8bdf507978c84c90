package okr

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/db"
	"github.com/compasshq/compass/internal/shared"
)

// RepositoryPort defines data access for objectives and their children.
type RepositoryPort interface {
	GetObjective(ctx context.Context, id uuid.UUID) (Objective, error)
	ListObjectives(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Objective, error)
	CreateObjective(ctx context.Context, o Objective) error
	CreateObjectiveWithKeyResults(ctx context.Context, o Objective, krs []KeyResult) error
	UpdateObjective(ctx context.Context, o Objective) error
	DeleteObjective(ctx context.Context, id uuid.UUID) error

	GetKeyResult(ctx context.Context, id uuid.UUID) (KeyResult, error)
	ListKeyResults(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error)
	UpdateKeyResult(ctx context.Context, k KeyResult) error
	ListInitiatives(ctx context.Context, objectiveID uuid.UUID) ([]Initiative, error)
	CreateInitiative(ctx context.Context, in Initiative) error
	RecordCheckIn(ctx context.Context, c CheckIn) error
}

// ListFilter narrows a listing before visibility filtering runs.
type ListFilter struct {
	WorkspaceID uuid.UUID
	TeamID      uuid.UUID
	CycleID     uuid.UUID
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const objectiveColumns = `id, tenant_id, workspace_id, team_id, owner_id, title, description,
	status, publish_state, visibility, whitelist, cycle_id, created_at, updated_at`

func scanObjective(row pgx.Row) (Objective, error) {
	var o Objective
	var status, publish, visibility string
	err := row.Scan(&o.ID, &o.TenantID, &o.WorkspaceID, &o.TeamID, &o.OwnerID, &o.Title, &o.Description,
		&status, &publish, &visibility, &o.Whitelist, &o.CycleID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Objective{}, err
	}
	o.Status = Status(status)
	o.PublishState = PublishState(publish)
	o.Visibility = authz.Visibility(visibility)
	return o, nil
}

// GetObjective fetches one objective.
func (r *Repository) GetObjective(ctx context.Context, id uuid.UUID) (Objective, error) {
	o, err := scanObjective(r.pool.QueryRow(ctx,
		`SELECT `+objectiveColumns+` FROM objectives WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Objective{}, shared.ErrNotFound
	}
	return o, err
}

// ListObjectives returns all candidate objectives of a tenant matching the
// filter. Visibility filtering is the service's job; this returns the raw
// candidate set.
func (r *Repository) ListObjectives(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Objective, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+objectiveColumns+` FROM objectives
		WHERE tenant_id = $1
		  AND ($2::uuid = '00000000-0000-0000-0000-000000000000' OR workspace_id = $2)
		  AND ($3::uuid = '00000000-0000-0000-0000-000000000000' OR team_id = $3)
		  AND ($4::uuid = '00000000-0000-0000-0000-000000000000' OR cycle_id = $4)
		ORDER BY created_at DESC`,
		tenantID, filter.WorkspaceID, filter.TeamID, filter.CycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Objective
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateObjective inserts a new objective.
func (r *Repository) CreateObjective(ctx context.Context, o Objective) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO objectives (`+objectiveColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.TenantID, o.WorkspaceID, o.TeamID, o.OwnerID, o.Title, o.Description,
		string(o.Status), string(o.PublishState), string(o.Visibility), o.Whitelist, o.CycleID,
		o.CreatedAt, o.UpdatedAt)
	return err
}

// CreateObjectiveWithKeyResults inserts an objective and its key results in
// one transaction so a listing never observes a half-created composite.
func (r *Repository) CreateObjectiveWithKeyResults(ctx context.Context, o Objective, krs []KeyResult) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO objectives (`+objectiveColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			o.ID, o.TenantID, o.WorkspaceID, o.TeamID, o.OwnerID, o.Title, o.Description,
			string(o.Status), string(o.PublishState), string(o.Visibility), o.Whitelist, o.CycleID,
			o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}
		for _, k := range krs {
			_, err := tx.Exec(ctx, `
				INSERT INTO key_results (id, objective_id, owner_id, title, status, target, current, unit, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				k.ID, k.ObjectiveID, k.OwnerID, k.Title, string(k.Status), k.Target, k.Current, k.Unit, k.CreatedAt, k.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateObjective rewrites mutable fields.
func (r *Repository) UpdateObjective(ctx context.Context, o Objective) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE objectives
		SET title=$2, description=$3, status=$4, publish_state=$5, visibility=$6, whitelist=$7, cycle_id=$8, updated_at=$9
		WHERE id=$1`,
		o.ID, o.Title, o.Description, string(o.Status), string(o.PublishState), string(o.Visibility),
		o.Whitelist, o.CycleID, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteObjective removes the objective and cascades to children.
func (r *Repository) DeleteObjective(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM objectives WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetKeyResult fetches one key result.
func (r *Repository) GetKeyResult(ctx context.Context, id uuid.UUID) (KeyResult, error) {
	var k KeyResult
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, objective_id, owner_id, title, status, target, current, unit, created_at, updated_at
		FROM key_results WHERE id = $1`, id).
		Scan(&k.ID, &k.ObjectiveID, &k.OwnerID, &k.Title, &status, &k.Target, &k.Current, &k.Unit, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return KeyResult{}, shared.ErrNotFound
	}
	k.Status = Status(status)
	return k, err
}

// ListKeyResults returns the objective's key results.
func (r *Repository) ListKeyResults(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, objective_id, owner_id, title, status, target, current, unit, created_at, updated_at
		FROM key_results WHERE objective_id = $1 ORDER BY created_at`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyResult
	for rows.Next() {
		var k KeyResult
		var status string
		if err := rows.Scan(&k.ID, &k.ObjectiveID, &k.OwnerID, &k.Title, &status, &k.Target, &k.Current, &k.Unit, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		k.Status = Status(status)
		out = append(out, k)
	}
	return out, rows.Err()
}

// UpdateKeyResult rewrites the key result's mutable fields.
func (r *Repository) UpdateKeyResult(ctx context.Context, k KeyResult) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE key_results SET title=$2, status=$3, target=$4, current=$5, unit=$6, updated_at=$7
		WHERE id=$1`,
		k.ID, k.Title, string(k.Status), k.Target, k.Current, k.Unit, k.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListInitiatives returns the objective's initiatives.
func (r *Repository) ListInitiatives(ctx context.Context, objectiveID uuid.UUID) ([]Initiative, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, objective_id, owner_id, title, status, created_at, updated_at
		FROM initiatives WHERE objective_id = $1 ORDER BY created_at`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Initiative
	for rows.Next() {
		var in Initiative
		var status string
		if err := rows.Scan(&in.ID, &in.ObjectiveID, &in.OwnerID, &in.Title, &status, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		in.Status = Status(status)
		out = append(out, in)
	}
	return out, rows.Err()
}

// CreateInitiative inserts an initiative.
func (r *Repository) CreateInitiative(ctx context.Context, in Initiative) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO initiatives (id, objective_id, owner_id, title, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		in.ID, in.ObjectiveID, in.OwnerID, in.Title, string(in.Status), in.CreatedAt, in.UpdatedAt)
	return err
}

// RecordCheckIn appends a check-in and moves the key result's current value.
func (r *Repository) RecordCheckIn(ctx context.Context, c CheckIn) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO check_ins (id, key_result_id, author_id, value, note, at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.KeyResultID, c.AuthorID, c.Value, c.Note, c.At)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE key_results SET current = $2, updated_at = $3 WHERE id = $1`,
			c.KeyResultID, c.Value, c.At)
		return err
	})
}
