package okr

import (
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
)

// Status is the progress state of an objective or key result. It is
// independent of the publish state.
type Status string

const (
	StatusOnTrack   Status = "ON_TRACK"
	StatusAtRisk    Status = "AT_RISK"
	StatusOffTrack  Status = "OFF_TRACK"
	StatusCompleted Status = "COMPLETED"
)

// PublishState is the governance state of a record.
type PublishState string

const (
	PublishDraft     PublishState = "DRAFT"
	PublishPublished PublishState = "PUBLISHED"
)

// Objective is the top-level goal record. Visibility and whitelist live here;
// children inherit the computed outcome.
type Objective struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	WorkspaceID  uuid.UUID
	TeamID       uuid.UUID
	OwnerID      int64
	Title        string
	Description  string
	Status       Status
	PublishState PublishState
	Visibility   authz.Visibility
	Whitelist    []int64
	CycleID      uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// KeyResult is a measurable child of an objective. It carries its own owner
// and status but no visibility of its own.
type KeyResult struct {
	ID          uuid.UUID
	ObjectiveID uuid.UUID
	OwnerID     int64
	Title       string
	Status      Status
	Target      float64
	Current     float64
	Unit        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Initiative is a work item attached to an objective.
type Initiative struct {
	ID          uuid.UUID
	ObjectiveID uuid.UUID
	OwnerID     int64
	Title       string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckIn records a progress update on a key result.
type CheckIn struct {
	ID          uuid.UUID
	KeyResultID uuid.UUID
	AuthorID    int64
	Value       float64
	Note        string
	At          time.Time
}

// Scope returns the objective's position in the hierarchy.
func (o Objective) Scope() authz.ScopeChain {
	return authz.ScopeChain{TenantID: o.TenantID, WorkspaceID: o.WorkspaceID, TeamID: o.TeamID}
}

// Guarded converts the objective to the engine's resource view.
func (o Objective) Guarded() authz.Resource {
	return authz.Resource{
		ID:         o.ID,
		OwnerID:    o.OwnerID,
		Scope:      o.Scope(),
		Visibility: o.Visibility,
		Whitelist:  o.Whitelist,
		CycleID:    o.CycleID,
	}
}

// Guarded converts the key result to the engine's resource view. The parent
// objective must be supplied for visibility to resolve.
func (k KeyResult) Guarded(parent Objective) authz.Resource {
	return authz.Resource{
		ID:       k.ID,
		OwnerID:  k.OwnerID,
		Scope:    parent.Scope(),
		ParentID: k.ObjectiveID,
		CycleID:  parent.CycleID,
	}
}
