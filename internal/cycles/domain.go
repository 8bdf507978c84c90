package cycles

import (
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
)

// Cycle is a bounded planning period. LOCKED blocks ordinary mutation of
// resources dated within it.
type Cycle struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	StartsOn  time.Time
	EndsOn    time.Time
	Status    authz.CycleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// transitions is the allowed status graph. Unlocking returns a cycle to
// ACTIVE; ARCHIVED is terminal.
var transitions = map[authz.CycleStatus][]authz.CycleStatus{
	authz.CycleDraft:  {authz.CycleActive},
	authz.CycleActive: {authz.CycleLocked, authz.CycleArchived},
	authz.CycleLocked: {authz.CycleActive, authz.CycleArchived},
}

// canTransition reports whether from may move to to.
func canTransition(from, to authz.CycleStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
