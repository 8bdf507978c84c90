package directory

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation root. Nothing crosses a tenant boundary except
// superuser reads.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Workspace belongs to exactly one tenant.
type Workspace struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Team belongs to exactly one workspace. TenantID is denormalised so scope
// chains resolve in one lookup.
type Team struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	TenantID    uuid.UUID
	Name        string
	CreatedAt   time.Time
}
