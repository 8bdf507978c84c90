package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
)

// User represents an authenticated account. TenantID is the user's home
// tenant; superusers are platform operators who belong to no tenant.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	TenantID     uuid.UUID
	Superuser    bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the user into the shape the authorization engine
// evaluates.
func (u User) Principal() authz.Principal {
	return authz.Principal{ID: u.ID, TenantID: u.TenantID, Superuser: u.Superuser}
}
