package authz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Assignment grants a role to a principal at a concrete scope instance.
// TenantID is the tenant the scope lives in, resolved once when the grant is
// written, so tenant membership checks never reach back into the directory.
type Assignment struct {
	PrincipalID int64
	Role        Role
	ScopeType   ScopeType
	ScopeID     uuid.UUID
	TenantID    uuid.UUID
	CreatedAt   time.Time
}

// AssignmentStore owns the shared role-assignment state. The resolver is a
// pure function over the assignments handed to it, so implementations only
// need list/has/assign/revoke.
//
// Assign and Revoke are idempotent: assigning an existing tuple is a no-op,
// revoking a missing tuple is a no-op. A principal holds at most one role per
// scope instance; assigning a different role at the same scope replaces it.
// Writes must be visible to subsequent ListAssignments calls.
type AssignmentStore interface {
	ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error)
	HasAssignment(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) (bool, error)
	Assign(ctx context.Context, a Assignment) error
	Revoke(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) error
}

// MemoryStore is an in-memory AssignmentStore used in tests and as the
// reference for the idempotence contract.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[int64]map[scopeKey]Assignment
}

type scopeKey struct {
	scopeType ScopeType
	scopeID   uuid.UUID
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]map[scopeKey]Assignment)}
}

// ListAssignments returns the principal's assignments in stable order.
func (s *MemoryStore) ListAssignments(ctx context.Context, principalID int64) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scoped := s.byID[principalID]
	out := make([]Assignment, 0, len(scoped))
	for _, a := range scoped {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScopeType != out[j].ScopeType {
			return out[i].ScopeType < out[j].ScopeType
		}
		return out[i].ScopeID.String() < out[j].ScopeID.String()
	})
	return out, nil
}

// HasAssignment reports whether the exact tuple exists.
func (s *MemoryStore) HasAssignment(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[principalID][scopeKey{scopeType, scopeID}]
	return ok && a.Role == role, nil
}

// Assign upserts the assignment for (principal, scope).
func (s *MemoryStore) Assign(ctx context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scoped, ok := s.byID[a.PrincipalID]
	if !ok {
		scoped = make(map[scopeKey]Assignment)
		s.byID[a.PrincipalID] = scoped
	}
	key := scopeKey{a.ScopeType, a.ScopeID}
	if existing, ok := scoped[key]; ok && existing.Role == a.Role {
		return nil
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	scoped[key] = a
	return nil
}

// Revoke removes the tuple if present.
func (s *MemoryStore) Revoke(ctx context.Context, principalID int64, role Role, scopeType ScopeType, scopeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey{scopeType, scopeID}
	if a, ok := s.byID[principalID][key]; ok && a.Role == role {
		delete(s.byID[principalID], key)
	}
	return nil
}
