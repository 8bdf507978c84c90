package cycles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/shared"
)

// ErrBadTransition indicates a status move outside the allowed graph.
var ErrBadTransition = errors.New("cycles: transition not allowed")

// Service handles cycle governance. Status transitions are tenant-level
// governance operations and require the tenant admin tier.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// StatusOf resolves the governance status of a cycle. It satisfies the OKR
// module's cycle port.
func (s *Service) StatusOf(ctx context.Context, cycleID uuid.UUID) (authz.CycleStatus, error) {
	c, err := s.repo.Get(ctx, cycleID)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

// List returns the tenant's cycles for any tenant member.
func (s *Service) List(ctx context.Context, p authz.Principal, tenantID uuid.UUID) ([]Cycle, error) {
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal: p,
		Action:    authz.ActionView,
		Resource:  authz.Resource{Scope: authz.TenantChain(tenantID), Visibility: authz.VisibilityPublicTenant},
	})
	if err != nil {
		return nil, err
	}
	if err := shared.GuardError(d); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// Create provisions a DRAFT cycle.
func (s *Service) Create(ctx context.Context, p authz.Principal, tenantID uuid.UUID, name string, startsOn, endsOn time.Time) (Cycle, error) {
	if err := s.authorizeGovernance(ctx, p, tenantID); err != nil {
		return Cycle{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Cycle{}, errors.New("cycles: name required")
	}
	if !endsOn.After(startsOn) {
		return Cycle{}, errors.New("cycles: end must be after start")
	}
	now := time.Now()
	c := Cycle{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		StartsOn:  startsOn,
		EndsOn:    endsOn,
		Status:    authz.CycleDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Cycle{}, err
	}
	return c, nil
}

// Transition moves a cycle to the requested status.
func (s *Service) Transition(ctx context.Context, p authz.Principal, cycleID uuid.UUID, to authz.CycleStatus) (Cycle, error) {
	c, err := s.repo.Get(ctx, cycleID)
	if err != nil {
		return Cycle{}, err
	}
	if err := s.authorizeGovernance(ctx, p, c.TenantID); err != nil {
		return Cycle{}, err
	}
	if !canTransition(c.Status, to) {
		return Cycle{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, to)
	}
	now := time.Now()
	if err := s.repo.SetStatus(ctx, cycleID, to, now); err != nil {
		return Cycle{}, err
	}
	c.Status = to
	c.UpdatedAt = now
	return c, nil
}

// AutoLockExpired locks every ACTIVE cycle whose end date is in the past.
// Called by the worker; bypasses the engine since it is a system actor.
func (s *Service) AutoLockExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiringActive(ctx, now)
	if err != nil {
		return 0, err
	}
	locked := 0
	for _, c := range expired {
		if err := s.repo.SetStatus(ctx, c.ID, authz.CycleLocked, now); err != nil {
			return locked, err
		}
		locked++
	}
	return locked, nil
}

// authorizeGovernance requires the tenant admin tier. Workspace leads hold
// manage_users at their workspace, but a tenant-anchored resource is outside
// a workspace assignment's reach, so only TENANT_OWNER/TENANT_ADMIN pass.
func (s *Service) authorizeGovernance(ctx context.Context, p authz.Principal, tenantID uuid.UUID) error {
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal: p,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: authz.TenantChain(tenantID)},
	})
	if err != nil {
		return err
	}
	return shared.GuardError(d)
}
