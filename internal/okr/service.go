package okr

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/shared"
)

// CyclePort resolves the governance status of a cycle. The zero status means
// the resource is not cycle-bound.
type CyclePort interface {
	StatusOf(ctx context.Context, cycleID uuid.UUID) (authz.CycleStatus, error)
}

// Service wires the authorization engine in front of OKR business logic.
// Every mutation declares its action and runs the full gate chain before any
// write; every listing is visibility-filtered before totals are computed.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	cycles CyclePort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, cycles CyclePort) *Service {
	return &Service{repo: repo, engine: engine, cycles: cycles}
}

// ObjectivePage is a visibility-filtered listing slice.
type ObjectivePage struct {
	Objectives []Objective
	Paging     shared.Pagination
}

// sortByTitle orders objectives with locale-aware collation so titles with
// accents and mixed case sort the way people expect.
func sortByTitle(objectives []Objective) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(objectives, func(i, j int) bool {
		return c.CompareString(objectives[i].Title, objectives[j].Title) < 0
	})
}

// ListObjectives authorizes the listing, filters candidates through the
// visibility resolver, then paginates. Total counts never include records the
// requester cannot see.
func (s *Service) ListObjectives(ctx context.Context, p authz.Principal, tenantID uuid.UUID, filter ListFilter, page, perPage int) (ObjectivePage, error) {
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal: p,
		Action:    authz.ActionView,
		Resource:  authz.Resource{Scope: authz.TenantChain(tenantID), Visibility: authz.VisibilityPublicTenant},
	})
	if err != nil {
		return ObjectivePage{}, err
	}
	if err := shared.GuardError(d); err != nil {
		return ObjectivePage{}, err
	}

	candidates, err := s.repo.ListObjectives(ctx, tenantID, filter)
	if err != nil {
		return ObjectivePage{}, err
	}
	byID := make(map[uuid.UUID]Objective, len(candidates))
	guarded := make([]authz.Resource, 0, len(candidates))
	for _, o := range candidates {
		byID[o.ID] = o
		guarded = append(guarded, o.Guarded())
	}
	seen, err := s.engine.FilterVisible(ctx, p, guarded, nil)
	if err != nil {
		return ObjectivePage{}, err
	}

	visible := make([]Objective, 0, len(seen))
	for _, res := range seen {
		visible = append(visible, byID[res.ID])
	}
	sortByTitle(visible)

	paging := shared.NewPagination(page, perPage, len(visible))
	lo, hi := paging.Slice(len(visible))
	return ObjectivePage{Objectives: visible[lo:hi], Paging: paging}, nil
}

// GetObjective returns the objective when visible. Invisible and cross-tenant
// records are indistinguishable from missing ones to the caller, except that
// cross-tenant references surface as Forbidden per the isolation contract.
func (s *Service) GetObjective(ctx context.Context, p authz.Principal, id uuid.UUID) (Objective, error) {
	o, err := s.repo.GetObjective(ctx, id)
	if err != nil {
		return Objective{}, err
	}
	d, err := s.engine.Authorize(ctx, authz.Request{Principal: p, Action: authz.ActionView, Resource: o.Guarded()})
	if err != nil {
		return Objective{}, err
	}
	if err := shared.GuardError(d); err != nil {
		return Objective{}, err
	}
	return o, nil
}

// CreateObjectiveInput carries the fields of a new objective.
type CreateObjectiveInput struct {
	TenantID    uuid.UUID
	WorkspaceID uuid.UUID
	TeamID      uuid.UUID
	Title       string
	Description string
	Visibility  authz.Visibility
	Whitelist   []int64
	CycleID     uuid.UUID
}

// KeyResultInput carries the fields of a new key result.
type KeyResultInput struct {
	Title  string
	Target float64
	Unit   string
}

func (in CreateObjectiveInput) build(ownerID int64, now time.Time) (Objective, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Objective{}, errors.New("okr: objective title required")
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = authz.VisibilityPublicTenant
	}
	var whitelist []int64
	if visibility == authz.VisibilityPrivate {
		whitelist = in.Whitelist
	}
	return Objective{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		WorkspaceID:  in.WorkspaceID,
		TeamID:       in.TeamID,
		OwnerID:      ownerID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       StatusOnTrack,
		PublishState: PublishDraft,
		Visibility:   visibility,
		Whitelist:    whitelist,
		CycleID:      in.CycleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) cycleStatus(ctx context.Context, cycleID uuid.UUID) (authz.CycleStatus, error) {
	if cycleID == uuid.Nil || s.cycles == nil {
		return "", nil
	}
	return s.cycles.StatusOf(ctx, cycleID)
}

// authorizeMutation runs the gate chain for a declared mutation action.
func (s *Service) authorizeMutation(ctx context.Context, p authz.Principal, action authz.Action, res authz.Resource, rateLimited bool) error {
	cycle, err := s.cycleStatus(ctx, res.CycleID)
	if err != nil {
		return err
	}
	d, err := s.engine.Authorize(ctx, authz.Request{
		Principal:   p,
		Action:      action,
		Resource:    res,
		Cycle:       cycle,
		RateLimited: rateLimited,
	})
	if err != nil {
		return err
	}
	return shared.GuardError(d)
}

// CreateObjective creates a single objective.
func (s *Service) CreateObjective(ctx context.Context, p authz.Principal, in CreateObjectiveInput) (Objective, error) {
	o, err := in.build(p.ID, time.Now())
	if err != nil {
		return Objective{}, err
	}
	if err := s.authorizeMutation(ctx, p, authz.ActionCreate, o.Guarded(), false); err != nil {
		return Objective{}, err
	}
	if err := s.repo.CreateObjective(ctx, o); err != nil {
		return Objective{}, err
	}
	return o, nil
}

// CreateComposite creates an objective together with its key results. This is
// the sensitive composite endpoint the mutation rate limiter bounds.
func (s *Service) CreateComposite(ctx context.Context, p authz.Principal, in CreateObjectiveInput, krs []KeyResultInput) (Objective, error) {
	now := time.Now()
	o, err := in.build(p.ID, now)
	if err != nil {
		return Objective{}, err
	}
	if err := s.authorizeMutation(ctx, p, authz.ActionCreate, o.Guarded(), true); err != nil {
		return Objective{}, err
	}
	children := make([]KeyResult, 0, len(krs))
	for _, kin := range krs {
		title := strings.TrimSpace(kin.Title)
		if title == "" {
			return Objective{}, errors.New("okr: key result title required")
		}
		children = append(children, KeyResult{
			ID:          uuid.New(),
			ObjectiveID: o.ID,
			OwnerID:     p.ID,
			Title:       title,
			Status:      StatusOnTrack,
			Target:      kin.Target,
			Unit:        kin.Unit,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := s.repo.CreateObjectiveWithKeyResults(ctx, o, children); err != nil {
		return Objective{}, err
	}
	return o, nil
}

// UpdateObjectiveInput carries mutable objective fields.
type UpdateObjectiveInput struct {
	Title       string
	Description string
	Status      Status
	Visibility  authz.Visibility
	Whitelist   []int64
}

// UpdateObjective edits an existing objective.
func (s *Service) UpdateObjective(ctx context.Context, p authz.Principal, id uuid.UUID, in UpdateObjectiveInput) (Objective, error) {
	o, err := s.repo.GetObjective(ctx, id)
	if err != nil {
		return Objective{}, err
	}
	if err := s.authorizeMutation(ctx, p, authz.ActionEdit, o.Guarded(), false); err != nil {
		return Objective{}, err
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		o.Title = title
	}
	if in.Description != "" {
		o.Description = strings.TrimSpace(in.Description)
	}
	if in.Status != "" {
		o.Status = in.Status
	}
	if in.Visibility != "" {
		o.Visibility = in.Visibility
		if o.Visibility == authz.VisibilityPrivate {
			o.Whitelist = in.Whitelist
		} else {
			o.Whitelist = nil
		}
	}
	o.UpdatedAt = time.Now()
	if err := s.repo.UpdateObjective(ctx, o); err != nil {
		return Objective{}, err
	}
	return o, nil
}

// DeleteObjective removes an objective.
func (s *Service) DeleteObjective(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	o, err := s.repo.GetObjective(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeMutation(ctx, p, authz.ActionDelete, o.Guarded(), false); err != nil {
		return err
	}
	return s.repo.DeleteObjective(ctx, id)
}

// PublishObjective moves the objective from DRAFT to PUBLISHED.
func (s *Service) PublishObjective(ctx context.Context, p authz.Principal, id uuid.UUID) (Objective, error) {
	o, err := s.repo.GetObjective(ctx, id)
	if err != nil {
		return Objective{}, err
	}
	if err := s.authorizeMutation(ctx, p, authz.ActionPublish, o.Guarded(), false); err != nil {
		return Objective{}, err
	}
	o.PublishState = PublishPublished
	o.UpdatedAt = time.Now()
	if err := s.repo.UpdateObjective(ctx, o); err != nil {
		return Objective{}, err
	}
	return o, nil
}

// ListKeyResults returns the key results of a visible objective.
func (s *Service) ListKeyResults(ctx context.Context, p authz.Principal, objectiveID uuid.UUID) ([]KeyResult, error) {
	// Inheritance: children are visible exactly when the parent is.
	if _, err := s.GetObjective(ctx, p, objectiveID); err != nil {
		return nil, err
	}
	return s.repo.ListKeyResults(ctx, objectiveID)
}

// ListInitiatives returns the initiatives of a visible objective.
func (s *Service) ListInitiatives(ctx context.Context, p authz.Principal, objectiveID uuid.UUID) ([]Initiative, error) {
	if _, err := s.GetObjective(ctx, p, objectiveID); err != nil {
		return nil, err
	}
	return s.repo.ListInitiatives(ctx, objectiveID)
}

// CheckIn records progress on a key result. Contribution is the narrow
// mutation WORKSPACE_MEMBER and TEAM_CONTRIBUTOR hold; editing someone
// else's key result still requires the full edit grant.
func (s *Service) CheckIn(ctx context.Context, p authz.Principal, keyResultID uuid.UUID, value float64, note string) (CheckIn, error) {
	k, err := s.repo.GetKeyResult(ctx, keyResultID)
	if err != nil {
		return CheckIn{}, err
	}
	parent, err := s.repo.GetObjective(ctx, k.ObjectiveID)
	if err != nil {
		return CheckIn{}, err
	}
	action := authz.ActionContribute
	if k.OwnerID != p.ID {
		action = authz.ActionEdit
	}
	if err := s.authorizeMutation(ctx, p, action, k.Guarded(parent), false); err != nil {
		return CheckIn{}, err
	}
	c := CheckIn{
		ID:          uuid.New(),
		KeyResultID: keyResultID,
		AuthorID:    p.ID,
		Value:       value,
		Note:        strings.TrimSpace(note),
		At:          time.Now(),
	}
	if err := s.repo.RecordCheckIn(ctx, c); err != nil {
		return CheckIn{}, err
	}
	return c, nil
}
