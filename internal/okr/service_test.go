package okr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

func isNotFound(err error) bool { return errors.Is(err, httpx.ErrNotFound) }

func isRateLimited(err error) bool { return errors.Is(err, httpx.ErrRateLimited) }

var testTenant = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

type stubRepo struct {
	objectives map[uuid.UUID]Objective
	keyResults map[uuid.UUID]KeyResult
	checkIns   []CheckIn
	composites int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		objectives: make(map[uuid.UUID]Objective),
		keyResults: make(map[uuid.UUID]KeyResult),
	}
}

func (s *stubRepo) GetObjective(ctx context.Context, id uuid.UUID) (Objective, error) {
	o, ok := s.objectives[id]
	if !ok {
		return Objective{}, shared.ErrNotFound
	}
	return o, nil
}

func (s *stubRepo) ListObjectives(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Objective, error) {
	var out []Objective
	for _, o := range s.objectives {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubRepo) CreateObjective(ctx context.Context, o Objective) error {
	s.objectives[o.ID] = o
	return nil
}

func (s *stubRepo) CreateObjectiveWithKeyResults(ctx context.Context, o Objective, krs []KeyResult) error {
	s.objectives[o.ID] = o
	for _, k := range krs {
		s.keyResults[k.ID] = k
	}
	s.composites++
	return nil
}

func (s *stubRepo) UpdateObjective(ctx context.Context, o Objective) error {
	s.objectives[o.ID] = o
	return nil
}

func (s *stubRepo) DeleteObjective(ctx context.Context, id uuid.UUID) error {
	delete(s.objectives, id)
	return nil
}

func (s *stubRepo) GetKeyResult(ctx context.Context, id uuid.UUID) (KeyResult, error) {
	k, ok := s.keyResults[id]
	if !ok {
		return KeyResult{}, shared.ErrNotFound
	}
	return k, nil
}

func (s *stubRepo) ListKeyResults(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error) {
	var out []KeyResult
	for _, k := range s.keyResults {
		if k.ObjectiveID == objectiveID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateKeyResult(ctx context.Context, k KeyResult) error {
	s.keyResults[k.ID] = k
	return nil
}

func (s *stubRepo) ListInitiatives(ctx context.Context, objectiveID uuid.UUID) ([]Initiative, error) {
	return nil, nil
}

func (s *stubRepo) CreateInitiative(ctx context.Context, in Initiative) error { return nil }

func (s *stubRepo) RecordCheckIn(ctx context.Context, c CheckIn) error {
	s.checkIns = append(s.checkIns, c)
	k := s.keyResults[c.KeyResultID]
	k.Current = c.Value
	s.keyResults[c.KeyResultID] = k
	return nil
}

type stubCycles struct {
	statuses map[uuid.UUID]authz.CycleStatus
}

func (s *stubCycles) StatusOf(ctx context.Context, cycleID uuid.UUID) (authz.CycleStatus, error) {
	return s.statuses[cycleID], nil
}

func newTestService(t *testing.T, limit int, grants ...authz.Assignment) (*Service, *stubRepo, *stubCycles) {
	t.Helper()
	store := authz.NewMemoryStore()
	for _, g := range grants {
		if err := store.Assign(context.Background(), g); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	engine := authz.NewEngine(authz.EngineConfig{
		Store:   store,
		Limiter: authz.NewMutationLimiter(limit, time.Minute),
	})
	repo := newStubRepo()
	cycles := &stubCycles{statuses: make(map[uuid.UUID]authz.CycleStatus)}
	return NewService(repo, engine, cycles), repo, cycles
}

func memberGrant(principal int64) authz.Assignment {
	return authz.Assignment{
		PrincipalID: principal,
		Role:        authz.RoleTenantAdmin,
		ScopeType:   authz.ScopeTenant,
		ScopeID:     testTenant,
		TenantID:    testTenant,
	}
}

func viewerGrant(principal int64) authz.Assignment {
	return authz.Assignment{
		PrincipalID: principal,
		Role:        authz.RoleTenantViewer,
		ScopeType:   authz.ScopeTenant,
		ScopeID:     testTenant,
		TenantID:    testTenant,
	}
}

func seedObjective(repo *stubRepo, owner int64, title string, visibility authz.Visibility, whitelist ...int64) Objective {
	o := Objective{
		ID:           uuid.New(),
		TenantID:     testTenant,
		OwnerID:      owner,
		Title:        title,
		Status:       StatusOnTrack,
		PublishState: PublishPublished,
		Visibility:   visibility,
		Whitelist:    whitelist,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo.objectives[o.ID] = o
	return o
}

func TestListTotalsCountOnlyVisibleRecords(t *testing.T) {
	owner := int64(1)
	viewer := int64(2)
	svc, repo, _ := newTestService(t, 100, memberGrant(owner), viewerGrant(viewer))

	seedObjective(repo, owner, "Alpha", authz.VisibilityPublicTenant)
	seedObjective(repo, owner, "Beta", authz.VisibilityPublicTenant)
	seedObjective(repo, owner, "Gamma", authz.VisibilityPrivate)
	seedObjective(repo, owner, "Delta", authz.VisibilityPrivate, viewer)

	p := authz.Principal{ID: viewer, TenantID: testTenant}
	page, err := svc.ListObjectives(context.Background(), p, testTenant, ListFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Viewer sees the two public records plus the whitelisted private one.
	if page.Paging.Total != 3 {
		t.Fatalf("total must count only visible records, got %d", page.Paging.Total)
	}
	if len(page.Objectives) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page.Objectives))
	}

	// Totals are independent of the requested page.
	page2, err := svc.ListObjectives(context.Background(), p, testTenant, ListFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page2.Paging.Total != 3 {
		t.Fatalf("total changed across pages: %d", page2.Paging.Total)
	}
	if len(page2.Objectives) != 1 {
		t.Fatalf("expected 1 record on last page, got %d", len(page2.Objectives))
	}
}

func TestListOrdersByTitleCollation(t *testing.T) {
	owner := int64(1)
	svc, repo, _ := newTestService(t, 100, memberGrant(owner))
	seedObjective(repo, owner, "Ship v2", authz.VisibilityPublicTenant)
	seedObjective(repo, owner, "Améliorer onboarding", authz.VisibilityPublicTenant)
	seedObjective(repo, owner, "adopt SSO", authz.VisibilityPublicTenant)

	page, err := svc.ListObjectives(context.Background(), authz.Principal{ID: owner, TenantID: testTenant}, testTenant, ListFilter{}, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"adopt SSO", "Améliorer onboarding", "Ship v2"}
	for i, o := range page.Objectives {
		if o.Title != want[i] {
			t.Fatalf("position %d: want %q, got %q", i, want[i], o.Title)
		}
	}
}

func TestGetPrivateObjectiveHidesExistence(t *testing.T) {
	owner := int64(1)
	outsider := int64(3)
	svc, repo, _ := newTestService(t, 100, memberGrant(owner), viewerGrant(outsider))
	o := seedObjective(repo, owner, "Secret bet", authz.VisibilityPrivate)

	_, err := svc.GetObjective(context.Background(), authz.Principal{ID: outsider, TenantID: testTenant}, o.ID)
	if err == nil {
		t.Fatal("outsider fetched a private objective")
	}
	// The denial renders as not-found, indistinguishable from a missing id.
	if !isNotFound(err) {
		t.Fatalf("want not-found shaped error, got %v", err)
	}
}

func TestCompositeCreateIsRateLimited(t *testing.T) {
	owner := int64(1)
	svc, repo, _ := newTestService(t, 2, memberGrant(owner))
	p := authz.Principal{ID: owner, TenantID: testTenant}

	in := CreateObjectiveInput{TenantID: testTenant, Title: "Grow revenue"}
	krs := []KeyResultInput{{Title: "ARR to 10M", Target: 10}}

	for i := 0; i < 2; i++ {
		if _, err := svc.CreateComposite(context.Background(), p, in, krs); err != nil {
			t.Fatalf("composite %d: %v", i, err)
		}
	}
	_, err := svc.CreateComposite(context.Background(), p, in, krs)
	if err == nil {
		t.Fatal("third composite should be throttled")
	}
	if !isRateLimited(err) {
		t.Fatalf("throttle must be distinguishable from forbidden, got %v", err)
	}
	if repo.composites != 2 {
		t.Fatalf("throttled request must not write, composites=%d", repo.composites)
	}

	// Plain single creates are not bound by the composite limiter.
	if _, err := svc.CreateObjective(context.Background(), p, in); err != nil {
		t.Fatalf("single create: %v", err)
	}
}

func TestCheckInContributeVsEdit(t *testing.T) {
	admin := int64(1)
	member := int64(4)
	svc, repo, _ := newTestService(t, 100, memberGrant(admin), authz.Assignment{
		PrincipalID: member,
		Role:        authz.RoleWorkspaceMember,
		ScopeType:   authz.ScopeWorkspace,
		ScopeID:     uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"),
		TenantID:    testTenant,
	})
	wsID := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")

	o := Objective{
		ID: uuid.New(), TenantID: testTenant, WorkspaceID: wsID, OwnerID: admin,
		Title: "Latency", Visibility: authz.VisibilityPublicTenant,
	}
	repo.objectives[o.ID] = o
	mine := KeyResult{ID: uuid.New(), ObjectiveID: o.ID, OwnerID: member, Title: "p99 under 200ms", Target: 200}
	theirs := KeyResult{ID: uuid.New(), ObjectiveID: o.ID, OwnerID: admin, Title: "error budget", Target: 1}
	repo.keyResults[mine.ID] = mine
	repo.keyResults[theirs.ID] = theirs

	p := authz.Principal{ID: member, TenantID: testTenant}
	if _, err := svc.CheckIn(context.Background(), p, mine.ID, 250, "baseline"); err != nil {
		t.Fatalf("member check-in on own key result: %v", err)
	}
	// A member holds contribute, not edit: someone else's key result is off limits.
	if _, err := svc.CheckIn(context.Background(), p, theirs.ID, 0.5, ""); err == nil {
		t.Fatal("member updated a key result they do not own")
	}
}

func TestMutationBlockedInLockedCycle(t *testing.T) {
	admin := int64(1)
	lead := int64(5)
	wsID := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	svc, repo, cycles := newTestService(t, 100, memberGrant(admin), authz.Assignment{
		PrincipalID: lead,
		Role:        authz.RoleWorkspaceLead,
		ScopeType:   authz.ScopeWorkspace,
		ScopeID:     wsID,
		TenantID:    testTenant,
	})

	cycleID := uuid.New()
	cycles.statuses[cycleID] = authz.CycleLocked
	o := Objective{
		ID: uuid.New(), TenantID: testTenant, WorkspaceID: wsID, OwnerID: lead,
		Title: "Q3 bets", Visibility: authz.VisibilityPublicTenant, CycleID: cycleID,
	}
	repo.objectives[o.ID] = o

	leadP := authz.Principal{ID: lead, TenantID: testTenant}
	if _, err := svc.UpdateObjective(context.Background(), leadP, o.ID, UpdateObjectiveInput{Title: "Q3 bets revised"}); err == nil {
		t.Fatal("lead mutated a locked cycle without bypass")
	}

	adminP := authz.Principal{ID: admin, TenantID: testTenant}
	if _, err := svc.UpdateObjective(context.Background(), adminP, o.ID, UpdateObjectiveInput{Title: "Q3 bets revised"}); err != nil {
		t.Fatalf("tenant admin bypass failed: %v", err)
	}

	// Reads stay open while the cycle is locked.
	if _, err := svc.GetObjective(context.Background(), leadP, o.ID); err != nil {
		t.Fatalf("read blocked by governance guard: %v", err)
	}
}
