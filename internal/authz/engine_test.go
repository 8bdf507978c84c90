package authz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	tenantA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tenantB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	wsA1    = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	wsA2    = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	teamA1  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

type recordedEvent struct {
	ev DecisionEvent
}

type stubRecorder struct {
	events []recordedEvent
}

func (s *stubRecorder) RecordDecision(ctx context.Context, ev DecisionEvent) {
	s.events = append(s.events, recordedEvent{ev: ev})
}

func newEngine(t *testing.T, grants ...Assignment) (*Engine, *stubRecorder) {
	t.Helper()
	store := NewMemoryStore()
	for _, g := range grants {
		if err := store.Assign(context.Background(), g); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	rec := &stubRecorder{}
	return NewEngine(EngineConfig{
		Store:    store,
		Limiter:  NewMutationLimiter(100, time.Minute),
		Recorder: rec,
	}), rec
}

func grantAt(principal int64, role Role, scopeID, tenantID uuid.UUID) Assignment {
	return Assignment{
		PrincipalID: principal,
		Role:        role,
		ScopeType:   role.ScopeType(),
		ScopeID:     scopeID,
		TenantID:    tenantID,
	}
}

func publicObjective(tenant uuid.UUID) Resource {
	return Resource{
		ID:         uuid.New(),
		OwnerID:    42,
		Scope:      ScopeChain{TenantID: tenant},
		Visibility: VisibilityPublicTenant,
	}
}

func authorize(t *testing.T, e *Engine, p Principal, action Action, res Resource) Decision {
	t.Helper()
	d, err := e.Authorize(context.Background(), Request{Principal: p, Action: action, Resource: res})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return d
}

func TestNoAssignmentInTenantDeniesEverything(t *testing.T) {
	e, _ := newEngine(t, grantAt(7, RoleTenantOwner, tenantB, tenantB))
	p := Principal{ID: 7, TenantID: tenantA}
	res := publicObjective(tenantA)

	for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionPublish, ActionContribute, ActionManageUsers} {
		d := authorize(t, e, p, action, res)
		if d.Allow {
			t.Fatalf("action %s: expected deny for tenant outsider", action)
		}
	}
}

func TestTenantViewerViewsButCannotEdit(t *testing.T) {
	e, _ := newEngine(t, grantAt(1, RoleTenantViewer, tenantA, tenantA))
	p := Principal{ID: 1, TenantID: tenantA}
	res := publicObjective(tenantA)

	if d := authorize(t, e, p, ActionView, res); !d.Allow {
		t.Fatalf("viewer should view public resource, denied with %s", d.Reason)
	}
	if d := authorize(t, e, p, ActionEdit, res); d.Allow || d.Reason != ReasonNoPermission {
		t.Fatalf("viewer edit: want deny/no_permission, got allow=%v reason=%s", d.Allow, d.Reason)
	}
}

func TestWorkspaceLeadEditsTeamResourceWithoutTeamGrant(t *testing.T) {
	e, _ := newEngine(t, grantAt(2, RoleWorkspaceLead, wsA1, tenantA))
	p := Principal{ID: 2, TenantID: tenantA}
	res := Resource{
		ID:         uuid.New(),
		Scope:      ScopeChain{TenantID: tenantA, WorkspaceID: wsA1, TeamID: teamA1},
		Visibility: VisibilityPublicTenant,
	}
	if d := authorize(t, e, p, ActionEdit, res); !d.Allow {
		t.Fatalf("workspace lead should edit team resource inside its workspace, got %s", d.Reason)
	}
}

func TestWorkspaceRoleNeverAppliesToSiblingWorkspace(t *testing.T) {
	e, _ := newEngine(t, grantAt(3, RoleWorkspaceLead, wsA1, tenantA))
	p := Principal{ID: 3, TenantID: tenantA}
	res := Resource{
		ID:         uuid.New(),
		Scope:      ScopeChain{TenantID: tenantA, WorkspaceID: wsA2},
		Visibility: VisibilityPublicTenant,
	}
	if d := authorize(t, e, p, ActionEdit, res); d.Allow {
		t.Fatal("workspace lead must not edit a sibling workspace's resource")
	}
	// Tenant membership still grants the base view on public records.
	if d := authorize(t, e, p, ActionView, res); !d.Allow {
		t.Fatalf("tenant member should still view public record, got %s", d.Reason)
	}
}

func TestTenantAdminImplicationOverridesMissingNarrowGrant(t *testing.T) {
	e, _ := newEngine(t, grantAt(4, RoleTenantAdmin, tenantA, tenantA))
	p := Principal{ID: 4, TenantID: tenantA}
	res := Resource{
		ID:    uuid.New(),
		Scope: ScopeChain{TenantID: tenantA, WorkspaceID: wsA1, TeamID: teamA1},
	}
	res.Visibility = VisibilityPublicTenant
	for _, action := range []Action{ActionCreate, ActionEdit, ActionDelete, ActionPublish} {
		if d := authorize(t, e, p, action, res); !d.Allow {
			t.Fatalf("tenant admin %s inside own tenant: got deny %s", action, d.Reason)
		}
	}
}

func TestSuperuserIsReadOnlyAuditor(t *testing.T) {
	e, rec := newEngine(t)
	p := Principal{ID: 5, TenantID: tenantB, Superuser: true}
	res := publicObjective(tenantA)

	d := authorize(t, e, p, ActionView, res)
	if !d.Allow || d.Bypass != BypassSuperuserRead {
		t.Fatalf("superuser view: want allow with superuser_read bypass, got %+v", d)
	}
	if d := authorize(t, e, p, ActionEdit, res); d.Allow {
		t.Fatal("superuser must not mutate")
	}
	if d := authorize(t, e, p, ActionManagePlatformUsers, Resource{Scope: ScopeChain{TenantID: tenantB}}); !d.Allow {
		t.Fatalf("superuser platform user management: got deny %s", d.Reason)
	}

	var sawBypass bool
	for _, ev := range rec.events {
		if ev.ev.Decision == "allow" && ev.ev.Reason == BypassSuperuserRead {
			sawBypass = true
		}
	}
	if !sawBypass {
		t.Fatal("superuser read bypass not audited")
	}
}

func TestTenantMismatchIsForbiddenBeforeAnyOtherRule(t *testing.T) {
	// The grant would allow the edit if isolation did not run first.
	e, rec := newEngine(t, grantAt(6, RoleTenantOwner, tenantB, tenantB))
	p := Principal{ID: 6, TenantID: tenantA}
	res := publicObjective(tenantB)

	d := authorize(t, e, p, ActionEdit, res)
	if d.Allow || d.Reason != ReasonTenantMismatch {
		t.Fatalf("cross-tenant edit: want tenant_mismatch, got allow=%v reason=%s", d.Allow, d.Reason)
	}
	if len(rec.events) == 0 || rec.events[len(rec.events)-1].ev.Reason != string(ReasonTenantMismatch) {
		t.Fatal("tenant mismatch denial not audited")
	}
}

func TestAnonymousPrincipalIsUnauthenticated(t *testing.T) {
	e, _ := newEngine(t)
	d := authorize(t, e, Principal{}, ActionView, publicObjective(tenantA))
	if d.Allow || d.Reason != ReasonUnauthenticated {
		t.Fatalf("want unauthenticated, got allow=%v reason=%s", d.Allow, d.Reason)
	}
}

func TestLockedCycleBlocksMutationUnlessBypass(t *testing.T) {
	member := grantAt(8, RoleWorkspaceLead, wsA1, tenantA)
	admin := grantAt(9, RoleTenantAdmin, tenantA, tenantA)
	e, rec := newEngine(t, member, admin)

	res := Resource{
		ID:         uuid.New(),
		Scope:      ScopeChain{TenantID: tenantA, WorkspaceID: wsA1},
		Visibility: VisibilityPublicTenant,
		CycleID:    uuid.New(),
	}

	run := func(p Principal, cycle CycleStatus) Decision {
		d, err := e.Authorize(context.Background(), Request{Principal: p, Action: ActionEdit, Resource: res, Cycle: cycle})
		if err != nil {
			t.Fatalf("authorize: %v", err)
		}
		return d
	}

	lead := Principal{ID: 8, TenantID: tenantA}
	if d := run(lead, CycleLocked); d.Allow || d.Reason != ReasonCycleLocked {
		t.Fatalf("locked cycle edit by lead: want cycle_locked, got %+v", d)
	}
	if d := run(lead, CycleActive); !d.Allow {
		t.Fatalf("active cycle edit by lead: got deny %s", d.Reason)
	}

	adm := Principal{ID: 9, TenantID: tenantA}
	d := run(adm, CycleLocked)
	if !d.Allow || d.Bypass != BypassCycleLock {
		t.Fatalf("locked cycle edit by admin: want allow with bypass, got %+v", d)
	}
	var audited bool
	for _, ev := range rec.events {
		if ev.ev.PrincipalID == 9 && ev.ev.Reason == BypassCycleLock {
			audited = true
		}
	}
	if !audited {
		t.Fatal("governance bypass not audited")
	}

	// Reads are never blocked by the governance guard.
	rd, err := e.Authorize(context.Background(), Request{Principal: lead, Action: ActionView, Resource: res, Cycle: CycleLocked})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !rd.Allow {
		t.Fatalf("locked cycle view: got deny %s", rd.Reason)
	}
}

func TestRateLimitedIsDistinctFromForbidden(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Assign(context.Background(), grantAt(10, RoleTenantOwner, tenantA, tenantA))
	e := NewEngine(EngineConfig{Store: store, Limiter: NewMutationLimiter(2, time.Minute)})

	res := publicObjective(tenantA)
	p := Principal{ID: 10, TenantID: tenantA}
	req := Request{Principal: p, Action: ActionCreate, Resource: res, RateLimited: true}

	for i := 0; i < 2; i++ {
		d, err := e.Authorize(context.Background(), req)
		if err != nil || !d.Allow {
			t.Fatalf("request %d: allow=%v err=%v", i, d.Allow, err)
		}
	}
	d, err := e.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allow || d.Reason != ReasonRateLimited {
		t.Fatalf("third request: want rate_limited, got allow=%v reason=%s", d.Allow, d.Reason)
	}
}

func TestPrivateRecordReadOutcomes(t *testing.T) {
	owner := int64(20)
	listed := int64(21)
	outsider := int64(22)
	admin := int64(23)

	e, _ := newEngine(t,
		grantAt(owner, RoleWorkspaceMember, wsA1, tenantA),
		grantAt(listed, RoleWorkspaceMember, wsA1, tenantA),
		grantAt(outsider, RoleWorkspaceMember, wsA1, tenantA),
		grantAt(admin, RoleTenantAdmin, tenantA, tenantA),
	)
	res := Resource{
		ID:         uuid.New(),
		OwnerID:    owner,
		Scope:      ScopeChain{TenantID: tenantA, WorkspaceID: wsA1},
		Visibility: VisibilityPrivate,
		Whitelist:  []int64{listed},
	}

	cases := []struct {
		name      string
		principal int64
		allow     bool
	}{
		{"owner", owner, true},
		{"whitelisted", listed, true},
		{"tenant admin", admin, true},
		{"plain member", outsider, false},
	}
	for _, tc := range cases {
		d := authorize(t, e, Principal{ID: tc.principal, TenantID: tenantA}, ActionView, res)
		if d.Allow != tc.allow {
			t.Fatalf("%s: want allow=%v, got %+v", tc.name, tc.allow, d)
		}
		if !tc.allow && d.Reason != ReasonNotVisible {
			t.Fatalf("%s: invisible record must deny with not_visible, got %s", tc.name, d.Reason)
		}
	}
}

func TestFilterVisibleDropsInvisibleAndForeignRecords(t *testing.T) {
	owner := int64(30)
	other := int64(31)
	e, _ := newEngine(t,
		grantAt(owner, RoleWorkspaceMember, wsA1, tenantA),
		grantAt(other, RoleWorkspaceMember, wsA1, tenantA),
	)

	private := Resource{ID: uuid.New(), OwnerID: owner, Scope: ScopeChain{TenantID: tenantA, WorkspaceID: wsA1}, Visibility: VisibilityPrivate}
	public := publicObjective(tenantA)
	foreign := publicObjective(tenantB)

	visible, err := e.FilterVisible(context.Background(), Principal{ID: other, TenantID: tenantA}, []Resource{private, public, foreign}, nil)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != public.ID {
		t.Fatalf("want only the public in-tenant record, got %d records", len(visible))
	}

	mine, err := e.FilterVisible(context.Background(), Principal{ID: owner, TenantID: tenantA}, []Resource{private, public}, nil)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("owner should see both records, got %d", len(mine))
	}
}

func TestChildInheritsParentVisibility(t *testing.T) {
	owner := int64(40)
	outsider := int64(41)
	e, _ := newEngine(t,
		grantAt(owner, RoleWorkspaceMember, wsA1, tenantA),
		grantAt(outsider, RoleWorkspaceMember, wsA1, tenantA),
	)

	parent := Resource{
		ID:         uuid.New(),
		OwnerID:    owner,
		Scope:      ScopeChain{TenantID: tenantA, WorkspaceID: wsA1},
		Visibility: VisibilityPrivate,
	}
	child := Resource{
		ID:       uuid.New(),
		OwnerID:  outsider, // owning the key result does not reveal a private parent
		Scope:    parent.Scope,
		ParentID: parent.ID,
	}
	lookup := func(id uuid.UUID) (Resource, bool) {
		if id == parent.ID {
			return parent, true
		}
		return Resource{}, false
	}

	d, err := e.Authorize(context.Background(), Request{
		Principal: Principal{ID: outsider, TenantID: tenantA},
		Action:    ActionView,
		Resource:  child,
		Parent:    lookup,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allow {
		t.Fatal("child of invisible parent must be invisible")
	}

	d, err = e.Authorize(context.Background(), Request{
		Principal: Principal{ID: owner, TenantID: tenantA},
		Action:    ActionView,
		Resource:  child,
		Parent:    lookup,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allow {
		t.Fatalf("parent owner should see the child, got %s", d.Reason)
	}
}
