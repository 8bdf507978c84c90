package okr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/shared"
)

func newTestRouter(t *testing.T, grants ...authz.Assignment) (chi.Router, *stubRepo) {
	t.Helper()
	svc, repo, _ := newTestService(t, 100, grants...)
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	h.Routes(r)
	return r, repo
}

func doJSON(r chi.Router, p authz.Principal, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if !p.Anonymous() {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type listResponse struct {
	Objectives []struct {
		ID    uuid.UUID `json:"id"`
		Title string    `json:"title"`
	} `json:"objectives"`
	Paging shared.Pagination `json:"paging"`
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var out listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list body: %v", err)
	}
	return out
}

func TestGetHidesPrivateRecordAsMissing(t *testing.T) {
	owner := int64(1)
	outsider := int64(2)
	router, repo := newTestRouter(t, memberGrant(owner), viewerGrant(outsider))
	private := seedObjective(repo, owner, "Confidential pivot", authz.VisibilityPrivate)

	p := authz.Principal{ID: outsider, TenantID: testTenant}
	hidden := doJSON(router, p, http.MethodGet, "/objectives/"+private.ID.String())
	missing := doJSON(router, p, http.MethodGet, "/objectives/"+uuid.NewString())

	// A private record the caller cannot see and an id that does not exist
	// must be indistinguishable at the wire.
	if hidden.Code != http.StatusNotFound {
		t.Fatalf("invisible record: want 404, got %d: %s", hidden.Code, hidden.Body.String())
	}
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing record: want 404, got %d: %s", missing.Code, missing.Body.String())
	}
	if hidden.Body.String() != missing.Body.String() {
		t.Fatalf("response bodies diverge: %q vs %q", hidden.Body.String(), missing.Body.String())
	}
}

func TestListSuperuserPicksTenantByParam(t *testing.T) {
	owner := int64(1)
	router, repo := newTestRouter(t, memberGrant(owner))
	seedObjective(repo, owner, "North star", authz.VisibilityPublicTenant)
	seedObjective(repo, owner, "Quiet bet", authz.VisibilityPrivate)

	su := authz.Principal{ID: 99, Superuser: true}

	rr := doJSON(router, su, http.MethodGet, "/objectives?tenantId="+testTenant.String())
	if rr.Code != http.StatusOK {
		t.Fatalf("superuser list: want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	// Superuser reads see private records too.
	if got := decodeList(t, rr).Paging.Total; got != 2 {
		t.Fatalf("superuser must see the named tenant's records, total=%d", got)
	}

	// Without a tenant the superuser has nothing to list.
	rr = doJSON(router, su, http.MethodGet, "/objectives")
	if rr.Code != http.StatusOK {
		t.Fatalf("superuser list without tenant: want 200, got %d", rr.Code)
	}
	if got := decodeList(t, rr).Paging.Total; got != 0 {
		t.Fatalf("expected empty listing without a tenant, total=%d", got)
	}

	rr = doJSON(router, su, http.MethodGet, "/objectives?tenantId=not-a-uuid")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed tenantId: want 400, got %d", rr.Code)
	}
}

func TestListMemberStaysTenantPinned(t *testing.T) {
	owner := int64(1)
	router, repo := newTestRouter(t, memberGrant(owner))
	seedObjective(repo, owner, "North star", authz.VisibilityPublicTenant)

	other := uuid.New()
	p := authz.Principal{ID: owner, TenantID: testTenant}
	rr := doJSON(router, p, http.MethodGet, "/objectives?tenantId="+other.String())
	if rr.Code != http.StatusOK {
		t.Fatalf("member list: want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	// The parameter is superuser-only; members keep their session tenant.
	if got := decodeList(t, rr).Paging.Total; got != 1 {
		t.Fatalf("member listing must stay pinned to their tenant, total=%d", got)
	}
}
