package directory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

// Handler exposes tenant hierarchy endpoints.
type Handler struct {
	service  *Service
	engine   *authz.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, engine *authz.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes mounts the directory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/tenants", h.createTenant)
	r.Route("/tenants/{tenantID}/workspaces", func(r chi.Router) {
		r.Get("/", h.listWorkspaces)
		r.Post("/", h.createWorkspace)
	})
	r.Route("/workspaces/{workspaceID}/teams", func(r chi.Router) {
		r.Get("/", h.listTeams)
		r.Post("/", h.createTeam)
	})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Slug string `json:"slug" validate:"omitempty,max=64"`
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	if p.Anonymous() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createTenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	// Tenant creation is the bootstrap path: no prior grant exists, the
	// creator becomes TENANT_OWNER of the new tenant.
	t, err := h.service.CreateTenant(r.Context(), p.ID, req.Name, req.Slug)
	if err != nil {
		h.logger.Error("create tenant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

type createWorkspaceRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

func (h *Handler) createWorkspace(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	d, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: authz.TenantChain(tenantID)},
	})
	if err != nil {
		h.logger.Error("authorize create workspace", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := shared.GuardError(d); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req createWorkspaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	ws, err := h.service.CreateWorkspace(r.Context(), tenantID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ws)
}

func (h *Handler) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	d, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionView,
		Resource: authz.Resource{
			Scope:      authz.TenantChain(tenantID),
			Visibility: authz.VisibilityPublicTenant,
		},
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.GuardError(d); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListWorkspaces(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	chain, err := h.service.workspaceChain(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	d, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: chain},
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.GuardError(d); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req createTeamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	tm, err := h.service.CreateTeam(r.Context(), workspaceID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tm)
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	chain, err := h.service.workspaceChain(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	d, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionView,
		Resource:  authz.Resource{Scope: chain, Visibility: authz.VisibilityPublicTenant},
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.GuardError(d); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListTeams(r.Context(), workspaceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
