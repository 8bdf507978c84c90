package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

// Handler exposes role assignment endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the role endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/role-assignments", func(r chi.Router) {
		r.Post("/", h.grant)
		r.Delete("/", h.revoke)
	})
	r.Get("/principals/{principalID}/role-assignments", h.listForPrincipal)
}

type assignmentRequest struct {
	PrincipalID int64  `json:"principal_id" validate:"required,gt=0"`
	Role        string `json:"role" validate:"required"`
	ScopeID     string `json:"scope_id" validate:"required,uuid4"`
}

func (r assignmentRequest) input() (GrantInput, error) {
	scopeID, err := uuid.Parse(r.ScopeID)
	if err != nil {
		return GrantInput{}, err
	}
	return GrantInput{
		PrincipalID: r.PrincipalID,
		Role:        authz.Role(r.Role),
		ScopeID:     scopeID,
	}, nil
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	if err := h.service.Grant(r.Context(), actor, in); err != nil {
		h.respondErr(w, "grant role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	if err := h.service.Revoke(r.Context(), actor, in); err != nil {
		h.respondErr(w, "revoke role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listForPrincipal(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil || principalID <= 0 {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	assignments, err := h.service.ListForPrincipal(r.Context(), actor, principalID)
	if err != nil {
		h.respondErr(w, "list role assignments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (GrantInput, bool) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return GrantInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return GrantInput{}, false
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return GrantInput{}, false
	}
	return in, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrUnknownRole) {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if !httpx.Known(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
