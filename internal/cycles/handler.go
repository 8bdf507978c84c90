package cycles

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

// Handler exposes cycle governance endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the cycle endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cycles", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/{cycleID}/transition", h.transition)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	out, err := h.service.List(r.Context(), p, p.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createCyclePayload struct {
	Name     string    `json:"name" validate:"required,min=2,max=120"`
	StartsOn time.Time `json:"startsOn" validate:"required"`
	EndsOn   time.Time `json:"endsOn" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var pl createCyclePayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	c, err := h.service.Create(r.Context(), p, p.TenantID, pl.Name, pl.StartsOn, pl.EndsOn)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

type transitionPayload struct {
	Status string `json:"status" validate:"required,oneof=DRAFT ACTIVE LOCKED ARCHIVED"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "cycleID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var pl transitionPayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	c, err := h.service.Transition(r.Context(), p, id, authz.CycleStatus(pl.Status))
	if err != nil {
		h.logger.Warn("cycle transition refused",
			slog.String("cycle", id.String()), slog.Any("error", err))
		if errors.Is(err, ErrBadTransition) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
