package okr

import (
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

// Handler exposes the OKR endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the OKR endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/objectives", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/composite", h.createComposite)
		r.Route("/{objectiveID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Delete("/", h.delete)
			r.Post("/publish", h.publish)
			r.Get("/key-results", h.listKeyResults)
			r.Get("/initiatives", h.listInitiatives)
		})
	})
	r.Post("/key-results/{keyResultID}/check-ins", h.checkIn)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	tenantID := p.TenantID
	q := r.URL.Query()

	// Superusers carry no tenant of their own, so they name the tenant to
	// inspect. Everyone else stays pinned to the session tenant.
	if v := q.Get("tenantId"); v != "" && p.Superuser {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		tenantID = id
	}

	var filter ListFilter
	if v := q.Get("workspaceId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.WorkspaceID = id
	}
	if v := q.Get("teamId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.TeamID = id
	}
	if v := q.Get("cycleId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.CycleID = id
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))

	result, err := h.service.ListObjectives(r.Context(), p, tenantID, filter, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"objectives": objectivesJSON(result.Objectives),
		"paging":     result.Paging,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	o, err := h.service.GetObjective(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, objectiveJSON(o))
}

type objectivePayload struct {
	WorkspaceID string  `json:"workspaceId" validate:"omitempty,uuid4"`
	TeamID      string  `json:"teamId" validate:"omitempty,uuid4"`
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"max=4000"`
	Visibility  string  `json:"visibility" validate:"omitempty,oneof=PUBLIC_TENANT PRIVATE"`
	Whitelist   []int64 `json:"whitelist" validate:"omitempty,max=100"`
	CycleID     string  `json:"cycleId" validate:"omitempty,uuid4"`
}

func (pl objectivePayload) input(tenantID uuid.UUID) (CreateObjectiveInput, error) {
	in := CreateObjectiveInput{
		TenantID:    tenantID,
		Title:       pl.Title,
		Description: pl.Description,
		Visibility:  authz.Visibility(pl.Visibility),
		Whitelist:   pl.Whitelist,
	}
	var err error
	if pl.WorkspaceID != "" {
		if in.WorkspaceID, err = uuid.Parse(pl.WorkspaceID); err != nil {
			return in, err
		}
	}
	if pl.TeamID != "" {
		if in.TeamID, err = uuid.Parse(pl.TeamID); err != nil {
			return in, err
		}
	}
	if pl.CycleID != "" {
		if in.CycleID, err = uuid.Parse(pl.CycleID); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	var pl objectivePayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	in, err := pl.input(p.TenantID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	o, err := h.service.CreateObjective(r.Context(), p, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, objectiveJSON(o))
}

type compositePayload struct {
	objectivePayload
	KeyResults []keyResultPayload `json:"keyResults" validate:"required,min=1,max=10,dive"`
}

type keyResultPayload struct {
	Title  string  `json:"title" validate:"required,min=3,max=200"`
	Target float64 `json:"target" validate:"required"`
	Unit   string  `json:"unit" validate:"max=32"`
}

func (h *Handler) createComposite(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	var pl compositePayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	in, err := pl.input(p.TenantID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	krs := make([]KeyResultInput, 0, len(pl.KeyResults))
	for _, k := range pl.KeyResults {
		krs = append(krs, KeyResultInput{Title: k.Title, Target: k.Target, Unit: k.Unit})
	}
	o, err := h.service.CreateComposite(r.Context(), p, in, krs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, objectiveJSON(o))
}

type updatePayload struct {
	Title       string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description string  `json:"description" validate:"max=4000"`
	Status      string  `json:"status" validate:"omitempty,oneof=ON_TRACK AT_RISK OFF_TRACK COMPLETED"`
	Visibility  string  `json:"visibility" validate:"omitempty,oneof=PUBLIC_TENANT PRIVATE"`
	Whitelist   []int64 `json:"whitelist" validate:"omitempty,max=100"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var pl updatePayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	o, err := h.service.UpdateObjective(r.Context(), p, id, UpdateObjectiveInput{
		Title:       pl.Title,
		Description: pl.Description,
		Status:      Status(pl.Status),
		Visibility:  authz.Visibility(pl.Visibility),
		Whitelist:   pl.Whitelist,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, objectiveJSON(o))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteObjective(r.Context(), p, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	o, err := h.service.PublishObjective(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, objectiveJSON(o))
}

func (h *Handler) listKeyResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	krs, err := h.service.ListKeyResults(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, krs)
}

func (h *Handler) listInitiatives(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "objectiveID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	ins, err := h.service.ListInitiatives(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ins)
}

type checkInPayload struct {
	Value float64 `json:"value" validate:"required"`
	Note  string  `json:"note" validate:"max=2000"`
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "keyResultID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var pl checkInPayload
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(pl); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	c, err := h.service.CheckIn(r.Context(), p, id, pl.Value, pl.Note)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// objectiveJSON shapes the API representation. The whitelist is only echoed
// to principals who can already see the record, so it is safe to include.
func objectiveJSON(o Objective) map[string]any {
	return map[string]any{
		"id":           o.ID,
		"tenantId":     o.TenantID,
		"workspaceId":  nilIfZero(o.WorkspaceID),
		"teamId":       nilIfZero(o.TeamID),
		"ownerId":      o.OwnerID,
		"title":        o.Title,
		"description":  o.Description,
		"status":       o.Status,
		"publishState": o.PublishState,
		"visibility":   o.Visibility,
		"whitelist":    o.Whitelist,
		"cycleId":      nilIfZero(o.CycleID),
		"createdAt":    o.CreatedAt,
		"updatedAt":    o.UpdatedAt,
	}
}

func objectivesJSON(objectives []Objective) []map[string]any {
	out := make([]map[string]any, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, objectiveJSON(o))
	}
	return out
}

func nilIfZero(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
