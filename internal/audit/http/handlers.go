package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/compasshq/compass/internal/audit"
	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

const maxDateRange = 90 * 24 * time.Hour

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error)
}

// Handler serves the decision audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	engine  *authz.Engine
	now     func() time.Time
}

// NewHandler builds a new audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, engine *authz.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, engine: engine, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.authorizedFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.authorizedFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := audit.WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit export csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="decision-audit.csv"`)
	_, _ = w.Write(data)
}

// authorizedFilters parses query filters and scopes them to what the caller
// may see. Tenant admins are pinned to their own tenant; superusers may look
// across tenants.
func (h *Handler) authorizedFilters(r *http.Request) (audit.TimelineFilters, error) {
	p := shared.PrincipalFromContext(r.Context())
	if p.Anonymous() {
		return audit.TimelineFilters{}, httpx.ErrUnauthorized
	}
	filters, err := parseFilters(r, h.now())
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if p.Superuser {
		return filters, nil
	}
	d, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionManageUsers,
		Resource:  authz.Resource{Scope: authz.TenantChain(p.TenantID)},
	})
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if err := shared.GuardError(d); err != nil {
		return audit.TimelineFilters{}, err
	}
	filters.TenantID = p.TenantID
	return filters, nil
}

func parseFilters(r *http.Request, now time.Time) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	var f audit.TimelineFilters
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		return f, httpx.ErrValidation
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		return f, httpx.ErrValidation
	}
	if f.From.IsZero() {
		f.From = now.Add(-7 * 24 * time.Hour)
	}
	if !f.To.IsZero() && f.To.Sub(f.From) > maxDateRange {
		return f, httpx.ErrValidation
	}
	f.Decision = q.Get("decision")
	f.Reason = q.Get("reason")
	if v := q.Get("principal_id"); v != "" {
		if f.PrincipalID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, httpx.ErrValidation
		}
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return f, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
