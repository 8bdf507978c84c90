package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/platform/httpx"
	"github.com/compasshq/compass/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	engine         *authz.Engine
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, engine *authz.Engine) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		engine:         engine,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Post("/users", h.handleCreateUser)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	TenantID  string `json:"tenant_id,omitempty"`
	Superuser bool   `json:"superuser,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	tenant := ""
	if !user.Superuser {
		tenant = user.TenantID.String()
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10), tenant)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Email:     user.Email,
		TenantID:  tenant,
		Superuser: user.Superuser,
	})
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	TenantID string `json:"tenant_id" validate:"required,uuid4"`
}

// handleCreateUser provisions an account in a tenant. Platform operators
// only; the check runs at the operator's own scope, not the target tenant's.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	decision, err := h.engine.Authorize(r.Context(), authz.Request{
		Principal: p,
		Action:    authz.ActionManagePlatformUsers,
		Resource:  authz.Resource{Scope: authz.TenantChain(p.TenantID)},
	})
	if err != nil {
		h.logger.Error("authorize create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if guardErr := shared.GuardError(decision); guardErr != nil {
		httpx.RespondError(w, guardErr)
		return
	}

	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Email:    user.Email,
		TenantID: user.TenantID.String(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	if p.Anonymous() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.UserByID(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant := ""
	if !user.Superuser {
		tenant = user.TenantID.String()
	}
	httpx.JSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Email:     user.Email,
		TenantID:  tenant,
		Superuser: user.Superuser,
	})
}
