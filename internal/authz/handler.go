package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/archivum-dms/archivum/internal/platform/httpx"
)

const rateLimit = 60
const rateWindow = time.Minute

// Handler wires the authorization HTTP surface: permission checks and
// effective-set enumeration for diagnostics, and the invalidation seam the
// external role-administration write path calls after every assignment
// mutation.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	adminTokenHash string
	validator      *validator.Validate
}

// NewHandler constructs a Handler. adminTokenHash is the bcrypt hash the
// bearer token on every request is verified against.
func NewHandler(logger *slog.Logger, service *Service, adminTokenHash string) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		adminTokenHash: adminTokenHash,
		validator:      validator.New(),
	}
}

// MountRoutes registers the authz routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Use(h.requireAdminToken)
		gr.Get("/authz/check", h.handleCheck)
		gr.Get("/authz/permissions", h.handlePermissions)
		gr.Post("/authz/invalidate", h.handleInvalidate)
	})
}

// requireAdminToken verifies the bearer token against the configured bcrypt
// hash. With no hash configured every request is rejected.
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.adminTokenHash == "" || token == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.adminTokenHash), []byte(token)); err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type checkQuery struct {
	User       string `validate:"required,uuid"`
	Permission string `validate:"required"`
	Scope      string `validate:"omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	q := checkQuery{
		User:       r.URL.Query().Get("user"),
		Permission: r.URL.Query().Get("permission"),
		Scope:      r.URL.Query().Get("scope"),
	}
	if err := h.validator.Struct(q); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user and permission are required; user must be a UUID", httpx.ErrValidation))
		return
	}
	userID, err := uuid.Parse(q.User)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user must be a UUID", httpx.ErrValidation))
		return
	}
	decision, err := h.service.Check(r.Context(), userID, q.Permission, q.Scope)
	if err != nil {
		h.respondCheckError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	rawUser := r.URL.Query().Get("user")
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user must be a UUID", httpx.ErrValidation))
		return
	}
	contextLabel := r.URL.Query().Get("context")
	perms, err := h.service.GetEffectivePermissions(r.Context(), userID, contextLabel)
	if err != nil {
		h.respondCheckError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"context":     orDefault(contextLabel),
		"permissions": perms,
	})
}

type invalidateRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: body must be JSON", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user_id must be a UUID", httpx.ErrValidation))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user_id must be a UUID", httpx.ErrValidation))
		return
	}
	if err := h.service.InvalidateUserCache(r.Context(), userID); err != nil {
		h.logger.Error("invalidate user cache", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "invalidated", "user_id": userID.String()})
}

func (h *Handler) respondCheckError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownScope), errors.Is(err, ErrInvalidArgument):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ErrStoreUnavailable):
		h.logger.Error("authorization store unavailable", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		h.logger.Error("permission check", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func orDefault(contextLabel string) string {
	if contextLabel == "" {
		return ContextDefault
	}
	return contextLabel
}
