package authz

import (
	"log/slog"
	"net/http"

	"github.com/archivum-dms/archivum/internal/platform/httpx"
	"github.com/archivum-dms/archivum/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. The subject user
// comes from the request principal, placed there by the external
// authentication shim.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePermission denies the request unless the principal holds the named
// permission. Check failures deny: the safe failure direction is always
// "deny", never a silent grant.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			allowed, err := m.Service.HasPermission(r.Context(), principal.UserID, permission)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("permission check failed", slog.String("permission", permission), slog.Any("error", err))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			if !allowed {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope additionally demands the held scope be at least as permissive
// as the given one.
func (m Middleware) RequireScope(permission string, scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			allowed, err := m.Service.HasPermissionWithScope(r.Context(), principal.UserID, permission, string(scope))
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("scoped permission check failed", slog.String("permission", permission), slog.Any("error", err))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			if !allowed {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
