package rbac

import (
	"log/slog"
	"net/http"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/auth/login"

// Middleware gates routes by the role enum carried in the session.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth lets any signed-in operator through.
func (m Middleware) RequireAuth() func(http.Handler) http.Handler {
	return m.RequireRole()
}

// RequireRole ensures the current operator holds one of roles. With no roles any
// authenticated operator passes.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	allowed := make(map[shared.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromSession(shared.SessionFromContext(r.Context()))
			if !principal.Authenticated() {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					http.Redirect(w, r, LoginPath, http.StatusSeeOther)
					return
				}
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[principal.Role]; !ok {
					if m.Logger != nil {
						m.Logger.Warn("rbac denied",
							slog.Int64("user_id", principal.UserID),
							slog.String("role", string(principal.Role)),
							slog.String("path", r.URL.Path))
					}
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// Allowed reports whether role is one of roles; templates use it to hide actions.
func Allowed(role shared.Role, roles ...shared.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
