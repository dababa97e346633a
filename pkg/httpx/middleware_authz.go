package httpx

import (
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				WriteForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteForbidden writes the RFC 6750 insufficient_scope response.
func WriteForbidden(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
	WriteError(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action.")
}
