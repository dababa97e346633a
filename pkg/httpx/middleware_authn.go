package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/wellmeet/pkg/jwtx"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer token. Every failure produces the
// same 401 body; the concrete reason is only logged.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				log.Warn("authn rejected", "reason", "missing bearer token")
				WriteUnauthorized(w)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("authn rejected", "reason", err.Error())
				WriteUnauthorized(w)
				return
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = slogx.WithContext(ctx, log.With("user_id", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteUnauthorized writes the RFC 6750 invalid_token response.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing bearer token.")
}
