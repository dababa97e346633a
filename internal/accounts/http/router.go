package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/aussiebroadwan/wellmeet/pkg/httpx"
	"github.com/aussiebroadwan/wellmeet/pkg/jwtx"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"

	_ "github.com/aussiebroadwan/wellmeet/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	UserService *service.UserService

	// TokenTTL is reported as expires_in on login.
	TokenTTL time.Duration
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		TokenTTL:     jwtx.DefaultTokenTTL,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Wellmeet Accounts API
//	@version		0.1.0
//	@description	User registration, login and user management for Wellmeet.
//	@description
//	@description				Access tokens are HS256-signed JWTs valid for four hours.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/wellmeet
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{UserService: r.UserService, TokenTTL: r.TokenTTL}

	// Credential endpoints: strict limits. Login is also keyed on the
	// username so one IP cannot spray a single account.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}
	admin := string(domain.RoleAdmin)

	authed := func(h http.HandlerFunc, limit httpx.RateLimitConfig, extra ...httpx.Middleware) http.Handler {
		mws := append([]httpx.Middleware{
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(limit),
		}, extra...)
		return httpx.Chain(h, mws...)
	}

	r.Mux.Handle("GET /v1/users/me", authed(h.HandleMe, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/users/{id}", authed(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/users/{id}", authed(h.HandleUpdate, httpx.ModerateLimit))

	// Admin only
	r.Mux.Handle("POST /v1/users", authed(h.HandleCreate, httpx.ModerateLimit, httpx.RequireRole(admin)))
	r.Mux.Handle("GET /v1/users", authed(h.HandleList, httpx.ModerateLimit, httpx.RequireRole(admin)))
	r.Mux.Handle("DELETE /v1/users/{id}", authed(h.HandleDelete, httpx.ModerateLimit, httpx.RequireRole(admin)))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
