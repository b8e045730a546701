package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/bartab-accounts/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits holds the token-bucket profile used for each class of endpoint.
type RateLimits struct {
	OTP      httpx.RateLimitConfig
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// DefaultRateLimits returns the profiles from pkg/httpx, env overrides included.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		OTP:      httpx.OTPLimit,
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	AuthService  *service.AuthService
	UserService  *service.UserService
	RolesService *service.RolesService

	Cookie     CookieConfig
	Limits     RateLimits
	CacheCheck CacheCheck // Optional: reported by /readyz when set

	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty means the
	// peer address is the client address.
	TrustedProxies httpx.TrustedProxies
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	// Resolve the client address before logging and rate limiting see it.
	r.middlewares = append([]httpx.Middleware{httpx.RealIPMiddleware(r.TrustedProxies)}, r.middlewares...)

	r.registerAuth()
	r.registerRoles()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			BarTab Accounts API
//	@version		0.1.0
//	@description	Account registration, device-aware login with emailed one-time codes, password reset and JWT sessions.
//	@description
//	@description				Access tokens are signed with EdDSA or ES256 and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/bartab-accounts
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

// handleAuth mounts h at the versioned path and at the legacy /auth alias.
func (r *Router) handleAuth(method, path string, h http.Handler) {
	r.Mux.Handle(method+" /v1/auth"+path, h)
	r.Mux.Handle(method+" /auth"+path, h)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		UserService: r.UserService,
		Verifier:    r.verifier,
		Cookie:      r.Cookie,
	}

	// Registration has its own per-IP window in the service; this only caps bursts.
	r.handleAuth("POST", "/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	// Login can mint an OTP, so it is limited per IP and per IP+email
	r.handleAuth("POST", "/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.Limits.Strict),
			httpx.RateLimitByIPAndJSONField(r.Limits.OTP, "email"),
		),
	)

	r.handleAuth("POST", "/verify-otp",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyOTP),
			httpx.RateLimitByIP(r.Limits.OTP),
		),
	)

	r.handleAuth("GET", "/verify-email/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.handleAuth("POST", "/forget-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)

	r.handleAuth("POST", "/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.handleAuth("POST", "/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	// Bearer endpoints
	r.handleAuth("POST", "/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.handleAuth("POST", "/resend-otp",
		httpx.Chain(http.HandlerFunc(h.HandleResendOTP),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.OTP),
		),
	)
	r.handleAuth("GET", "/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RolesService: r.RolesService}

	read := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Moderate),
		)
	}
	write := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(r.Limits.Moderate),
		)
	}

	r.Mux.Handle("GET /v1/roles", read(h.HandleList))
	r.Mux.Handle("GET /v1/roles/{id}", read(h.HandleGet))
	r.Mux.Handle("POST /v1/roles", write(h.HandleCreate))
	r.Mux.Handle("PUT /v1/roles/{id}", write(h.HandleRename))
	r.Mux.Handle("DELETE /v1/roles/{id}", write(h.HandleDelete))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.CacheCheck, r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
