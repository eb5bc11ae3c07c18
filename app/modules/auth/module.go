package auth

import (
	"log/slog"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	authhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/infrastructure/handlers"
	authjwt "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/infrastructure/jwt"
	"github.com/Black-And-White-Club/tourney-settlement/config"
	"golang.org/x/time/rate"
)

// Module bundles the bearer-token validation and request guards every
// other module mounts on its routes.
type Module struct {
	provider      authjwt.Provider
	authenticator *authhandlers.Authenticator
	limiter       *authhandlers.IPRateLimiter
	origins       []string
	logger        *slog.Logger
}

// NewModule creates the auth module from configuration.
func NewModule(cfg *config.Config, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	provider := authjwt.NewProvider(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	return &Module{
		provider:      provider,
		authenticator: authhandlers.NewAuthenticator(provider, logger),
		limiter:       authhandlers.NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst),
		origins:       cfg.HTTP.AllowedOrigins,
		logger:        logger,
	}
}

// Provider returns the token provider.
func (m *Module) Provider() authjwt.Provider { return m.provider }

// Authenticate requires a valid bearer token.
func (m *Module) Authenticate(next http.Handler) http.Handler {
	return m.authenticator.Middleware(next)
}

// Require restricts a route group to roles.
func (m *Module) Require(roles ...authdomain.Role) func(http.Handler) http.Handler {
	return authhandlers.RequireRole(m.logger, roles...)
}

// RateLimit throttles money-moving routes per client IP.
func (m *Module) RateLimit(next http.Handler) http.Handler {
	return authhandlers.RateLimitMiddleware(m.limiter)(next)
}

// CORS applies the configured origin policy.
func (m *Module) CORS(next http.Handler) http.Handler {
	return authhandlers.CORSMiddleware(m.origins)(next)
}
