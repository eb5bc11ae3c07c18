package authjwt

import (
	"time"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
)

// Provider defines the interface for JWT token operations.
type Provider interface {
	// GenerateToken signs claims for p. Production tokens come from the
	// identity issuer; this exists for tooling and tests.
	GenerateToken(p authdomain.Principal, ttl time.Duration) (string, error)

	// ValidateToken validates a JWT token and returns the claims if valid.
	ValidateToken(tokenString string) (*authdomain.Claims, error)
}
