package authdomain

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   uuid.UUID
	Role Role
	Name string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// HasRole reports whether p holds any of roles. Admins hold every role.
func (p Principal) HasRole(roles ...Role) bool {
	if p.IsAdmin() {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Owns reports whether p is the given user or an admin acting for them.
func (p Principal) Owns(userID uuid.UUID) bool {
	return p.IsAdmin() || p.ID == userID
}

// System is the principal used by background jobs and trusted webhooks.
var System = Principal{ID: uuid.Nil, Role: RoleAdmin, Name: "system"}

// ActorID returns the id recorded in audit rows, nil for System.
func (p Principal) ActorID() *uuid.UUID {
	if p.ID == uuid.Nil {
		return nil
	}
	id := p.ID
	return &id
}

// Claims represents the domain model for authentication claims.
type Claims struct {
	Principal
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IsExpired checks if the claims have expired.
func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
