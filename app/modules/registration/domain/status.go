package registrationdomain

import (
	"fmt"
	"strings"
)

// Status is the registration lifecycle state.
type Status string

const (
	StatusInitiated       Status = "INITIATED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusConfirmed       Status = "CONFIRMED"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
)

// PendingStatuses hold a provisional slot and a payment deadline.
var PendingStatuses = []Status{StatusInitiated, StatusAwaitingPayment}

// ActiveStatuses are covered by the one-registration-per-participant index.
var ActiveStatuses = []Status{StatusInitiated, StatusAwaitingPayment, StatusConfirmed}

func (s Status) IsValid() bool {
	switch s {
	case StatusInitiated, StatusAwaitingPayment, StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsPending reports whether s holds a provisional reservation.
func (s Status) IsPending() bool {
	return s == StatusInitiated || s == StatusAwaitingPayment
}

// IsActive reports whether s blocks another registration by the same
// participant.
func (s Status) IsActive() bool {
	return s.IsPending() || s == StatusConfirmed
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

func (s Status) String() string { return string(s) }

const (
	maxTeamNameLength = 64
	maxTeamMembers    = 8
)

// TeamInfo is what a participant submits when joining.
type TeamInfo struct {
	TeamName string
	Members  []string
}

// Normalize trims names and drops blank members.
func (t TeamInfo) Normalize() TeamInfo {
	out := TeamInfo{TeamName: strings.TrimSpace(t.TeamName)}
	for _, m := range t.Members {
		if m = strings.TrimSpace(m); m != "" {
			out.Members = append(out.Members, m)
		}
	}
	return out
}

// Validate checks a normalized TeamInfo.
func (t TeamInfo) Validate() error {
	if t.TeamName == "" {
		return fmt.Errorf("team_name is required")
	}
	if len(t.TeamName) > maxTeamNameLength {
		return fmt.Errorf("team_name must be at most %d characters", maxTeamNameLength)
	}
	if len(t.Members) > maxTeamMembers {
		return fmt.Errorf("at most %d team members are allowed", maxTeamMembers)
	}
	seen := make(map[string]struct{}, len(t.Members))
	for _, m := range t.Members {
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("team member %q is listed twice", m)
		}
		seen[key] = struct{}{}
	}
	return nil
}
