package tournamentdomain

// Status is the tournament lifecycle state.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusPendingApproval    Status = "PENDING_APPROVAL"
	StatusApproved           Status = "APPROVED"
	StatusRegistrationOpen   Status = "REGISTRATION_OPEN"
	StatusRegistrationClosed Status = "REGISTRATION_CLOSED"
	StatusLive               Status = "LIVE"
	StatusCompleted          Status = "COMPLETED"
	StatusCancelled          Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:              {StatusPendingApproval, StatusCancelled},
	StatusPendingApproval:    {StatusApproved, StatusDraft, StatusCancelled},
	StatusApproved:           {StatusRegistrationOpen, StatusCancelled},
	StatusRegistrationOpen:   {StatusRegistrationClosed, StatusCancelled},
	StatusRegistrationClosed: {StatusLive, StatusCancelled},
	StatusLive:               {StatusCompleted, StatusCancelled},
}

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRegistrationOpen,
		StatusRegistrationClosed, StatusLive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is a legal lifecycle edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsEscrowTopUp reports whether the organizer may still fund escrow.
func (s Status) AcceptsEscrowTopUp() bool {
	return !s.IsTerminal()
}

// AllowsMatches reports whether matches and results may be recorded.
func (s Status) AllowsMatches() bool {
	return s == StatusRegistrationClosed || s == StatusLive || s == StatusCompleted
}

func (s Status) String() string { return string(s) }
