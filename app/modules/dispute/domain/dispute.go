package disputedomain

type Type string

const (
	TypeResultDispute      Type = "RESULT_DISPUTE"
	TypePaymentIssue       Type = "PAYMENT_ISSUE"
	TypeCheatingReport     Type = "CHEATING_REPORT"
	TypeOrganizerComplaint Type = "ORGANIZER_COMPLAINT"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeResultDispute, TypePaymentIssue, TypeCheatingReport, TypeOrganizerComplaint:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen        Status = "OPEN"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusResolved    Status = "RESOLVED"
	StatusDismissed   Status = "DISMISSED"
)

// BlockingStatuses halt verification and payouts for what the dispute
// references. Every dispute type blocks.
var BlockingStatuses = []Status{StatusOpen, StatusUnderReview}

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

func (s Status) IsBlocking() bool {
	return s == StatusOpen || s == StatusUnderReview
}

func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}
