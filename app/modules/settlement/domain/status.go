package settlementdomain

// MatchStatus is the lifecycle of a scheduled match.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	MatchStatusLive      MatchStatus = "LIVE"
	MatchStatusCompleted MatchStatus = "COMPLETED"
)

// ResultStatus is the lifecycle of a submitted match result.
type ResultStatus string

const (
	ResultStatusSubmitted ResultStatus = "SUBMITTED"
	ResultStatusVerified  ResultStatus = "VERIFIED"
	ResultStatusRejected  ResultStatus = "REJECTED"
)

// IsEditable reports whether the organizer may overwrite the result.
func (s ResultStatus) IsEditable() bool {
	return s == ResultStatusSubmitted || s == ResultStatusRejected
}

// PayoutStatus is the lifecycle of a single prize transfer.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusApproved   PayoutStatus = "APPROVED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

// ClaimableStatuses may be picked up by a payout worker.
var ClaimableStatuses = []PayoutStatus{PayoutStatusApproved, PayoutStatusFailed}

// IsValid reports whether s is a known payout status.
func (s PayoutStatus) IsValid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed:
		return true
	}
	return false
}
