// Package events defines the domain event topics and their payloads.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TournamentStatusChanged = "tournament.status_changed"
	RegistrationConfirmed   = "registration.confirmed"
	RegistrationCancelled   = "registration.cancelled"
	RegistrationExpired     = "registration.expired"
	ResultVerified          = "result.verified"
	ResultRejected          = "result.rejected"
	PayoutApproved          = "payout.approved"
	PayoutCompleted         = "payout.completed"
	PayoutFailed            = "payout.failed"
	RefundCreated           = "refund.created"
	RefundCompleted         = "refund.completed"
	DisputeOpened           = "dispute.opened"
	DisputeClosed           = "dispute.closed"
)

// Subjects lists JetStream subject filters covering every topic.
func Subjects() []string {
	return []string{"tournament.>", "registration.>", "result.>", "payout.>", "refund.>", "dispute.>"}
}

type TournamentStatusChangedPayload struct {
	TournamentID uuid.UUID  `json:"tournament_id"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

type RegistrationConfirmedPayload struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	TournamentID   uuid.UUID `json:"tournament_id"`
	ParticipantID  uuid.UUID `json:"participant_id"`
	SlotNumber     int       `json:"slot_number"`
	AmountPaid     int64     `json:"amount_paid"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

type RegistrationClosedPayload struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	TournamentID   uuid.UUID `json:"tournament_id"`
	ParticipantID  uuid.UUID `json:"participant_id"`
	Status         string    `json:"status"`
	Refunded       bool      `json:"refunded"`
}

type ResultPayload struct {
	MatchResultID uuid.UUID   `json:"match_result_id"`
	MatchID       uuid.UUID   `json:"match_id"`
	TournamentID  uuid.UUID   `json:"tournament_id"`
	Status        string      `json:"status"`
	PayoutIDs     []uuid.UUID `json:"payout_ids,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

type PayoutPayload struct {
	PayoutID          uuid.UUID `json:"payout_id"`
	TournamentID      uuid.UUID `json:"tournament_id"`
	RecipientID       uuid.UUID `json:"recipient_id"`
	GrossAmount       int64     `json:"gross_amount"`
	NetAmount         int64     `json:"net_amount"`
	Status            string    `json:"status"`
	TransferReference string    `json:"transfer_reference,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
}

type RefundPayload struct {
	RefundID       uuid.UUID `json:"refund_id"`
	TournamentID   uuid.UUID `json:"tournament_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
}

type DisputePayload struct {
	DisputeID    uuid.UUID  `json:"dispute_id"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
}
