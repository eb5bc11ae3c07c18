package registrationdb

import (
	"time"

	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Registration is one participant's claim on a tournament slot.
type Registration struct {
	bun.BaseModel `bun:"table:registrations,alias:r"`

	ID                 uuid.UUID                 `bun:"id,pk,type:uuid"`
	TournamentID       uuid.UUID                 `bun:"tournament_id,type:uuid,notnull"`
	ParticipantID      uuid.UUID                 `bun:"participant_id,type:uuid,notnull"`
	TeamName           string                    `bun:"team_name,notnull"`
	TeamMembers        []string                  `bun:"team_members,array"`
	SlotNumber         *int                      `bun:"slot_number"`
	AmountPaid         int64                     `bun:"amount_paid,notnull,default:0"`
	Status             registrationdomain.Status `bun:"status,notnull"`
	PaymentOrderID     *string                   `bun:"payment_order_id"`
	PaymentReference   *string                   `bun:"payment_reference"`
	PaymentDeadline    *time.Time                `bun:"payment_deadline"`
	CancellationReason *string                   `bun:"cancellation_reason"`
	ConfirmedAt        *time.Time                `bun:"confirmed_at"`
	CancelledAt        *time.Time                `bun:"cancelled_at"`
	ExpiredAt          *time.Time                `bun:"expired_at"`
	CreatedAt          time.Time                 `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time                 `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// PaymentCaptured reports whether money was taken for this registration.
func (r *Registration) PaymentCaptured() bool {
	return r.PaymentReference != nil && *r.PaymentReference != ""
}

// ConfirmParams describes a pending or expired registration becoming
// CONFIRMED.
type ConfirmParams struct {
	From             []registrationdomain.Status
	SlotNumber       int
	AmountPaid       int64
	PaymentReference string
	ConfirmedAt      time.Time
}

// RosterEntry is the public view of a registration.
type RosterEntry struct {
	TeamName   string                    `bun:"team_name"`
	SlotNumber *int                      `bun:"slot_number"`
	Status     registrationdomain.Status `bun:"status"`
}
