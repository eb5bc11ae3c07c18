package ledgerdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntryKind classifies an escrow movement.
type EntryKind string

const (
	EntryKindEntryFee EntryKind = "ENTRY_FEE"
	EntryKindTopUp    EntryKind = "TOPUP"
	EntryKindPayout   EntryKind = "PAYOUT"
	EntryKindRefund   EntryKind = "REFUND"
)

// EscrowEntry is one append-only movement of tournament funds. Credits are
// positive, debits negative. (kind, reference_id) is unique.
type EscrowEntry struct {
	bun.BaseModel `bun:"table:escrow_entries,alias:ee"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	TournamentID uuid.UUID `bun:"tournament_id,type:uuid,notnull"`
	Kind         EntryKind `bun:"kind,notnull"`
	Amount       int64     `bun:"amount,notnull"`
	ReferenceID  uuid.UUID `bun:"reference_id,type:uuid,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// EscrowTotals sums a tournament's entries by kind. Debit totals are
// reported as positive amounts.
type EscrowTotals struct {
	EntryFees int64
	TopUps    int64
	Payouts   int64
	Refunds   int64
}

// Balance is the amount still held for the tournament.
func (t EscrowTotals) Balance() int64 {
	return t.EntryFees + t.TopUps - t.Payouts - t.Refunds
}

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// Refund is the compensating record for a captured entry fee that will not
// buy a slot. One per registration.
type Refund struct {
	bun.BaseModel `bun:"table:refunds,alias:rf"`

	ID               uuid.UUID `bun:"id,pk,type:uuid"`
	TournamentID     uuid.UUID `bun:"tournament_id,type:uuid,notnull"`
	RegistrationID   uuid.UUID `bun:"registration_id,type:uuid,notnull,unique"`
	ParticipantID    uuid.UUID `bun:"participant_id,type:uuid,notnull"`
	PaymentReference string    `bun:"payment_reference,notnull"`
	Amount           int64     `bun:"amount,notnull"`
	Reason           string    `bun:"reason,notnull"`
	// FromEscrow is false for fees captured after the registration lost its
	// slot; those were never credited to escrow.
	FromEscrow      bool         `bun:"from_escrow,notnull"`
	Status          RefundStatus `bun:"status,notnull"`
	GatewayRefundID *string      `bun:"gateway_refund_id"`
	FailureReason   *string      `bun:"failure_reason"`
	Attempts        int          `bun:"attempts,notnull,default:0"`
	CreatedAt       time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt     *time.Time   `bun:"completed_at"`
}

// AuditEvent records one state transition.
type AuditEvent struct {
	bun.BaseModel `bun:"table:audit_events,alias:ae"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	EntityType string     `bun:"entity_type,notnull"`
	EntityID   uuid.UUID  `bun:"entity_id,type:uuid,notnull"`
	Action     string     `bun:"action,notnull"`
	FromStatus string     `bun:"from_status"`
	ToStatus   string     `bun:"to_status"`
	ActorID    *uuid.UUID `bun:"actor_id,type:uuid"`
	Reason     string     `bun:"reason"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
