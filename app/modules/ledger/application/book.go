// Package ledgerservice books escrow movements, refunds and audit rows.
// Every method takes the caller's transaction handle and writes nothing on
// its own.
package ledgerservice

import (
	"context"
	"fmt"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entity types recorded in audit_events.
const (
	EntityTournament   = "tournament"
	EntityRegistration = "registration"
	EntityMatch        = "match"
	EntityMatchResult  = "match_result"
	EntityPayout       = "payout"
	EntityRefund       = "refund"
	EntityDispute      = "dispute"
)

// AuditEntry is a state transition to record.
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	From       string
	To         string
	ActorID    *uuid.UUID
	Reason     string
}

// RefundRequest describes a compensating refund for a captured fee.
type RefundRequest struct {
	TournamentID     uuid.UUID
	RegistrationID   uuid.UUID
	ParticipantID    uuid.UUID
	PaymentReference string
	Amount           int64
	Reason           string
	// FromEscrow marks a fee that was credited to escrow and must be
	// reserved out of it.
	FromEscrow bool
	ActorID    *uuid.UUID
}

// Book keeps the escrow ledger and the tournament escrow counters in step.
type Book struct {
	ledger      ledgerdb.Repository
	tournaments tournamentdb.Repository
}

func NewBook(ledger ledgerdb.Repository, tournaments tournamentdb.Repository) *Book {
	return &Book{ledger: ledger, tournaments: tournaments}
}

// Ledger exposes the underlying repository for reads.
func (b *Book) Ledger() ledgerdb.Repository { return b.ledger }

func (b *Book) Audit(ctx context.Context, db bun.IDB, e AuditEntry) error {
	return b.ledger.RecordAudit(ctx, db, &ledgerdb.AuditEvent{
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		FromStatus: e.From,
		ToStatus:   e.To,
		ActorID:    e.ActorID,
		Reason:     e.Reason,
	})
}

// CreditEntryFee books a captured entry fee. A second call for the same
// registration is a no-op.
func (b *Book) CreditEntryFee(ctx context.Context, db bun.IDB, tournamentID, registrationID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	appended, err := b.ledger.AppendEntry(ctx, db, &ledgerdb.EscrowEntry{
		TournamentID: tournamentID,
		Kind:         ledgerdb.EntryKindEntryFee,
		Amount:       amount,
		ReferenceID:  registrationID,
	})
	if err != nil {
		return err
	}
	if !appended {
		return nil
	}
	return b.tournaments.AdjustEscrow(ctx, db, tournamentID, tournamentdb.EscrowDelta{Collected: amount})
}

// CreditTopUp books organizer-funded escrow.
func (b *Book) CreditTopUp(ctx context.Context, db bun.IDB, tournamentID, topUpID uuid.UUID, amount int64) error {
	appended, err := b.ledger.AppendEntry(ctx, db, &ledgerdb.EscrowEntry{
		TournamentID: tournamentID,
		Kind:         ledgerdb.EntryKindTopUp,
		Amount:       amount,
		ReferenceID:  topUpID,
	})
	if err != nil {
		return err
	}
	if !appended {
		return fmt.Errorf("top-up %s already booked", topUpID)
	}
	return b.tournaments.AdjustEscrow(ctx, db, tournamentID, tournamentdb.EscrowDelta{TopUp: amount})
}

// IssueRefund records a PENDING refund. created is false when the
// registration already has one, in which case the existing refund is
// returned and nothing is written.
func (b *Book) IssueRefund(ctx context.Context, db bun.IDB, req RefundRequest) (refund *ledgerdb.Refund, created bool, err error) {
	refund = &ledgerdb.Refund{
		TournamentID:     req.TournamentID,
		RegistrationID:   req.RegistrationID,
		ParticipantID:    req.ParticipantID,
		PaymentReference: req.PaymentReference,
		Amount:           req.Amount,
		Reason:           req.Reason,
		FromEscrow:       req.FromEscrow,
		Status:           ledgerdb.RefundStatusPending,
	}
	created, err = b.ledger.CreateRefund(ctx, db, refund)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := b.ledger.GetRefundByRegistration(ctx, db, req.RegistrationID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if req.FromEscrow {
		if err := b.tournaments.AdjustEscrow(ctx, db, req.TournamentID, tournamentdb.EscrowDelta{Refunded: req.Amount}); err != nil {
			return nil, false, err
		}
	}
	if err := b.Audit(ctx, db, AuditEntry{
		EntityType: EntityRefund,
		EntityID:   refund.ID,
		Action:     "refund.created",
		To:         string(ledgerdb.RefundStatusPending),
		ActorID:    req.ActorID,
		Reason:     req.Reason,
	}); err != nil {
		return nil, false, err
	}
	return refund, true, nil
}

// DebitRefund books the escrow debit for a completed refund.
func (b *Book) DebitRefund(ctx context.Context, db bun.IDB, refund *ledgerdb.Refund) error {
	if !refund.FromEscrow {
		return nil
	}
	_, err := b.ledger.AppendEntry(ctx, db, &ledgerdb.EscrowEntry{
		TournamentID: refund.TournamentID,
		Kind:         ledgerdb.EntryKindRefund,
		Amount:       -refund.Amount,
		ReferenceID:  refund.ID,
	})
	return err
}

// DebitPayout books the escrow debit for a completed payout. It reports
// false when the payout was already booked.
func (b *Book) DebitPayout(ctx context.Context, db bun.IDB, tournamentID, payoutID uuid.UUID, gross int64) (bool, error) {
	appended, err := b.ledger.AppendEntry(ctx, db, &ledgerdb.EscrowEntry{
		TournamentID: tournamentID,
		Kind:         ledgerdb.EntryKindPayout,
		Amount:       -gross,
		ReferenceID:  payoutID,
	})
	if err != nil || !appended {
		return appended, err
	}
	if err := b.tournaments.AdjustEscrow(ctx, db, tournamentID, tournamentdb.EscrowDelta{Released: gross}); err != nil {
		return false, err
	}
	return true, nil
}
