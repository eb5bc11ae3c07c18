package registrationservice

import (
	"context"
	"fmt"
	"time"

	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const autoCloseReason = "capacity reached"

// slotConfirmation is the outcome of turning a held reservation into a slot.
type slotConfirmation struct {
	registration *registrationdb.Registration
	// closed is set when this confirmation filled the tournament.
	closed *tournamentdb.Tournament
}

// confirmSlot assigns the next slot number to a registration that holds a
// reservation, credits its fee to escrow and closes registration when the
// tournament is full. The tournament row must already be locked.
func (s *Service) confirmSlot(
	ctx context.Context,
	db bun.IDB,
	t *tournamentdb.Tournament,
	reg *registrationdb.Registration,
	paymentReference string,
	amount int64,
	at time.Time,
	actorID *uuid.UUID,
) (*slotConfirmation, error) {
	from := reg.Status
	slot, err := s.slots.Confirm(ctx, db, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm slot: %w", err)
	}

	confirmed, err := s.repo.Confirm(ctx, db, reg.ID, registrationdb.ConfirmParams{
		From:             []registrationdomain.Status{from},
		SlotNumber:       slot,
		AmountPaid:       amount,
		PaymentReference: paymentReference,
		ConfirmedAt:      at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm registration: %w", err)
	}
	if err := s.book.CreditEntryFee(ctx, db, t.ID, confirmed.ID, amount); err != nil {
		return nil, fmt.Errorf("failed to credit entry fee: %w", err)
	}
	if err := s.audit(ctx, db, confirmed, "registration.confirmed", from, actorID, ""); err != nil {
		return nil, fmt.Errorf("failed to audit confirmation: %w", err)
	}

	out := &slotConfirmation{registration: confirmed}
	current, err := s.tournaments.GetByID(ctx, db, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tournament: %w", err)
	}
	if current.Status != tournamentdomain.StatusRegistrationOpen || !current.IsFull() {
		return out, nil
	}

	closed, err := s.tournaments.ApplyTransition(ctx, db, t.ID, tournamentdb.Transition{
		From: []tournamentdomain.Status{tournamentdomain.StatusRegistrationOpen},
		To:   tournamentdomain.StatusRegistrationClosed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close full tournament: %w", err)
	}
	if err := s.book.Audit(ctx, db, ledgerservice.AuditEntry{
		EntityType: ledgerservice.EntityTournament,
		EntityID:   t.ID,
		Action:     "tournament.closed",
		From:       string(tournamentdomain.StatusRegistrationOpen),
		To:         string(tournamentdomain.StatusRegistrationClosed),
		ActorID:    actorID,
		Reason:     autoCloseReason,
	}); err != nil {
		return nil, fmt.Errorf("failed to audit auto-close: %w", err)
	}
	out.closed = closed
	return out, nil
}
