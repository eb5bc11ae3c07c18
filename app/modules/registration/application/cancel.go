package registrationservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const withdrawnReason = "withdrawn by participant"

type cancellation struct {
	registration *registrationdb.Registration
	refund       *ledgerdb.Refund
}

// CancelRegistration withdraws a registration and returns its slot. A
// captured fee is refunded in full.
func (s *Service) CancelRegistration(ctx context.Context, actor authdomain.Principal, registrationID uuid.UUID) (*registrationdb.Registration, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "CancelRegistration", registrationID.String(), func(ctx context.Context) (results.OperationResult[*cancellation, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*cancellation, error], error) {
			return s.cancelRegistrationLogic(ctx, db, actor, registrationID)
		})
	})
	out, err := telemetry.Unwrap(result, err)
	if err != nil {
		return nil, err
	}

	evts := []eventbus.Event{closedEvent(events.RegistrationCancelled, out.registration, out.refund != nil)}
	if out.refund != nil {
		evts = append(evts, refundEvent(out.refund))
	}
	s.publish(ctx, evts...)
	s.scheduleRefund(ctx, out.refund)
	return out.registration, nil
}

func (s *Service) cancelRegistrationLogic(ctx context.Context, db bun.IDB, actor authdomain.Principal, registrationID uuid.UUID) (results.OperationResult[*cancellation, error], error) {
	unlocked, err := s.repo.GetByID(ctx, db, registrationID)
	if err != nil {
		if errors.Is(err, registrationdb.ErrNotFound) {
			return results.FailureResult[*cancellation, error](apperr.NotFound("registration %s not found", registrationID)), nil
		}
		return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to get registration: %w", err)
	}
	if !actor.Owns(unlocked.ParticipantID) {
		return results.FailureResult[*cancellation, error](apperr.Forbidden("registration belongs to another participant")), nil
	}

	t, err := s.tournaments.GetForUpdate(ctx, db, unlocked.TournamentID)
	if err != nil {
		return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to lock tournament: %w", err)
	}
	reg, err := s.repo.GetForUpdate(ctx, db, registrationID)
	if err != nil {
		return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to lock registration: %w", err)
	}
	from := reg.Status
	actorID := actor.ActorID()

	out := &cancellation{}
	switch {
	case from.IsPending():
		cancelled, err := s.repo.Cancel(ctx, db, reg.ID, registrationdomain.PendingStatuses, withdrawnReason)
		if err != nil {
			return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to cancel registration: %w", err)
		}
		if err := s.slots.Release(ctx, db, t.ID, 1); err != nil {
			return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to release slot: %w", err)
		}
		out.registration = cancelled

	case from == registrationdomain.StatusConfirmed:
		if t.Status != tournamentdomain.StatusRegistrationOpen && t.Status != tournamentdomain.StatusRegistrationClosed {
			return results.FailureResult[*cancellation, error](apperr.InvalidState("tournament is %s, confirmed registrations can no longer withdraw", t.Status)), nil
		}
		// Escrow backing verified payouts is spoken for.
		committed, err := s.commitments.SumCommittedGross(ctx, db, t.ID)
		if err != nil {
			return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to sum committed payouts: %w", err)
		}
		if committed > 0 {
			return results.FailureResult[*cancellation, error](apperr.InvalidState("tournament has %d committed to payouts, confirmed registrations can no longer withdraw", committed)), nil
		}
		cancelled, err := s.repo.Cancel(ctx, db, reg.ID, []registrationdomain.Status{registrationdomain.StatusConfirmed}, withdrawnReason)
		if err != nil {
			return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to cancel registration: %w", err)
		}
		if err := s.slots.ReleaseConfirmed(ctx, db, t.ID, 1); err != nil {
			return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to release confirmed slot: %w", err)
		}
		out.registration = cancelled
		if cancelled.AmountPaid > 0 && cancelled.PaymentCaptured() {
			refund, created, err := s.book.IssueRefund(ctx, db, ledgerservice.RefundRequest{
				TournamentID:     t.ID,
				RegistrationID:   cancelled.ID,
				ParticipantID:    cancelled.ParticipantID,
				PaymentReference: *cancelled.PaymentReference,
				Amount:           cancelled.AmountPaid,
				Reason:           withdrawnReason,
				FromEscrow:       true,
				ActorID:          actorID,
			})
			if err != nil {
				return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to issue refund: %w", err)
			}
			if created {
				out.refund = refund
			}
		}

	default:
		return results.FailureResult[*cancellation, error](apperr.InvalidState("registration is already %s", from)), nil
	}

	if err := s.audit(ctx, db, out.registration, "registration.cancelled", from, actorID, withdrawnReason); err != nil {
		return results.OperationResult[*cancellation, error]{}, fmt.Errorf("failed to audit cancellation: %w", err)
	}
	return results.SuccessResult[*cancellation, error](out), nil
}
