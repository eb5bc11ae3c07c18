package tournamentservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CancelResult reports what a cancellation unwound.
type CancelResult struct {
	Tournament          *tournamentdb.Tournament `json:"tournament"`
	CancelledPending    int                      `json:"cancelled_pending"`
	CancelledConfirmed  int                      `json:"cancelled_confirmed"`
	RefundsCreated      int                      `json:"refunds_created"`
	RefundedTotal       int64                    `json:"refunded_total"`
	previousStatus      tournamentdomain.Status
	closedRegistrations []registrationdb.Registration
	refunds             []*ledgerdb.Refund
}

// Cancel ends a non-terminal tournament. In one transaction every pending
// registration is cancelled and its slot released, and every confirmed
// registration is cancelled with a refund of its entry fee.
func (s *Service) Cancel(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	result, err := telemetry.Run(ctx, s.instruments(), "Cancel", id.String(), func(ctx context.Context) (results.OperationResult[*CancelResult, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*CancelResult, error], error) {
			return s.cancelLogic(ctx, db, actor, id, reason)
		})
	})
	out, err := telemetry.Unwrap(result, err)
	if err != nil {
		return nil, err
	}

	evts := []eventbus.Event{statusChanged(out.Tournament, out.previousStatus, actor.ActorID(), reason, s.now())}
	refunded := make(map[uuid.UUID]bool, len(out.refunds))
	for _, r := range out.refunds {
		refunded[r.RegistrationID] = true
	}
	for _, reg := range out.closedRegistrations {
		evts = append(evts, eventbus.Event{Topic: events.RegistrationCancelled, Payload: events.RegistrationClosedPayload{
			RegistrationID: reg.ID,
			TournamentID:   reg.TournamentID,
			ParticipantID:  reg.ParticipantID,
			Status:         string(reg.Status),
			Refunded:       refunded[reg.ID],
		}})
	}
	for _, r := range out.refunds {
		evts = append(evts, eventbus.Event{Topic: events.RefundCreated, Payload: events.RefundPayload{
			RefundID:       r.ID,
			TournamentID:   r.TournamentID,
			RegistrationID: r.RegistrationID,
			Amount:         r.Amount,
			Status:         string(r.Status),
		}})
	}
	s.publish(ctx, evts...)
	s.scheduleRefunds(ctx, out.refunds)
	return out, nil
}

func (s *Service) cancelLogic(ctx context.Context, db bun.IDB, actor authdomain.Principal, id uuid.UUID, reason string) (results.OperationResult[*CancelResult, error], error) {
	t, denied, err := s.loadOwned(ctx, db, actor, id, true)
	if err != nil {
		return results.OperationResult[*CancelResult, error]{}, err
	}
	if denied != nil {
		return fail[*CancelResult](denied)
	}
	if !t.Status.CanTransitionTo(tournamentdomain.StatusCancelled) {
		return fail[*CancelResult](apperr.InvalidState("tournament is already %s", t.Status))
	}
	committed, err := s.settlement.SumCommittedGross(ctx, db, t.ID)
	if err != nil {
		return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to sum committed payouts: %w", err)
	}
	if committed > 0 {
		return fail[*CancelResult](apperr.InvalidState("tournament has %d committed to payouts and can no longer be cancelled", committed))
	}

	actorID := actor.ActorID()
	regReason := "tournament cancelled: " + reason
	out := &CancelResult{previousStatus: t.Status}

	pending, err := s.registrations.CancelPendingForTournament(ctx, db, t.ID, regReason)
	if err != nil {
		return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to cancel pending registrations: %w", err)
	}
	if len(pending) > 0 {
		if err := s.slots.Release(ctx, db, t.ID, len(pending)); err != nil {
			return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to release reserved slots: %w", err)
		}
	}

	confirmed, err := s.registrations.CancelConfirmedForTournament(ctx, db, t.ID, regReason)
	if err != nil {
		return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to cancel confirmed registrations: %w", err)
	}
	if len(confirmed) > 0 {
		if err := s.slots.ReleaseConfirmed(ctx, db, t.ID, len(confirmed)); err != nil {
			return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to release confirmed slots: %w", err)
		}
	}

	for i := range confirmed {
		reg := &confirmed[i]
		if reg.AmountPaid <= 0 || !reg.PaymentCaptured() {
			continue
		}
		refund, created, err := s.book.IssueRefund(ctx, db, ledgerservice.RefundRequest{
			TournamentID:     t.ID,
			RegistrationID:   reg.ID,
			ParticipantID:    reg.ParticipantID,
			PaymentReference: *reg.PaymentReference,
			Amount:           reg.AmountPaid,
			Reason:           regReason,
			FromEscrow:       true,
			ActorID:          actorID,
		})
		if err != nil {
			return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to issue refund for registration %s: %w", reg.ID, err)
		}
		if created {
			out.refunds = append(out.refunds, refund)
			out.RefundedTotal += refund.Amount
		}
	}

	for _, group := range [][]registrationdb.Registration{pending, confirmed} {
		for i := range group {
			reg := &group[i]
			if err := s.book.Audit(ctx, db, ledgerservice.AuditEntry{
				EntityType: ledgerservice.EntityRegistration,
				EntityID:   reg.ID,
				Action:     "registration.cancelled",
				To:         string(reg.Status),
				ActorID:    actorID,
				Reason:     regReason,
			}); err != nil {
				return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to audit registration cancel: %w", err)
			}
		}
	}

	updated, err := s.repo.ApplyTransition(ctx, db, t.ID, tournamentdb.Transition{
		From:               []tournamentdomain.Status{t.Status},
		To:                 tournamentdomain.StatusCancelled,
		CancellationReason: &reason,
	})
	if err != nil {
		if errors.Is(err, tournamentdb.ErrStatusConflict) {
			return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("tournament %s changed state under lock: %w", t.ID, err)
		}
		return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to cancel tournament: %w", err)
	}
	if err := s.audit(ctx, db, t.ID, "tournament.cancelled", t.Status, updated.Status, actorID, reason); err != nil {
		return results.OperationResult[*CancelResult, error]{}, fmt.Errorf("failed to audit cancellation: %w", err)
	}

	out.Tournament = updated
	out.CancelledPending = len(pending)
	out.CancelledConfirmed = len(confirmed)
	out.RefundsCreated = len(out.refunds)
	out.closedRegistrations = append(pending, confirmed...)
	return results.SuccessResult[*CancelResult, error](out), nil
}
