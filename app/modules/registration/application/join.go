package registrationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JoinResult is a new registration and, for paid tournaments, the checkout
// order the participant pays against.
type JoinResult struct {
	Registration *registrationdb.Registration `json:"registration"`
	Order        *paymentgateway.Order        `json:"order,omitempty"`
}

// reservation is what the join transaction commits.
type reservation struct {
	tournament   *tournamentdb.Tournament
	registration *registrationdb.Registration
	confirmed    *slotConfirmation
}

// Join reserves a slot for the caller and opens a payment order for it.
func (s *Service) Join(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, team registrationdomain.TeamInfo) (*JoinResult, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "Join", tournamentID.String(), func(ctx context.Context) (results.OperationResult[*JoinResult, error], error) {
		return s.joinLogic(ctx, actor, tournamentID, team)
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) joinLogic(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, team registrationdomain.TeamInfo) (results.OperationResult[*JoinResult, error], error) {
	team = team.Normalize()
	if err := team.Validate(); err != nil {
		return results.FailureResult[*JoinResult, error](apperr.Wrap(apperr.CodeValidation, err.Error(), err)), nil
	}
	now := s.now()

	reserved, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*reservation, error], error) {
		return s.reserveLogic(ctx, db, actor, tournamentID, team, now)
	})
	if err != nil {
		return results.OperationResult[*JoinResult, error]{}, err
	}
	if reserved.IsFailure() {
		return results.FailureResult[*JoinResult, error](*reserved.Failure), nil
	}
	res := *reserved.Success
	reg := res.registration

	if res.confirmed != nil {
		evts := []eventbus.Event{confirmedEvent(res.confirmed.registration)}
		if res.confirmed.closed != nil {
			evts = append(evts, tournamentClosedEvent(res.confirmed.closed, now))
		}
		s.publish(ctx, evts...)
		return results.SuccessResult[*JoinResult, error](&JoinResult{Registration: res.confirmed.registration}), nil
	}

	currency := res.tournament.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	order, err := s.gateway.CreateOrder(ctx, paymentgateway.OrderRequest{
		Amount:   res.tournament.EntryFee,
		Currency: currency,
		Receipt:  reg.ID.String(),
		Notes: map[string]string{
			"registration_id": reg.ID.String(),
			"tournament_id":   tournamentID.String(),
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Payment order creation failed, releasing reservation",
			attr.ExtractCorrelationID(ctx),
			attr.UUID("registration_id", reg.ID),
			attr.Error(err),
		)
		if relErr := s.releaseUnpaid(ctx, reg, "payment order could not be created"); relErr != nil {
			return results.OperationResult[*JoinResult, error]{}, fmt.Errorf("failed to release reservation after gateway error: %w", relErr)
		}
		return results.FailureResult[*JoinResult, error](apperr.Wrap(apperr.CodeGatewayUnavailable, "payment gateway unavailable", err)), nil
	}

	stored, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[struct{}, error], error) {
		if err := s.repo.SetPaymentOrder(ctx, db, reg.ID, order.ID); err != nil {
			if errors.Is(err, registrationdb.ErrStatusConflict) {
				return results.FailureResult[struct{}, error](apperr.InvalidState("registration %s is no longer awaiting payment", reg.ID)), nil
			}
			return results.OperationResult[struct{}, error]{}, fmt.Errorf("failed to store payment order: %w", err)
		}
		return results.SuccessResult[struct{}, error](struct{}{}), nil
	})
	if err != nil {
		return results.OperationResult[*JoinResult, error]{}, err
	}
	if stored.IsFailure() {
		return results.FailureResult[*JoinResult, error](*stored.Failure), nil
	}
	reg.PaymentOrderID = &order.ID

	return results.SuccessResult[*JoinResult, error](&JoinResult{Registration: reg, Order: &order}), nil
}

func (s *Service) reserveLogic(
	ctx context.Context,
	db bun.IDB,
	actor authdomain.Principal,
	tournamentID uuid.UUID,
	team registrationdomain.TeamInfo,
	now time.Time,
) (results.OperationResult[*reservation, error], error) {
	t, err := s.tournaments.GetByID(ctx, db, tournamentID)
	if err != nil {
		if errors.Is(err, tournamentdb.ErrNotFound) {
			return results.FailureResult[*reservation, error](apperr.NotFound("tournament %s not found", tournamentID)), nil
		}
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to get tournament: %w", err)
	}
	if t.Status != tournamentdomain.StatusRegistrationOpen {
		return results.FailureResult[*reservation, error](apperr.InvalidState("tournament is %s, registration is not open", t.Status)), nil
	}

	if _, err := s.repo.GetActiveByParticipant(ctx, db, t.ID, actor.ID); err == nil {
		return results.FailureResult[*reservation, error](apperr.New(apperr.CodeConflict, "participant already registered for this tournament")), nil
	} else if !errors.Is(err, registrationdb.ErrNotFound) {
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to check existing registration: %w", err)
	}

	ok, err := s.slots.Reserve(ctx, db, t.ID)
	if err != nil {
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to reserve slot: %w", err)
	}
	if !ok {
		// The CAS also fails if registration closed in the meantime.
		if current, err := s.tournaments.GetByID(ctx, db, t.ID); err == nil && current.Status != tournamentdomain.StatusRegistrationOpen {
			return results.FailureResult[*reservation, error](apperr.InvalidState("tournament is %s, registration is not open", current.Status)), nil
		}
		s.metrics.RecordCapacityRejection(ctx, t.ID.String())
		return results.FailureResult[*reservation, error](apperr.Newf(apperr.CodeCapacityExceeded, "all %d slots are taken", t.Capacity)), nil
	}

	reg := &registrationdb.Registration{
		ID:            uuid.New(),
		TournamentID:  t.ID,
		ParticipantID: actor.ID,
		TeamName:      team.TeamName,
		TeamMembers:   team.Members,
		Status:        registrationdomain.StatusInitiated,
	}
	if err := s.repo.Create(ctx, db, reg); err != nil {
		if errors.Is(err, registrationdb.ErrAlreadyRegistered) {
			if err := s.slots.Release(ctx, db, t.ID, 1); err != nil {
				return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to release duplicate reservation: %w", err)
			}
			return results.FailureResult[*reservation, error](apperr.Wrap(apperr.CodeConflict, "participant already registered for this tournament", err)), nil
		}
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to create registration: %w", err)
	}
	actorID := actor.ActorID()
	if err := s.audit(ctx, db, reg, "registration.created", "", actorID, ""); err != nil {
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to audit registration: %w", err)
	}

	if t.EntryFee == 0 {
		confirmed, err := s.confirmSlot(ctx, db, t, reg, "", 0, now, actorID)
		if err != nil {
			return results.OperationResult[*reservation, error]{}, err
		}
		return results.SuccessResult[*reservation, error](&reservation{tournament: t, registration: confirmed.registration, confirmed: confirmed}), nil
	}

	awaiting, err := s.repo.MarkAwaitingPayment(ctx, db, reg.ID, now.Add(s.cfg.PaymentTimeout))
	if err != nil {
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to start payment window: %w", err)
	}
	if err := s.audit(ctx, db, awaiting, "registration.awaiting_payment", registrationdomain.StatusInitiated, actorID, ""); err != nil {
		return results.OperationResult[*reservation, error]{}, fmt.Errorf("failed to audit registration: %w", err)
	}
	return results.SuccessResult[*reservation, error](&reservation{tournament: t, registration: awaiting}), nil
}

// releaseUnpaid cancels a pending registration and returns its slot. A
// registration that already left the pending states keeps its slot.
func (s *Service) releaseUnpaid(ctx context.Context, reg *registrationdb.Registration, reason string) error {
	released, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*registrationdb.Registration, error], error) {
		if _, err := s.tournaments.GetForUpdate(ctx, db, reg.TournamentID); err != nil {
			return results.OperationResult[*registrationdb.Registration, error]{}, fmt.Errorf("failed to lock tournament: %w", err)
		}
		cancelled, err := s.repo.Cancel(ctx, db, reg.ID, registrationdomain.PendingStatuses, reason)
		if err != nil {
			if errors.Is(err, registrationdb.ErrStatusConflict) {
				return results.OperationResult[*registrationdb.Registration, error]{}, nil
			}
			return results.OperationResult[*registrationdb.Registration, error]{}, fmt.Errorf("failed to cancel registration: %w", err)
		}
		if err := s.slots.Release(ctx, db, reg.TournamentID, 1); err != nil {
			return results.OperationResult[*registrationdb.Registration, error]{}, fmt.Errorf("failed to release slot: %w", err)
		}
		if err := s.audit(ctx, db, cancelled, "registration.cancelled", reg.Status, nil, reason); err != nil {
			return results.OperationResult[*registrationdb.Registration, error]{}, fmt.Errorf("failed to audit cancellation: %w", err)
		}
		return results.SuccessResult[*registrationdb.Registration, error](cancelled), nil
	})
	if err != nil {
		return err
	}
	if released.IsSuccess() {
		s.publish(ctx, closedEvent(events.RegistrationCancelled, *released.Success, false))
	}
	return nil
}
