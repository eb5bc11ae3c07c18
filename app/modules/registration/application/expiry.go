package registrationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExpiryReport summarises one sweep.
type ExpiryReport struct {
	Tournaments int `json:"tournaments"`
	Expired     int `json:"expired"`
}

// ExpireStaleReservations expires pending registrations whose payment
// deadline passed before now and returns their slots. Only rows this call
// claims are released, so concurrent sweeps never release a slot twice.
func (s *Service) ExpireStaleReservations(ctx context.Context, now time.Time) (*ExpiryReport, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ExpireStaleReservations", now.UTC().Format(time.RFC3339), func(ctx context.Context) (results.OperationResult[*ExpiryReport, error], error) {
		return s.expireLogic(ctx, now.UTC())
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) expireLogic(ctx context.Context, now time.Time) (results.OperationResult[*ExpiryReport, error], error) {
	ids, err := s.repo.TournamentsWithExpired(ctx, s.idb(), now, sweepBatch)
	if err != nil {
		return results.OperationResult[*ExpiryReport, error]{}, fmt.Errorf("failed to find expired reservations: %w", err)
	}

	report := &ExpiryReport{}
	var errs []error
	for _, id := range ids {
		claimed, err := s.expireTournament(ctx, id, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "Expiry sweep failed for tournament",
				attr.ExtractCorrelationID(ctx),
				attr.UUID("tournament_id", id),
				attr.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if len(claimed) == 0 {
			continue
		}
		report.Tournaments++
		report.Expired += len(claimed)

		evts := make([]eventbus.Event, 0, len(claimed))
		for i := range claimed {
			evts = append(evts, closedEvent(events.RegistrationExpired, &claimed[i], false))
		}
		s.publish(ctx, evts...)
	}
	if len(errs) > 0 {
		return results.OperationResult[*ExpiryReport, error]{}, errors.Join(errs...)
	}
	return results.SuccessResult[*ExpiryReport, error](report), nil
}

func (s *Service) expireTournament(ctx context.Context, tournamentID uuid.UUID, now time.Time) ([]registrationdb.Registration, error) {
	result, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[[]registrationdb.Registration, error], error) {
		if _, err := s.tournaments.GetForUpdate(ctx, db, tournamentID); err != nil {
			return results.OperationResult[[]registrationdb.Registration, error]{}, fmt.Errorf("failed to lock tournament: %w", err)
		}
		claimed, err := s.repo.ClaimExpired(ctx, db, tournamentID, now, sweepBatch)
		if err != nil {
			return results.OperationResult[[]registrationdb.Registration, error]{}, err
		}
		if len(claimed) == 0 {
			return results.SuccessResult[[]registrationdb.Registration, error](nil), nil
		}
		if err := s.slots.Release(ctx, db, tournamentID, len(claimed)); err != nil {
			return results.OperationResult[[]registrationdb.Registration, error]{}, fmt.Errorf("failed to release expired slots: %w", err)
		}
		expired := make([]registrationdb.Registration, 0, len(claimed))
		for i := range claimed {
			if err := s.audit(ctx, db, &claimed[i].Registration, "registration.expired", claimed[i].From, nil, "payment deadline passed"); err != nil {
				return results.OperationResult[[]registrationdb.Registration, error]{}, fmt.Errorf("failed to audit expiry: %w", err)
			}
			expired = append(expired, claimed[i].Registration)
		}
		return results.SuccessResult[[]registrationdb.Registration, error](expired), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}
