package registrationservice

import (
	"context"
	"errors"
	"fmt"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
)

// GetMyRegistration returns the caller's most recent registration for the
// tournament, in any status.
func (s *Service) GetMyRegistration(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*registrationdb.Registration, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "GetMyRegistration", tournamentID.String(), func(ctx context.Context) (results.OperationResult[*registrationdb.Registration, error], error) {
		reg, err := s.repo.GetLatestByParticipant(ctx, s.idb(), tournamentID, actor.ID)
		if err != nil {
			if errors.Is(err, registrationdb.ErrNotFound) {
				return results.FailureResult[*registrationdb.Registration, error](apperr.NotFound("no registration for this tournament")), nil
			}
			return results.OperationResult[*registrationdb.Registration, error]{}, fmt.Errorf("failed to get registration: %w", err)
		}
		return results.SuccessResult[*registrationdb.Registration, error](reg), nil
	})
	return telemetry.Unwrap(result, err)
}

// ListParticipants returns the public roster of confirmed registrations.
func (s *Service) ListParticipants(ctx context.Context, tournamentID uuid.UUID) ([]registrationdb.RosterEntry, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ListParticipants", tournamentID.String(), func(ctx context.Context) (results.OperationResult[[]registrationdb.RosterEntry, error], error) {
		if _, err := s.tournaments.GetByID(ctx, s.idb(), tournamentID); err != nil {
			if errors.Is(err, tournamentdb.ErrNotFound) {
				return results.FailureResult[[]registrationdb.RosterEntry, error](apperr.NotFound("tournament %s not found", tournamentID)), nil
			}
			return results.OperationResult[[]registrationdb.RosterEntry, error]{}, fmt.Errorf("failed to get tournament: %w", err)
		}
		roster, err := s.repo.Roster(ctx, s.idb(), tournamentID)
		if err != nil {
			return results.OperationResult[[]registrationdb.RosterEntry, error]{}, err
		}
		return results.SuccessResult[[]registrationdb.RosterEntry, error](roster), nil
	})
	return telemetry.Unwrap(result, err)
}
