package tournamentservice

import (
	"context"
	"errors"
	"fmt"

	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
)

func (s *Service) GetTournament(ctx context.Context, id uuid.UUID) (*tournamentdb.Tournament, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "GetTournament", id.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		t, err := s.repo.GetByID(ctx, s.idb(), id)
		if err != nil {
			if errors.Is(err, tournamentdb.ErrNotFound) {
				return fail[*tournamentdb.Tournament](apperr.NotFound("tournament %s not found", id))
			}
			return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to get tournament: %w", err)
		}
		return results.SuccessResult[*tournamentdb.Tournament, error](t), nil
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) ListTournaments(ctx context.Context, filter tournamentdb.ListFilter) ([]tournamentdb.Tournament, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperr.Validation("unknown status %q", *filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}
	result, err := telemetry.Run(ctx, s.instruments(), "ListTournaments", "", func(ctx context.Context) (results.OperationResult[[]tournamentdb.Tournament, error], error) {
		list, err := s.repo.List(ctx, s.idb(), filter)
		if err != nil {
			return results.OperationResult[[]tournamentdb.Tournament, error]{}, fmt.Errorf("failed to list tournaments: %w", err)
		}
		return results.SuccessResult[[]tournamentdb.Tournament, error](list), nil
	})
	return telemetry.Unwrap(result, err)
}
