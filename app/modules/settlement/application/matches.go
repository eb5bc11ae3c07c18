package settlementservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MatchInput describes a match to schedule.
type MatchInput struct {
	Name        string
	Round       int
	ScheduledAt *time.Time
}

// CreateMatch schedules a match in a tournament whose registration is
// closed. Only the organizer may do it.
func (s *Service) CreateMatch(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, in MatchInput) (*settlementdb.Match, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Round == 0 {
		in.Round = 1
	}
	if in.Round < 1 {
		return nil, apperr.Validation("round must be at least 1")
	}

	result, err := telemetry.Run(ctx, s.instruments(), "CreateMatch", tournamentID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.Match, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.Match, error], error) {
			t, denied, err := s.loadTournament(ctx, db, tournamentID, false)
			if err != nil {
				return infra[*settlementdb.Match](err)
			}
			if denied != nil {
				return fail[*settlementdb.Match](denied)
			}
			if !actor.Owns(t.OrganizerID) {
				return fail[*settlementdb.Match](apperr.Forbidden("tournament is organized by someone else"))
			}
			if t.Status != tournamentdomain.StatusRegistrationClosed && t.Status != tournamentdomain.StatusLive {
				return fail[*settlementdb.Match](apperr.InvalidState("tournament is %s, matches need closed registration", t.Status))
			}

			m := &settlementdb.Match{
				ID:           uuid.New(),
				TournamentID: t.ID,
				Name:         in.Name,
				Round:        in.Round,
				Status:       settlementdomain.MatchStatusScheduled,
				ScheduledAt:  in.ScheduledAt,
				CreatedBy:    actor.ID,
			}
			if err := s.repo.CreateMatch(ctx, db, m); err != nil {
				return infra[*settlementdb.Match](fmt.Errorf("failed to create match: %w", err))
			}
			if err := s.audit(ctx, db, ledgerservice.EntityMatch, m.ID, "match.created", "", string(m.Status), actor.ActorID(), ""); err != nil {
				return infra[*settlementdb.Match](fmt.Errorf("failed to audit match: %w", err))
			}
			return results.SuccessResult[*settlementdb.Match, error](m), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

// ListMatches returns the tournament's matches by round.
func (s *Service) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]settlementdb.Match, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ListMatches", tournamentID.String(), func(ctx context.Context) (results.OperationResult[[]settlementdb.Match, error], error) {
		if _, denied, err := s.loadTournament(ctx, s.idb(), tournamentID, false); err != nil {
			return infra[[]settlementdb.Match](err)
		} else if denied != nil {
			return fail[[]settlementdb.Match](denied)
		}
		list, err := s.repo.ListMatches(ctx, s.idb(), tournamentID)
		if err != nil {
			return infra[[]settlementdb.Match](fmt.Errorf("failed to list matches: %w", err))
		}
		return results.SuccessResult[[]settlementdb.Match, error](list), nil
	})
	return telemetry.Unwrap(result, err)
}
