package disputeservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DisputeInput is what a participant supplies when raising a dispute.
type DisputeInput struct {
	TournamentID   uuid.UUID
	RegistrationID *uuid.UUID
	MatchID        *uuid.UUID
	Type           disputedomain.Type
	Priority       disputedomain.Priority
	Description    string
}

// OpenDispute records a new OPEN dispute. While it stays open it blocks
// verification and payouts on the match it names, or on the whole
// tournament when it names none.
func (s *Service) OpenDispute(ctx context.Context, actor authdomain.Principal, in DisputeInput) (*disputedb.Dispute, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Priority == "" {
		in.Priority = disputedomain.PriorityMedium
	}
	switch {
	case in.TournamentID == uuid.Nil:
		return nil, apperr.Validation("tournament_id is required")
	case !in.Type.IsValid():
		return nil, apperr.Validation("invalid dispute type %q", in.Type)
	case !in.Priority.IsValid():
		return nil, apperr.Validation("invalid priority %q", in.Priority)
	case in.Description == "":
		return nil, apperr.Validation("description is required")
	}

	result, err := telemetry.Run(ctx, s.instruments(), "OpenDispute", in.TournamentID.String(), func(ctx context.Context) (results.OperationResult[*disputedb.Dispute, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*disputedb.Dispute, error], error) {
			if _, denied, err := s.loadTournament(ctx, db, in.TournamentID, true); err != nil {
				return infra[*disputedb.Dispute](err)
			} else if denied != nil {
				return fail[*disputedb.Dispute](denied)
			}
			if denied, err := s.checkReferences(ctx, db, in); err != nil {
				return infra[*disputedb.Dispute](err)
			} else if denied != nil {
				return fail[*disputedb.Dispute](denied)
			}

			d := &disputedb.Dispute{
				ID:             uuid.New(),
				TournamentID:   in.TournamentID,
				RegistrationID: in.RegistrationID,
				MatchID:        in.MatchID,
				RaisedBy:       actor.ID,
				Type:           in.Type,
				Priority:       in.Priority,
				Status:         disputedomain.StatusOpen,
				Description:    in.Description,
			}
			if err := s.repo.Create(ctx, db, d); err != nil {
				return infra[*disputedb.Dispute](fmt.Errorf("failed to create dispute: %w", err))
			}
			if err := s.audit(ctx, db, d, "dispute.opened", "", actor.ActorID(), string(d.Type)); err != nil {
				return infra[*disputedb.Dispute](fmt.Errorf("failed to audit dispute: %w", err))
			}
			return results.SuccessResult[*disputedb.Dispute, error](d), nil
		})
	})
	d, err := telemetry.Unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, disputeEvent(events.DisputeOpened, d))
	return d, nil
}

// checkReferences verifies the match and registration, when given, belong
// to the disputed tournament.
func (s *Service) checkReferences(ctx context.Context, db bun.IDB, in DisputeInput) (*apperr.Error, error) {
	if in.MatchID != nil {
		m, err := s.matches.GetMatch(ctx, db, *in.MatchID)
		switch {
		case errors.Is(err, settlementdb.ErrNotFound):
			return apperr.Validation("match %s not found", *in.MatchID), nil
		case err != nil:
			return nil, fmt.Errorf("failed to get match: %w", err)
		case m.TournamentID != in.TournamentID:
			return apperr.Validation("match %s belongs to another tournament", m.ID), nil
		}
	}
	if in.RegistrationID != nil {
		reg, err := s.registrations.GetByID(ctx, db, *in.RegistrationID)
		switch {
		case errors.Is(err, registrationdb.ErrNotFound):
			return apperr.Validation("registration %s not found", *in.RegistrationID), nil
		case err != nil:
			return nil, fmt.Errorf("failed to get registration: %w", err)
		case reg.TournamentID != in.TournamentID:
			return apperr.Validation("registration %s belongs to another tournament", reg.ID), nil
		}
	}
	return nil, nil
}

// SetUnderReview moves an OPEN dispute to UNDER_REVIEW. It keeps blocking.
func (s *Service) SetUnderReview(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error) {
	return s.transition(ctx, actor, "SetUnderReview", id, disputedb.Transition{
		From: []disputedomain.Status{disputedomain.StatusOpen},
		To:   disputedomain.StatusUnderReview,
	}, "")
}

// Resolve closes a dispute with an outcome. Settlement is not re-run; an
// admin verifies or rejects the result afterwards as the outcome requires.
func (s *Service) Resolve(ctx context.Context, actor authdomain.Principal, id uuid.UUID, outcome string) (*disputedb.Dispute, error) {
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return nil, apperr.Validation("outcome is required")
	}
	return s.transition(ctx, actor, "Resolve", id, disputedb.Transition{
		From:       disputedomain.BlockingStatuses,
		To:         disputedomain.StatusResolved,
		Resolution: &outcome,
	}, outcome)
}

// Dismiss closes a dispute without action.
func (s *Service) Dismiss(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*disputedb.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	return s.transition(ctx, actor, "Dismiss", id, disputedb.Transition{
		From:       disputedomain.BlockingStatuses,
		To:         disputedomain.StatusDismissed,
		Resolution: &reason,
	}, reason)
}

func (s *Service) transition(ctx context.Context, actor authdomain.Principal, op string, id uuid.UUID, tr disputedb.Transition, reason string) (*disputedb.Dispute, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	tr.ActorID = actor.ActorID()

	result, err := telemetry.Run(ctx, s.instruments(), op, id.String(), func(ctx context.Context) (results.OperationResult[*disputedb.Dispute, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*disputedb.Dispute, error], error) {
			current, denied, err := s.loadDispute(ctx, db, id)
			if err != nil {
				return infra[*disputedb.Dispute](err)
			}
			if denied != nil {
				return fail[*disputedb.Dispute](denied)
			}
			if !slices.Contains(tr.From, current.Status) {
				return fail[*disputedb.Dispute](apperr.InvalidState("dispute is %s", current.Status))
			}

			d, err := s.repo.ApplyTransition(ctx, db, id, tr)
			if errors.Is(err, disputedb.ErrStatusConflict) {
				return fail[*disputedb.Dispute](apperr.InvalidState("dispute status changed concurrently"))
			}
			if err != nil {
				return infra[*disputedb.Dispute](fmt.Errorf("failed to update dispute: %w", err))
			}
			action := "dispute." + strings.ToLower(string(d.Status))
			if err := s.audit(ctx, db, d, action, string(current.Status), actor.ActorID(), reason); err != nil {
				return infra[*disputedb.Dispute](fmt.Errorf("failed to audit dispute: %w", err))
			}
			return results.SuccessResult[*disputedb.Dispute, error](d), nil
		})
	})
	d, err := telemetry.Unwrap(result, err)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		s.publish(ctx, disputeEvent(events.DisputeClosed, d))
	}
	return d, nil
}

// GetDispute is visible to whoever raised it, the tournament's organizer
// and admins.
func (s *Service) GetDispute(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "GetDispute", id.String(), func(ctx context.Context) (results.OperationResult[*disputedb.Dispute, error], error) {
		d, denied, err := s.loadDispute(ctx, s.idb(), id)
		if err != nil {
			return infra[*disputedb.Dispute](err)
		}
		if denied != nil {
			return fail[*disputedb.Dispute](denied)
		}
		if actor.Owns(d.RaisedBy) {
			return results.SuccessResult[*disputedb.Dispute, error](d), nil
		}
		t, denied, err := s.loadTournament(ctx, s.idb(), d.TournamentID, false)
		if err != nil {
			return infra[*disputedb.Dispute](err)
		}
		if denied != nil {
			return fail[*disputedb.Dispute](denied)
		}
		if !actor.Owns(t.OrganizerID) {
			return fail[*disputedb.Dispute](apperr.Forbidden("not a party to this dispute"))
		}
		return results.SuccessResult[*disputedb.Dispute, error](d), nil
	})
	return telemetry.Unwrap(result, err)
}

// ListDisputes returns a tournament's disputes, newest first. Organizer
// or admin only.
func (s *Service) ListDisputes(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *disputedomain.Status) ([]disputedb.Dispute, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ListDisputes", tournamentID.String(), func(ctx context.Context) (results.OperationResult[[]disputedb.Dispute, error], error) {
		t, denied, err := s.loadTournament(ctx, s.idb(), tournamentID, false)
		if err != nil {
			return infra[[]disputedb.Dispute](err)
		}
		if denied != nil {
			return fail[[]disputedb.Dispute](denied)
		}
		if !actor.Owns(t.OrganizerID) {
			return fail[[]disputedb.Dispute](apperr.Forbidden("tournament is organized by someone else"))
		}
		list, err := s.repo.List(ctx, s.idb(), disputedb.ListFilter{TournamentID: tournamentID, Status: status})
		if err != nil {
			return infra[[]disputedb.Dispute](fmt.Errorf("failed to list disputes: %w", err))
		}
		return results.SuccessResult[[]disputedb.Dispute, error](list), nil
	})
	return telemetry.Unwrap(result, err)
}
