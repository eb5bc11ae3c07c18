package tournamentservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	dueCloseReason = "start time reached"
	sweepPage      = 200
)

// transitionRule describes one guarded lifecycle step.
type transitionRule struct {
	op        string
	action    string
	from      []tournamentdomain.Status
	to        tournamentdomain.Status
	adminOnly bool
	reason    string
	// check runs against the locked row before the update.
	check func(t *tournamentdb.Tournament) *apperr.Error
}

func newTournament(actor authdomain.Principal, terms tournamentdomain.Terms) *tournamentdb.Tournament {
	return &tournamentdb.Tournament{
		ID:           uuid.New(),
		OrganizerID:  actor.ID,
		Name:         strings.TrimSpace(terms.Name),
		Game:         strings.TrimSpace(terms.Game),
		Capacity:     terms.Capacity,
		EntryFee:     terms.EntryFee,
		Currency:     strings.ToUpper(terms.Currency),
		PrizePool:    terms.PrizePool,
		PrizePerKill: terms.PrizePerKill,
		PrizeTable:   terms.PrizeTable,
		StartsAt:     terms.StartsAt.UTC(),
		Status:       tournamentdomain.StatusDraft,
	}
}

// CreateTournament stores a DRAFT tournament owned by the calling organizer.
func (s *Service) CreateTournament(ctx context.Context, actor authdomain.Principal, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "CreateTournament", actor.ID.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		if !actor.HasRole(authdomain.RoleOrganizer) {
			return fail[*tournamentdb.Tournament](apperr.Forbidden("only organizers can create tournaments"))
		}
		if err := terms.Validate(s.now()); err != nil {
			return fail[*tournamentdb.Tournament](apperr.Validation("%s", err.Error()))
		}

		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*tournamentdb.Tournament, error], error) {
			t := newTournament(actor, terms)
			if err := s.repo.Create(ctx, db, t); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to create tournament: %w", err)
			}
			if err := s.audit(ctx, db, t.ID, "tournament.created", "", t.Status, actor.ActorID(), ""); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to audit creation: %w", err)
			}
			return results.SuccessResult[*tournamentdb.Tournament, error](t), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

// UpdateDraft rewrites the terms of a DRAFT tournament.
func (s *Service) UpdateDraft(ctx context.Context, actor authdomain.Principal, id uuid.UUID, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "UpdateDraft", id.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*tournamentdb.Tournament, error], error) {
			t, denied, err := s.loadOwned(ctx, db, actor, id, true)
			if err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, err
			}
			if denied != nil {
				return fail[*tournamentdb.Tournament](denied)
			}
			if t.Status != tournamentdomain.StatusDraft {
				return fail[*tournamentdb.Tournament](apperr.InvalidState("tournament is %s, only drafts can be edited", t.Status))
			}
			if err := terms.Validate(s.now()); err != nil {
				return fail[*tournamentdb.Tournament](apperr.Validation("%s", err.Error()))
			}

			updated := newTournament(actor, terms)
			updated.ID = t.ID
			updated.OrganizerID = t.OrganizerID
			if err := s.repo.UpdateTerms(ctx, db, updated); err != nil {
				if errors.Is(err, tournamentdb.ErrStatusConflict) {
					return fail[*tournamentdb.Tournament](apperr.InvalidState("tournament is no longer a draft"))
				}
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to update terms: %w", err)
			}
			if err := s.audit(ctx, db, t.ID, "tournament.updated", t.Status, t.Status, actor.ActorID(), ""); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to audit update: %w", err)
			}
			fresh, err := s.repo.GetByID(ctx, db, t.ID)
			if err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to reload tournament: %w", err)
			}
			return results.SuccessResult[*tournamentdb.Tournament, error](fresh), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

// SubmitForApproval hands a draft to the admins.
func (s *Service) SubmitForApproval(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:     "SubmitForApproval",
		action: "tournament.submitted",
		from:   []tournamentdomain.Status{tournamentdomain.StatusDraft},
		to:     tournamentdomain.StatusPendingApproval,
	})
}

func (s *Service) Approve(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:        "Approve",
		action:    "tournament.approved",
		from:      []tournamentdomain.Status{tournamentdomain.StatusPendingApproval},
		to:        tournamentdomain.StatusApproved,
		adminOnly: true,
	})
}

// Reject sends a pending tournament back to DRAFT with the admin's reason.
func (s *Service) Reject(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentdb.Tournament, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	return s.transition(ctx, actor, id, transitionRule{
		op:        "Reject",
		action:    "tournament.rejected",
		from:      []tournamentdomain.Status{tournamentdomain.StatusPendingApproval},
		to:        tournamentdomain.StatusDraft,
		adminOnly: true,
		reason:    reason,
	})
}

// OpenRegistration starts accepting joins. Capacity is frozen from here on.
func (s *Service) OpenRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:     "OpenRegistration",
		action: "tournament.registration_opened",
		from:   []tournamentdomain.Status{tournamentdomain.StatusApproved},
		to:     tournamentdomain.StatusRegistrationOpen,
		check: func(t *tournamentdb.Tournament) *apperr.Error {
			if !t.StartsAt.After(s.now()) {
				return apperr.InvalidState("tournament start time has already passed")
			}
			return nil
		},
	})
}

// CloseRegistration is the organizer's manual close, allowed only before the
// start time. Full tournaments close themselves on the last confirmation.
func (s *Service) CloseRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:     "CloseRegistration",
		action: "tournament.registration_closed",
		from:   []tournamentdomain.Status{tournamentdomain.StatusRegistrationOpen},
		to:     tournamentdomain.StatusRegistrationClosed,
		reason: "closed by organizer",
		check: func(t *tournamentdb.Tournament) *apperr.Error {
			if !s.now().Before(t.StartsAt) {
				return apperr.InvalidState("registration can only be closed manually before the start time")
			}
			return nil
		},
	})
}

// StartMatch takes a closed tournament LIVE.
func (s *Service) StartMatch(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:     "StartMatch",
		action: "tournament.started",
		from:   []tournamentdomain.Status{tournamentdomain.StatusRegistrationClosed},
		to:     tournamentdomain.StatusLive,
	})
}

func (s *Service) Complete(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return s.transition(ctx, actor, id, transitionRule{
		op:     "Complete",
		action: "tournament.completed",
		from:   []tournamentdomain.Status{tournamentdomain.StatusLive},
		to:     tournamentdomain.StatusCompleted,
	})
}

func (s *Service) transition(ctx context.Context, actor authdomain.Principal, id uuid.UUID, rule transitionRule) (*tournamentdb.Tournament, error) {
	var from tournamentdomain.Status
	result, err := telemetry.Run(ctx, s.instruments(), rule.op, id.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*tournamentdb.Tournament, error], error) {
			t, denied, err := s.loadOwned(ctx, db, actor, id, true)
			if err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, err
			}
			if denied != nil {
				return fail[*tournamentdb.Tournament](denied)
			}
			if rule.adminOnly && !actor.IsAdmin() {
				return fail[*tournamentdb.Tournament](apperr.Forbidden("admin role required"))
			}
			if !t.Status.CanTransitionTo(rule.to) || !containsStatus(rule.from, t.Status) {
				return fail[*tournamentdb.Tournament](apperr.InvalidState("tournament is %s, cannot move to %s", t.Status, rule.to))
			}
			if rule.check != nil {
				if e := rule.check(t); e != nil {
					return fail[*tournamentdb.Tournament](e)
				}
			}

			tr := tournamentdb.Transition{From: rule.from, To: rule.to}
			if rule.to == tournamentdomain.StatusDraft {
				tr.RejectionReason = &rule.reason
			}
			updated, err := s.repo.ApplyTransition(ctx, db, t.ID, tr)
			if err != nil {
				if errors.Is(err, tournamentdb.ErrStatusConflict) {
					return fail[*tournamentdb.Tournament](apperr.InvalidState("tournament changed state concurrently"))
				}
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to transition tournament: %w", err)
			}
			if err := s.audit(ctx, db, t.ID, rule.action, t.Status, updated.Status, actor.ActorID(), rule.reason); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to audit transition: %w", err)
			}
			from = t.Status
			return results.SuccessResult[*tournamentdb.Tournament, error](updated), nil
		})
	})
	t, err := telemetry.Unwrap(result, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, statusChanged(t, from, actor.ActorID(), rule.reason, s.now()))
	return t, nil
}

// CloseDueRegistrations closes every open tournament whose start time has
// passed. It is run by the periodic sweep.
func (s *Service) CloseDueRegistrations(ctx context.Context) (int, error) {
	now := s.now()
	open := tournamentdomain.StatusRegistrationOpen
	var due []uuid.UUID
	done := false
	for offset := 0; !done; offset += sweepPage {
		page, err := s.repo.List(ctx, s.idb(), tournamentdb.ListFilter{Status: &open, Limit: sweepPage, Offset: offset})
		if err != nil {
			return 0, fmt.Errorf("failed to list open tournaments: %w", err)
		}
		done = len(page) < sweepPage
		for _, t := range page {
			// List is ordered by start time.
			if t.StartsAt.After(now) {
				done = true
				break
			}
			due = append(due, t.ID)
		}
	}

	closed := 0
	for _, id := range due {
		t, err := s.closeDue(ctx, id)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to close due registration",
				attr.UUID("tournament_id", id),
				attr.Error(err),
			)
			continue
		}
		if t == nil {
			continue
		}
		closed++
		s.publish(ctx, statusChanged(t, open, nil, dueCloseReason, now))
	}
	return closed, nil
}

func (s *Service) closeDue(ctx context.Context, id uuid.UUID) (*tournamentdb.Tournament, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "CloseDueRegistration", id.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*tournamentdb.Tournament, error], error) {
			t, err := s.repo.ApplyTransition(ctx, db, id, tournamentdb.Transition{
				From: []tournamentdomain.Status{tournamentdomain.StatusRegistrationOpen},
				To:   tournamentdomain.StatusRegistrationClosed,
			})
			if err != nil {
				if errors.Is(err, tournamentdb.ErrStatusConflict) {
					// Closed by the organizer or the last confirmation first.
					return results.SuccessResult[*tournamentdb.Tournament, error](nil), nil
				}
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to close registration: %w", err)
			}
			if err := s.audit(ctx, db, id, "tournament.registration_closed", tournamentdomain.StatusRegistrationOpen, t.Status, nil, dueCloseReason); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to audit close: %w", err)
			}
			return results.SuccessResult[*tournamentdb.Tournament, error](t), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

func containsStatus(set []tournamentdomain.Status, s tournamentdomain.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
