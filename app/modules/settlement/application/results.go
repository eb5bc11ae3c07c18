package settlementservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResultInput is the organizer's report of a match.
type ResultInput struct {
	Entries      []settlementdomain.Entry
	EvidenceRefs []string
}

// Verification is a verified result and the payouts it created.
type Verification struct {
	Result  *settlementdb.MatchResult
	Payouts []settlementdb.Payout
}

// SubmitResult records the organizer's result for a match. Resubmitting
// overwrites a SUBMITTED or REJECTED result; a VERIFIED one is final.
func (s *Service) SubmitResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, in ResultInput) (*settlementdb.MatchResult, error) {
	if err := settlementdomain.ValidateEntries(in.Entries); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	winner, ok := settlementdomain.Winner(in.Entries)
	if !ok {
		return nil, apperr.Validation("an entry with placement 1 is required")
	}
	evidence := make([]string, 0, len(in.EvidenceRefs))
	for _, ref := range in.EvidenceRefs {
		if ref = strings.TrimSpace(ref); ref != "" {
			evidence = append(evidence, ref)
		}
	}

	result, err := telemetry.Run(ctx, s.instruments(), "SubmitResult", matchID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.MatchResult, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.MatchResult, error], error) {
			m, denied, err := s.loadMatch(ctx, db, matchID)
			if err != nil {
				return infra[*settlementdb.MatchResult](err)
			}
			if denied != nil {
				return fail[*settlementdb.MatchResult](denied)
			}
			t, denied, err := s.loadTournament(ctx, db, m.TournamentID, false)
			if err != nil {
				return infra[*settlementdb.MatchResult](err)
			}
			if denied != nil {
				return fail[*settlementdb.MatchResult](denied)
			}
			if !actor.Owns(t.OrganizerID) {
				return fail[*settlementdb.MatchResult](apperr.Forbidden("tournament is organized by someone else"))
			}
			if !t.Status.AllowsMatches() {
				return fail[*settlementdb.MatchResult](apperr.InvalidState("tournament is %s, results are closed", t.Status))
			}
			if _, denied, err := s.confirmedEntrants(ctx, db, t.ID, in.Entries); err != nil {
				return infra[*settlementdb.MatchResult](err)
			} else if denied != nil {
				return fail[*settlementdb.MatchResult](denied)
			}
			if _, _, denied := s.price(t, in.Entries); denied != nil {
				return fail[*settlementdb.MatchResult](denied)
			}

			var from string
			if existing, err := s.repo.GetResultByMatchForUpdate(ctx, db, m.ID); err == nil {
				if !existing.Status.IsEditable() {
					return fail[*settlementdb.MatchResult](apperr.InvalidState("result is %s and can no longer change", existing.Status))
				}
				from = string(existing.Status)
			} else if !errors.Is(err, settlementdb.ErrNotFound) {
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to get result: %w", err))
			}

			mr := &settlementdb.MatchResult{
				TournamentID: t.ID,
				MatchID:      m.ID,
				WinnerID:     winner.RegistrationID,
				Entries:      in.Entries,
				Kills:        settlementdomain.TotalKills(in.Entries),
				Placement:    winner.Placement,
				EvidenceRefs: evidence,
				Status:       settlementdomain.ResultStatusSubmitted,
				SubmittedBy:  actor.ID,
			}
			if err := s.repo.UpsertResult(ctx, db, mr); err != nil {
				if errors.Is(err, settlementdb.ErrStatusConflict) {
					return fail[*settlementdb.MatchResult](apperr.InvalidState("result was verified concurrently"))
				}
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to save result: %w", err))
			}
			if err := s.audit(ctx, db, ledgerservice.EntityMatchResult, mr.ID, "result.submitted", from, string(mr.Status), actor.ActorID(), ""); err != nil {
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to audit result: %w", err))
			}
			return results.SuccessResult[*settlementdb.MatchResult, error](mr), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

// confirmedEntrants loads every entry's registration and requires it to be
// a CONFIRMED registration of the tournament.
func (s *Service) confirmedEntrants(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, entries []settlementdomain.Entry) (map[uuid.UUID]*registrationdb.Registration, *apperr.Error, error) {
	out := make(map[uuid.UUID]*registrationdb.Registration, len(entries))
	for _, e := range entries {
		reg, err := s.registrations.GetByID(ctx, db, e.RegistrationID)
		if err != nil {
			if errors.Is(err, registrationdb.ErrNotFound) {
				return nil, apperr.Validation("registration %s not found", e.RegistrationID), nil
			}
			return nil, nil, fmt.Errorf("failed to get registration: %w", err)
		}
		if reg.TournamentID != tournamentID {
			return nil, apperr.Validation("registration %s belongs to another tournament", reg.ID), nil
		}
		if reg.Status != registrationdomain.StatusConfirmed {
			return nil, apperr.Validation("registration %s is %s, not CONFIRMED", reg.ID, reg.Status), nil
		}
		out[reg.ID] = reg
	}
	return out, nil, nil
}

// price computes the awards a result earns under the tournament's terms.
func (s *Service) price(t *tournamentdb.Tournament, entries []settlementdomain.Entry) ([]settlementdomain.Award, int64, *apperr.Error) {
	awards, err := settlementdomain.ComputeAwards(entries, settlementdomain.PrizeTerms{
		PrizePool:    t.PrizePool,
		PrizeTable:   t.PrizeTable,
		PrizePerKill: t.PrizePerKill,
	}, s.cfg.FeeRateBps)
	if err != nil {
		return nil, 0, apperr.Validation("%s", err.Error())
	}
	total, err := settlementdomain.TotalGross(awards)
	if err != nil {
		return nil, 0, apperr.Validation("total payout: %s", err.Error())
	}
	return awards, total, nil
}

// VerifyResult prices the match result and creates a PENDING payout for
// every entry that earned something. Either the result is verified and all
// payouts exist, or nothing changes.
func (s *Service) VerifyResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID) (*Verification, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "VerifyResult", matchID.String(), func(ctx context.Context) (results.OperationResult[*Verification, error], error) {
		m, denied, err := s.loadMatch(ctx, s.idb(), matchID)
		if err != nil {
			return infra[*Verification](err)
		}
		if denied != nil {
			return fail[*Verification](denied)
		}
		if denied, err := s.blocked(ctx, m.TournamentID, &m.ID); err != nil {
			return infra[*Verification](err)
		} else if denied != nil {
			return fail[*Verification](denied)
		}

		out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*Verification, error], error) {
			return s.verifyLogic(ctx, db, actor, m)
		})
		if err != nil || out.IsFailure() {
			return out, err
		}

		v := *out.Success
		ids := make([]uuid.UUID, len(v.Payouts))
		for i, p := range v.Payouts {
			ids[i] = p.ID
		}
		s.publish(ctx, resultEvent(events.ResultVerified, v.Result, ids))
		return out, nil
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) verifyLogic(ctx context.Context, db bun.IDB, actor authdomain.Principal, m *settlementdb.Match) (results.OperationResult[*Verification, error], error) {
	t, denied, err := s.loadTournament(ctx, db, m.TournamentID, true)
	if err != nil {
		return infra[*Verification](err)
	}
	if denied != nil {
		return fail[*Verification](denied)
	}
	if !t.Status.AllowsMatches() {
		return fail[*Verification](apperr.InvalidState("tournament is %s, results are closed", t.Status))
	}
	// Re-checked under the tournament lock, which OpenDispute also takes.
	if denied, err := s.blocked(ctx, t.ID, &m.ID); err != nil {
		return infra[*Verification](err)
	} else if denied != nil {
		return fail[*Verification](denied)
	}

	mr, err := s.repo.GetResultByMatchForUpdate(ctx, db, m.ID)
	if err != nil {
		if errors.Is(err, settlementdb.ErrNotFound) {
			return fail[*Verification](apperr.NotFound("match %s has no result", m.ID))
		}
		return infra[*Verification](fmt.Errorf("failed to get result: %w", err))
	}
	if mr.Status != settlementdomain.ResultStatusSubmitted {
		return fail[*Verification](apperr.InvalidState("result is %s, only SUBMITTED results can be verified", mr.Status))
	}

	entrants, denied, err := s.confirmedEntrants(ctx, db, t.ID, mr.Entries)
	if err != nil {
		return infra[*Verification](err)
	}
	if denied != nil {
		return fail[*Verification](denied)
	}

	awards, total, denied := s.price(t, mr.Entries)
	if denied != nil {
		return fail[*Verification](denied)
	}

	// Nothing may be written before this check: a failure result commits.
	committed, err := s.repo.SumCommittedGross(ctx, db, t.ID)
	if err != nil {
		return infra[*Verification](fmt.Errorf("failed to sum committed payouts: %w", err))
	}
	if needed, ok := tournamentdomain.AddAmounts(committed, total); !ok || needed > t.EscrowedTotal() {
		return fail[*Verification](apperr.Newf(apperr.CodeEscrowInsufficient,
			"payouts of %d on top of %d already committed exceed escrow of %d", total, committed, t.EscrowedTotal()))
	}

	verified, err := s.repo.MarkResultVerified(ctx, db, mr.ID, actor.ID)
	if err != nil {
		if errors.Is(err, settlementdb.ErrStatusConflict) {
			return fail[*Verification](apperr.InvalidState("result changed concurrently"))
		}
		return infra[*Verification](fmt.Errorf("failed to verify result: %w", err))
	}

	payouts := make([]settlementdb.Payout, 0, len(awards))
	for _, a := range awards {
		payouts = append(payouts, settlementdb.Payout{
			ID:             uuid.New(),
			TournamentID:   t.ID,
			MatchID:        m.ID,
			MatchResultID:  mr.ID,
			RegistrationID: a.RegistrationID,
			RecipientID:    entrants[a.RegistrationID].ParticipantID,
			GrossAmount:    a.Gross,
			PlatformFee:    a.Fee,
			NetAmount:      a.Net,
			Status:         settlementdomain.PayoutStatusPending,
		})
	}
	if len(payouts) > 0 {
		if err := s.repo.CreatePayouts(ctx, db, payouts); err != nil {
			return infra[*Verification](fmt.Errorf("failed to create payouts: %w", err))
		}
	}

	if err := s.audit(ctx, db, ledgerservice.EntityMatchResult, mr.ID, "result.verified",
		string(settlementdomain.ResultStatusSubmitted), string(verified.Status), actor.ActorID(),
		fmt.Sprintf("%d payouts, gross %d", len(payouts), total)); err != nil {
		return infra[*Verification](fmt.Errorf("failed to audit result: %w", err))
	}
	for _, p := range payouts {
		if err := s.audit(ctx, db, ledgerservice.EntityPayout, p.ID, "payout.created", "", string(p.Status), actor.ActorID(), ""); err != nil {
			return infra[*Verification](fmt.Errorf("failed to audit payout: %w", err))
		}
	}
	return results.SuccessResult[*Verification, error](&Verification{Result: verified, Payouts: payouts}), nil
}

// RejectResult sends a SUBMITTED result back to the organizer.
func (s *Service) RejectResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, reason string) (*settlementdb.MatchResult, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	result, err := telemetry.Run(ctx, s.instruments(), "RejectResult", matchID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.MatchResult, error], error) {
		out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.MatchResult, error], error) {
			mr, err := s.repo.GetResultByMatchForUpdate(ctx, db, matchID)
			if err != nil {
				if errors.Is(err, settlementdb.ErrNotFound) {
					return fail[*settlementdb.MatchResult](apperr.NotFound("match %s has no result", matchID))
				}
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to get result: %w", err))
			}
			if mr.Status != settlementdomain.ResultStatusSubmitted {
				return fail[*settlementdb.MatchResult](apperr.InvalidState("result is %s, only SUBMITTED results can be rejected", mr.Status))
			}
			rejected, err := s.repo.MarkResultRejected(ctx, db, mr.ID, actor.ID, reason)
			if err != nil {
				if errors.Is(err, settlementdb.ErrStatusConflict) {
					return fail[*settlementdb.MatchResult](apperr.InvalidState("result changed concurrently"))
				}
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to reject result: %w", err))
			}
			if err := s.audit(ctx, db, ledgerservice.EntityMatchResult, mr.ID, "result.rejected",
				string(mr.Status), string(rejected.Status), actor.ActorID(), reason); err != nil {
				return infra[*settlementdb.MatchResult](fmt.Errorf("failed to audit result: %w", err))
			}
			return results.SuccessResult[*settlementdb.MatchResult, error](rejected), nil
		})
		if err == nil && out.IsSuccess() {
			s.publish(ctx, resultEvent(events.ResultRejected, *out.Success, nil))
		}
		return out, err
	})
	return telemetry.Unwrap(result, err)
}

// GetResult returns the match's result.
func (s *Service) GetResult(ctx context.Context, matchID uuid.UUID) (*settlementdb.MatchResult, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "GetResult", matchID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.MatchResult, error], error) {
		mr, err := s.repo.GetResultByMatch(ctx, s.idb(), matchID)
		if err != nil {
			if errors.Is(err, settlementdb.ErrNotFound) {
				return fail[*settlementdb.MatchResult](apperr.NotFound("match %s has no result", matchID))
			}
			return infra[*settlementdb.MatchResult](fmt.Errorf("failed to get result: %w", err))
		}
		return results.SuccessResult[*settlementdb.MatchResult, error](mr), nil
	})
	return telemetry.Unwrap(result, err)
}
