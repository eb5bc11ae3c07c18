package settlementservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const payoutNarration = "tournament prize"

// BatchApproval reports a batch approval. Payouts whose match is under
// dispute stay PENDING and are listed in Blocked.
type BatchApproval struct {
	Approved []settlementdb.Payout
	Blocked  []uuid.UUID
}

// ApprovePayout releases a PENDING payout for processing and schedules it.
func (s *Service) ApprovePayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "ApprovePayout", payoutID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.Payout, error], error) {
		p, denied, err := s.loadPayout(ctx, s.idb(), payoutID)
		if err != nil {
			return infra[*settlementdb.Payout](err)
		}
		if denied != nil {
			return fail[*settlementdb.Payout](denied)
		}
		if denied, err := s.blocked(ctx, p.TournamentID, &p.MatchID); err != nil {
			return infra[*settlementdb.Payout](err)
		} else if denied != nil {
			return fail[*settlementdb.Payout](denied)
		}

		out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.Payout, error], error) {
			return s.approveLogic(ctx, db, actor, p)
		})
		if err != nil || out.IsFailure() {
			return out, err
		}
		approved := *out.Success
		s.publish(ctx, payoutEvent(events.PayoutApproved, approved))
		s.schedulePayouts(ctx, []settlementdb.Payout{*approved})
		return out, nil
	})
	return telemetry.Unwrap(result, err)
}

// approveLogic re-checks disputes under the tournament lock, which
// OpenDispute also takes.
func (s *Service) approveLogic(ctx context.Context, db bun.IDB, actor authdomain.Principal, p *settlementdb.Payout) (results.OperationResult[*settlementdb.Payout, error], error) {
	if _, denied, err := s.loadTournament(ctx, db, p.TournamentID, true); err != nil {
		return infra[*settlementdb.Payout](err)
	} else if denied != nil {
		return fail[*settlementdb.Payout](denied)
	}
	if denied, err := s.blocked(ctx, p.TournamentID, &p.MatchID); err != nil {
		return infra[*settlementdb.Payout](err)
	} else if denied != nil {
		return fail[*settlementdb.Payout](denied)
	}
	return s.approveOne(ctx, db, actor, p)
}

func (s *Service) approveOne(ctx context.Context, db bun.IDB, actor authdomain.Principal, p *settlementdb.Payout) (results.OperationResult[*settlementdb.Payout, error], error) {
	approved, err := s.repo.ApprovePayout(ctx, db, p.ID, actor.ActorID())
	if err != nil {
		if errors.Is(err, settlementdb.ErrStatusConflict) {
			return fail[*settlementdb.Payout](apperr.InvalidState("payout is %s, only PENDING payouts can be approved", p.Status))
		}
		return infra[*settlementdb.Payout](fmt.Errorf("failed to approve payout: %w", err))
	}
	if err := s.audit(ctx, db, ledgerservice.EntityPayout, p.ID, "payout.approved",
		string(settlementdomain.PayoutStatusPending), string(approved.Status), actor.ActorID(), ""); err != nil {
		return infra[*settlementdb.Payout](fmt.Errorf("failed to audit payout: %w", err))
	}
	return results.SuccessResult[*settlementdb.Payout, error](approved), nil
}

// BatchApprovePayouts approves every PENDING payout of the tournament. A
// dispute on the tournament as a whole refuses the batch; a dispute on one
// match holds back only that match's payouts.
func (s *Service) BatchApprovePayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*BatchApproval, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "BatchApprovePayouts", tournamentID.String(), func(ctx context.Context) (results.OperationResult[*BatchApproval, error], error) {
		out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*BatchApproval, error], error) {
			if _, denied, err := s.loadTournament(ctx, db, tournamentID, true); err != nil {
				return infra[*BatchApproval](err)
			} else if denied != nil {
				return fail[*BatchApproval](denied)
			}
			if denied, err := s.blocked(ctx, tournamentID, nil); err != nil {
				return infra[*BatchApproval](err)
			} else if denied != nil {
				return fail[*BatchApproval](denied)
			}

			pending := settlementdomain.PayoutStatusPending
			list, err := s.repo.ListPayouts(ctx, db, tournamentID, &pending)
			if err != nil {
				return infra[*BatchApproval](fmt.Errorf("failed to list payouts: %w", err))
			}

			batch := &BatchApproval{Approved: []settlementdb.Payout{}, Blocked: []uuid.UUID{}}
			matchBlocked := make(map[uuid.UUID]bool)
			for i := range list {
				p := &list[i]
				held, seen := matchBlocked[p.MatchID]
				if !seen {
					denied, err := s.blocked(ctx, tournamentID, &p.MatchID)
					if err != nil {
						return infra[*BatchApproval](err)
					}
					held = denied != nil
					matchBlocked[p.MatchID] = held
				}
				if held {
					batch.Blocked = append(batch.Blocked, p.ID)
					continue
				}
				res, err := s.approveOne(ctx, db, actor, p)
				if err != nil {
					return infra[*BatchApproval](err)
				}
				// Approved by a concurrent call; leave it to that call.
				if res.IsFailure() {
					continue
				}
				batch.Approved = append(batch.Approved, **res.Success)
			}
			return results.SuccessResult[*BatchApproval, error](batch), nil
		})
		if err != nil || out.IsFailure() {
			return out, err
		}

		batch := *out.Success
		evts := make([]eventbus.Event, 0, len(batch.Approved))
		for i := range batch.Approved {
			evts = append(evts, payoutEvent(events.PayoutApproved, &batch.Approved[i]))
		}
		s.publish(ctx, evts...)
		s.schedulePayouts(ctx, batch.Approved)
		return out, nil
	})
	return telemetry.Unwrap(result, err)
}

// ProcessPayout claims an APPROVED or FAILED payout and transfers the net
// amount. A gateway failure leaves the payout FAILED with the reason and is
// not an error; the returned payout carries the outcome. Workers and admins
// may call it concurrently: only one claim succeeds.
func (s *Service) ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ProcessPayout", payoutID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.Payout, error], error) {
		return s.processLogic(ctx, payoutID)
	})
	return telemetry.Unwrap(result, err)
}

// RetryPayout re-runs a FAILED payout.
func (s *Service) RetryPayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "RetryPayout", payoutID.String(), func(ctx context.Context) (results.OperationResult[*settlementdb.Payout, error], error) {
		p, denied, err := s.loadPayout(ctx, s.idb(), payoutID)
		if err != nil {
			return infra[*settlementdb.Payout](err)
		}
		if denied != nil {
			return fail[*settlementdb.Payout](denied)
		}
		if p.Status != settlementdomain.PayoutStatusFailed {
			return fail[*settlementdb.Payout](apperr.InvalidState("payout is %s, only FAILED payouts can be retried", p.Status))
		}
		return s.processLogic(ctx, payoutID)
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) processLogic(ctx context.Context, payoutID uuid.UUID) (results.OperationResult[*settlementdb.Payout, error], error) {
	p, denied, err := s.loadPayout(ctx, s.idb(), payoutID)
	if err != nil {
		return infra[*settlementdb.Payout](err)
	}
	if denied != nil {
		return fail[*settlementdb.Payout](denied)
	}

	// The claim and the dispute check share the tournament lock, so a
	// dispute opened concurrently either blocks the claim or comes after it.
	var t *tournamentdb.Tournament
	claim, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.Payout, error], error) {
		locked, denied, err := s.loadTournament(ctx, db, p.TournamentID, true)
		if err != nil {
			return infra[*settlementdb.Payout](err)
		}
		if denied != nil {
			return fail[*settlementdb.Payout](denied)
		}
		t = locked
		if denied, err := s.blocked(ctx, p.TournamentID, &p.MatchID); err != nil {
			return infra[*settlementdb.Payout](err)
		} else if denied != nil {
			return fail[*settlementdb.Payout](denied)
		}
		claimed, err := s.repo.ClaimPayout(ctx, db, p.ID, s.staleBefore())
		if err != nil {
			if errors.Is(err, settlementdb.ErrNotClaimable) {
				return fail[*settlementdb.Payout](apperr.InvalidState("payout is %s and cannot be processed", p.Status))
			}
			return infra[*settlementdb.Payout](fmt.Errorf("failed to claim payout: %w", err))
		}
		return results.SuccessResult[*settlementdb.Payout, error](claimed), nil
	})
	if err != nil || claim.IsFailure() {
		return claim, err
	}
	claimed := *claim.Success

	receipt, transferErr := s.gateway.Transfer(ctx, paymentgateway.TransferRequest{
		IdempotencyKey: claimed.ID.String(),
		RecipientID:    claimed.RecipientID.String(),
		Amount:         claimed.NetAmount,
		Currency:       t.Currency,
		Narration:      payoutNarration,
	})
	if transferErr != nil {
		return s.failPayout(ctx, claimed, transferErr)
	}

	out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.Payout, error], error) {
		completed, err := s.repo.CompletePayout(ctx, db, claimed.ID, receipt.ID)
		if err != nil {
			return infra[*settlementdb.Payout](fmt.Errorf("failed to complete payout: %w", err))
		}
		if _, err := s.book.DebitPayout(ctx, db, completed.TournamentID, completed.ID, completed.GrossAmount); err != nil {
			return infra[*settlementdb.Payout](fmt.Errorf("failed to debit escrow: %w", err))
		}
		if err := s.audit(ctx, db, ledgerservice.EntityPayout, completed.ID, "payout.completed",
			string(settlementdomain.PayoutStatusProcessing), string(completed.Status), nil, receipt.ID); err != nil {
			return infra[*settlementdb.Payout](fmt.Errorf("failed to audit payout: %w", err))
		}
		return results.SuccessResult[*settlementdb.Payout, error](completed), nil
	})
	if err != nil {
		// The transfer went out; the idempotency key makes a later retry safe.
		s.logger.ErrorContext(ctx, "Transfer succeeded but payout could not be recorded",
			attr.ExtractCorrelationID(ctx),
			attr.UUID("payout_id", claimed.ID),
			attr.String("transfer_id", receipt.ID),
			attr.Error(err),
		)
		return out, err
	}

	completed := *out.Success
	s.metrics.RecordEscrowReleased(ctx, "payout", completed.GrossAmount)
	s.publish(ctx, payoutEvent(events.PayoutCompleted, completed))
	return out, nil
}

func (s *Service) failPayout(ctx context.Context, claimed *settlementdb.Payout, cause error) (results.OperationResult[*settlementdb.Payout, error], error) {
	reason := cause.Error()
	s.logger.WarnContext(ctx, "Payout transfer failed",
		attr.ExtractCorrelationID(ctx),
		attr.UUID("payout_id", claimed.ID),
		attr.Int("attempts", claimed.Attempts),
		attr.Error(cause),
	)

	out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*settlementdb.Payout, error], error) {
		failed, err := s.repo.FailPayout(ctx, db, claimed.ID, reason)
		if err != nil {
			return infra[*settlementdb.Payout](fmt.Errorf("failed to record payout failure: %w", err))
		}
		if err := s.audit(ctx, db, ledgerservice.EntityPayout, failed.ID, "payout.failed",
			string(settlementdomain.PayoutStatusProcessing), string(failed.Status), nil, reason); err != nil {
			return infra[*settlementdb.Payout](fmt.Errorf("failed to audit payout: %w", err))
		}
		return results.SuccessResult[*settlementdb.Payout, error](failed), nil
	})
	if err != nil {
		return out, err
	}
	s.publish(ctx, payoutEvent(events.PayoutFailed, *out.Success))
	return out, nil
}

// ListPayouts returns the tournament's payouts, optionally by status. The
// organizer and admins may read them.
func (s *Service) ListPayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]settlementdb.Payout, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ListPayouts", tournamentID.String(), func(ctx context.Context) (results.OperationResult[[]settlementdb.Payout, error], error) {
		t, denied, err := s.loadTournament(ctx, s.idb(), tournamentID, false)
		if err != nil {
			return infra[[]settlementdb.Payout](err)
		}
		if denied != nil {
			return fail[[]settlementdb.Payout](denied)
		}
		if !actor.Owns(t.OrganizerID) {
			return fail[[]settlementdb.Payout](apperr.Forbidden("tournament is organized by someone else"))
		}
		list, err := s.repo.ListPayouts(ctx, s.idb(), tournamentID, status)
		if err != nil {
			return infra[[]settlementdb.Payout](fmt.Errorf("failed to list payouts: %w", err))
		}
		return results.SuccessResult[[]settlementdb.Payout, error](list), nil
	})
	return telemetry.Unwrap(result, err)
}
