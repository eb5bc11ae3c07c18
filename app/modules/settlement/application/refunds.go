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
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProcessRefund claims a PENDING or FAILED refund and returns the payment
// through the gateway. Like ProcessPayout, a gateway failure is recorded on
// the refund rather than returned.
func (s *Service) ProcessRefund(ctx context.Context, refundID uuid.UUID) (*ledgerdb.Refund, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "ProcessRefund", refundID.String(), func(ctx context.Context) (results.OperationResult[*ledgerdb.Refund, error], error) {
		return s.refundLogic(ctx, refundID)
	})
	return telemetry.Unwrap(result, err)
}

// RetryRefund re-runs a FAILED refund.
func (s *Service) RetryRefund(ctx context.Context, actor authdomain.Principal, refundID uuid.UUID) (*ledgerdb.Refund, error) {
	if denied := requireAdmin(actor); denied != nil {
		return nil, denied
	}
	result, err := telemetry.Run(ctx, s.instruments(), "RetryRefund", refundID.String(), func(ctx context.Context) (results.OperationResult[*ledgerdb.Refund, error], error) {
		r, denied, err := s.loadRefund(ctx, s.idb(), refundID)
		if err != nil {
			return infra[*ledgerdb.Refund](err)
		}
		if denied != nil {
			return fail[*ledgerdb.Refund](denied)
		}
		if r.Status != ledgerdb.RefundStatusFailed {
			return fail[*ledgerdb.Refund](apperr.InvalidState("refund is %s, only FAILED refunds can be retried", r.Status))
		}
		return s.refundLogic(ctx, refundID)
	})
	return telemetry.Unwrap(result, err)
}

func (s *Service) refundLogic(ctx context.Context, refundID uuid.UUID) (results.OperationResult[*ledgerdb.Refund, error], error) {
	r, denied, err := s.loadRefund(ctx, s.idb(), refundID)
	if err != nil {
		return infra[*ledgerdb.Refund](err)
	}
	if denied != nil {
		return fail[*ledgerdb.Refund](denied)
	}

	ledger := s.book.Ledger()
	claimed, err := ledger.ClaimRefund(ctx, s.idb(), r.ID, s.staleBefore())
	if err != nil {
		if errors.Is(err, ledgerdb.ErrNotClaimable) {
			return fail[*ledgerdb.Refund](apperr.InvalidState("refund is %s and cannot be processed", r.Status))
		}
		return infra[*ledgerdb.Refund](fmt.Errorf("failed to claim refund: %w", err))
	}

	receipt, refundErr := s.gateway.Refund(ctx, paymentgateway.RefundRequest{
		IdempotencyKey: claimed.ID.String(),
		PaymentID:      claimed.PaymentReference,
		Amount:         claimed.Amount,
		Reason:         claimed.Reason,
	})

	action, to, detail := "refund.completed", ledgerdb.RefundStatusCompleted, receipt.ID
	if refundErr != nil {
		action, to, detail = "refund.failed", ledgerdb.RefundStatusFailed, refundErr.Error()
		s.logger.WarnContext(ctx, "Refund failed at the gateway",
			attr.ExtractCorrelationID(ctx),
			attr.UUID("refund_id", claimed.ID),
			attr.Int("attempts", claimed.Attempts),
			attr.Error(refundErr),
		)
	}

	out, err := ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*ledgerdb.Refund, error], error) {
		if refundErr != nil {
			if err := ledger.FailRefund(ctx, db, claimed.ID, detail); err != nil {
				return infra[*ledgerdb.Refund](fmt.Errorf("failed to record refund failure: %w", err))
			}
		} else {
			if err := ledger.CompleteRefund(ctx, db, claimed.ID, receipt.ID); err != nil {
				return infra[*ledgerdb.Refund](fmt.Errorf("failed to complete refund: %w", err))
			}
			if err := s.book.DebitRefund(ctx, db, claimed); err != nil {
				return infra[*ledgerdb.Refund](fmt.Errorf("failed to debit escrow: %w", err))
			}
		}
		if err := s.audit(ctx, db, ledgerservice.EntityRefund, claimed.ID, action,
			string(ledgerdb.RefundStatusProcessing), string(to), nil, detail); err != nil {
			return infra[*ledgerdb.Refund](fmt.Errorf("failed to audit refund: %w", err))
		}
		fresh, err := ledger.GetRefund(ctx, db, claimed.ID)
		if err != nil {
			return infra[*ledgerdb.Refund](fmt.Errorf("failed to reload refund: %w", err))
		}
		return results.SuccessResult[*ledgerdb.Refund, error](fresh), nil
	})
	if err != nil {
		return out, err
	}

	done := *out.Success
	if done.Status == ledgerdb.RefundStatusCompleted {
		if done.FromEscrow {
			s.metrics.RecordEscrowReleased(ctx, "refund", done.Amount)
		}
		s.publish(ctx, refundEvent(events.RefundCompleted, done))
	}
	return out, nil
}

func refundEvent(topic string, r *ledgerdb.Refund) eventbus.Event {
	return eventbus.Event{Topic: topic, Payload: events.RefundPayload{
		RefundID:       r.ID,
		TournamentID:   r.TournamentID,
		RegistrationID: r.RegistrationID,
		Amount:         r.Amount,
		Status:         string(r.Status),
	}}
}
