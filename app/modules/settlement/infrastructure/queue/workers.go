package settlementqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// PayoutProcessor runs one payout transfer.
type PayoutProcessor interface {
	ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error)
}

// RefundProcessor runs one refund transfer.
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, refundID uuid.UUID) (*ledgerdb.Refund, error)
}

// ReservationSweeper releases slots held by unpaid registrations.
type ReservationSweeper interface {
	ExpireStaleReservations(ctx context.Context, now time.Time) (*registrationservice.ExpiryReport, error)
}

// RegistrationCloser closes registration once a tournament's start passes.
type RegistrationCloser interface {
	CloseDueRegistrations(ctx context.Context) (int, error)
}

// Scheduler enqueues transfer jobs.
type Scheduler interface {
	SchedulePayout(ctx context.Context, payoutID uuid.UUID) error
	ScheduleRefund(ctx context.Context, refundID uuid.UUID) error
}

// outcome maps a service error onto River's retry semantics. Business
// refusals will not change on retry and cancel the job. An open dispute
// snoozes it.
func outcome(err error, snooze time.Duration) error {
	if err == nil {
		return nil
	}
	e, ok := apperr.As(err)
	if !ok {
		return err
	}
	switch e.Code {
	case apperr.CodeDisputeBlocking:
		return river.JobSnooze(snooze)
	case apperr.CodeGatewayUnavailable, apperr.CodeInternal:
		return err
	default:
		return river.JobCancel(err)
	}
}

type PayoutWorker struct {
	river.WorkerDefaults[PayoutJob]
	payouts PayoutProcessor
	snooze  time.Duration
	logger  *slog.Logger
}

func NewPayoutWorker(payouts PayoutProcessor, snooze time.Duration, logger *slog.Logger) *PayoutWorker {
	return &PayoutWorker{payouts: payouts, snooze: snooze, logger: logger}
}

// Work returns an error for a FAILED transfer so River retries it with
// backoff. The claim accepts FAILED rows, so the retry re-runs the transfer
// under the same idempotency key.
func (w *PayoutWorker) Work(ctx context.Context, job *river.Job[PayoutJob]) error {
	p, err := w.payouts.ProcessPayout(ctx, job.Args.PayoutID)
	if err != nil {
		w.logger.WarnContext(ctx, "Payout job did not run",
			attr.UUID("payout_id", job.Args.PayoutID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return outcome(err, w.snooze)
	}
	if p.Status == settlementdomain.PayoutStatusFailed {
		reason := ""
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		return fmt.Errorf("payout %s transfer failed: %s", p.ID, reason)
	}
	return nil
}

type RefundWorker struct {
	river.WorkerDefaults[RefundJob]
	refunds RefundProcessor
	snooze  time.Duration
	logger  *slog.Logger
}

func NewRefundWorker(refunds RefundProcessor, snooze time.Duration, logger *slog.Logger) *RefundWorker {
	return &RefundWorker{refunds: refunds, snooze: snooze, logger: logger}
}

func (w *RefundWorker) Work(ctx context.Context, job *river.Job[RefundJob]) error {
	r, err := w.refunds.ProcessRefund(ctx, job.Args.RefundID)
	if err != nil {
		w.logger.WarnContext(ctx, "Refund job did not run",
			attr.UUID("refund_id", job.Args.RefundID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return outcome(err, w.snooze)
	}
	if r.Status == ledgerdb.RefundStatusFailed {
		reason := ""
		if r.FailureReason != nil {
			reason = *r.FailureReason
		}
		return fmt.Errorf("refund %s failed: %s", r.ID, reason)
	}
	return nil
}

type SweepWorker struct {
	river.WorkerDefaults[SweepJob]
	sweeper ReservationSweeper
	closer  RegistrationCloser
	clock   func() time.Time
	logger  *slog.Logger
}

func NewSweepWorker(sweeper ReservationSweeper, closer RegistrationCloser, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{sweeper: sweeper, closer: closer, clock: time.Now, logger: logger}
}

// Work expires reservations before closing due tournaments so slots freed
// by the expiry are never counted as taken by a closing tournament.
func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepJob]) error {
	report, err := w.sweeper.ExpireStaleReservations(ctx, w.clock())
	if err != nil {
		return fmt.Errorf("failed to expire reservations: %w", err)
	}
	closed, err := w.closer.CloseDueRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to close due registrations: %w", err)
	}
	if report.Expired > 0 || closed > 0 {
		w.logger.InfoContext(ctx, "Registration sweep finished",
			attr.Int("expired", report.Expired),
			attr.Int("tournaments_touched", report.Tournaments),
			attr.Int("closed", closed),
		)
	}
	return nil
}

type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileJob]
	payouts   settlementdb.Repository
	refunds   ledgerdb.Repository
	scheduler Scheduler
	batch     int
	lease     time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

func NewReconcileWorker(payouts settlementdb.Repository, refunds ledgerdb.Repository, scheduler Scheduler, batch int, lease time.Duration, logger *slog.Logger) *ReconcileWorker {
	return &ReconcileWorker{payouts: payouts, refunds: refunds, scheduler: scheduler, batch: batch, lease: lease, clock: time.Now, logger: logger}
}

// Work re-enqueues APPROVED payouts, PENDING refunds and rows whose worker
// died while they were PROCESSING, once the lease has run out. A reclaimed
// row re-runs its transfer under the same idempotency key. FAILED rows are
// left to their own job retries and then to an admin.
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileJob]) error {
	payoutIDs, err := w.payouts.ListPayoutIDsByStatus(ctx, nil, settlementdomain.PayoutStatusApproved, w.batch)
	if err != nil {
		return fmt.Errorf("failed to list approved payouts: %w", err)
	}
	refundIDs, err := w.refunds.ListRefundIDsByStatus(ctx, nil, ledgerdb.RefundStatusPending, w.batch)
	if err != nil {
		return fmt.Errorf("failed to list pending refunds: %w", err)
	}

	var stalePayouts, staleRefunds []uuid.UUID
	if w.lease > 0 {
		staleBefore := w.clock().UTC().Add(-w.lease)
		stalePayouts, err = w.payouts.ListStalePayoutIDs(ctx, nil, staleBefore, w.batch)
		if err != nil {
			return fmt.Errorf("failed to list stale payouts: %w", err)
		}
		staleRefunds, err = w.refunds.ListStaleRefundIDs(ctx, nil, staleBefore, w.batch)
		if err != nil {
			return fmt.Errorf("failed to list stale refunds: %w", err)
		}
	}

	var firstErr error
	for _, id := range append(payoutIDs, stalePayouts...) {
		if err := w.scheduler.SchedulePayout(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, id := range append(refundIDs, staleRefunds...) {
		if err := w.scheduler.ScheduleRefund(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(payoutIDs)+len(stalePayouts) > 0 || len(refundIDs)+len(staleRefunds) > 0 {
		w.logger.InfoContext(ctx, "Reconciled settlement jobs",
			attr.Int("payouts", len(payoutIDs)),
			attr.Int("refunds", len(refundIDs)),
			attr.Int("stale_payouts", len(stalePayouts)),
			attr.Int("stale_refunds", len(staleRefunds)),
		)
	}
	return firstErr
}
