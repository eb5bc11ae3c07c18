package settlementqueue

import (
	"context"
	"sync"
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/google/uuid"
)

type FakePayoutProcessor struct {
	ProcessPayoutFunc func(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error)
}

func (f *FakePayoutProcessor) ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	return f.ProcessPayoutFunc(ctx, payoutID)
}

type FakeRefundProcessor struct {
	ProcessRefundFunc func(ctx context.Context, refundID uuid.UUID) (*ledgerdb.Refund, error)
}

func (f *FakeRefundProcessor) ProcessRefund(ctx context.Context, refundID uuid.UUID) (*ledgerdb.Refund, error) {
	return f.ProcessRefundFunc(ctx, refundID)
}

type FakeSweeper struct {
	calls []string
	now   time.Time
}

func (f *FakeSweeper) ExpireStaleReservations(ctx context.Context, now time.Time) (*registrationservice.ExpiryReport, error) {
	f.calls = append(f.calls, "expire")
	f.now = now
	return &registrationservice.ExpiryReport{Tournaments: 1, Expired: 2}, nil
}

func (f *FakeSweeper) CloseDueRegistrations(ctx context.Context) (int, error) {
	f.calls = append(f.calls, "close")
	return 1, nil
}

type FakeScheduler struct {
	mu      sync.Mutex
	payouts []uuid.UUID
	refunds []uuid.UUID
}

func (f *FakeScheduler) SchedulePayout(ctx context.Context, payoutID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts = append(f.payouts, payoutID)
	return nil
}

func (f *FakeScheduler) ScheduleRefund(ctx context.Context, refundID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, refundID)
	return nil
}

var (
	_ PayoutProcessor    = (*FakePayoutProcessor)(nil)
	_ RefundProcessor    = (*FakeRefundProcessor)(nil)
	_ ReservationSweeper = (*FakeSweeper)(nil)
	_ RegistrationCloser = (*FakeSweeper)(nil)
	_ Scheduler          = (*FakeScheduler)(nil)
)
