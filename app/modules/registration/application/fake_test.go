package registrationservice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/memstore"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const (
	testKeySecret     = "test-key-secret"
	testWebhookSecret = "test-webhook-secret"
)

// ------------------------
// Fake Registration Repo
// ------------------------

// FakeRegistrationRepo delegates to the in-memory store unless a Func
// override is set.
type FakeRegistrationRepo struct {
	registrationdb.Repository

	mu    sync.Mutex
	trace []string

	CreateFunc          func(ctx context.Context, db bun.IDB, reg *registrationdb.Registration) error
	SetPaymentOrderFunc func(ctx context.Context, db bun.IDB, id uuid.UUID, orderID string) error
	ClaimExpiredFunc    func(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, now time.Time, limit int) ([]registrationdb.ExpiredRegistration, error)
}

func NewFakeRegistrationRepo(inner registrationdb.Repository) *FakeRegistrationRepo {
	return &FakeRegistrationRepo{Repository: inner}
}

func (f *FakeRegistrationRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeRegistrationRepo) Create(ctx context.Context, db bun.IDB, reg *registrationdb.Registration) error {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, reg)
	}
	return f.Repository.Create(ctx, db, reg)
}

func (f *FakeRegistrationRepo) SetPaymentOrder(ctx context.Context, db bun.IDB, id uuid.UUID, orderID string) error {
	f.record("SetPaymentOrder")
	if f.SetPaymentOrderFunc != nil {
		return f.SetPaymentOrderFunc(ctx, db, id, orderID)
	}
	return f.Repository.SetPaymentOrder(ctx, db, id, orderID)
}

func (f *FakeRegistrationRepo) ClaimExpired(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, now time.Time, limit int) ([]registrationdb.ExpiredRegistration, error) {
	f.record("ClaimExpired")
	if f.ClaimExpiredFunc != nil {
		return f.ClaimExpiredFunc(ctx, db, tournamentID, now, limit)
	}
	return f.Repository.ClaimExpired(ctx, db, tournamentID, now, limit)
}

func (f *FakeRegistrationRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ registrationdb.Repository = (*FakeRegistrationRepo)(nil)

// ------------------------
// Fake Event Bus
// ------------------------

type FakeEventBus struct {
	mu     sync.Mutex
	topics []string
}

func (f *FakeEventBus) Publish(ctx context.Context, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func (f *FakeEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}

func (f *FakeEventBus) Close() error { return nil }

func (f *FakeEventBus) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.topics))
	copy(out, f.topics)
	return out
}

var _ eventbus.EventBus = (*FakeEventBus)(nil)

// ------------------------
// Fake Refund Scheduler
// ------------------------

type FakeRefundScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
}

func (f *FakeRefundScheduler) ScheduleRefund(ctx context.Context, refundID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, refundID)
	return nil
}

func (f *FakeRefundScheduler) Scheduled() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.scheduled...)
}

// ------------------------
// Test environment
// ------------------------

type testEnv struct {
	store   *memstore.Store
	repo    *FakeRegistrationRepo
	gateway *paymentgateway.Sandbox
	bus     *FakeEventBus
	refunds *FakeRefundScheduler
	svc     *Service
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	env := &testEnv{
		store:   store,
		repo:    NewFakeRegistrationRepo(store.Registrations()),
		gateway: paymentgateway.NewSandbox(testKeySecret, testWebhookSecret),
		bus:     &FakeEventBus{},
		refunds: &FakeRefundScheduler{},
		now:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(
		store.Tournaments(),
		env.repo,
		store.Slots(),
		ledgerservice.NewBook(store.Ledger(), store.Tournaments()),
		store.Settlement(),
		env.gateway,
		env.bus,
		Config{PaymentTimeout: 15 * time.Minute, Currency: "INR"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
	env.svc.SetRefundScheduler(env.refunds)
	env.svc.clock = func() time.Time { return env.now }
	return env
}

func (e *testEnv) openTournament(t *testing.T, capacity int, entryFee int64) *tournamentdb.Tournament {
	t.Helper()
	tour := &tournamentdb.Tournament{
		OrganizerID: uuid.New(),
		Name:        "Weekend Cup",
		Capacity:    capacity,
		EntryFee:    entryFee,
		Currency:    "INR",
		PrizePool:   entryFee * int64(capacity),
		StartsAt:    e.now.Add(72 * time.Hour),
		Status:      tournamentdomain.StatusRegistrationOpen,
	}
	require.NoError(t, e.store.Tournaments().Create(context.Background(), nil, tour))
	return tour
}

func (e *testEnv) tournament(t *testing.T, id uuid.UUID) *tournamentdb.Tournament {
	t.Helper()
	tour, err := e.store.Tournaments().GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return tour
}

func (e *testEnv) registration(t *testing.T, id uuid.UUID) *registrationdb.Registration {
	t.Helper()
	reg, err := e.store.Registrations().GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return reg
}

// pay signs a checkout callback for the registration's order the way the
// gateway would.
func (e *testEnv) pay(reg *registrationdb.Registration, paymentID string) VerifyPaymentRequest {
	orderID := e.gateway.OrderID(reg.ID.String())
	return VerifyPaymentRequest{
		RegistrationID: reg.ID,
		OrderID:        orderID,
		PaymentID:      paymentID,
		Signature:      e.gateway.SignCallback(orderID, paymentID),
	}
}

var tournamentCloseTransition = tournamentdb.Transition{
	From: []tournamentdomain.Status{tournamentdomain.StatusRegistrationOpen},
	To:   tournamentdomain.StatusRegistrationClosed,
}

var tournamentLiveTransition = tournamentdb.Transition{
	From: []tournamentdomain.Status{tournamentdomain.StatusRegistrationClosed},
	To:   tournamentdomain.StatusLive,
}
