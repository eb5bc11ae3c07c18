package tournamentservice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/memstore"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

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
	return append([]string(nil), f.topics...)
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
	store        *memstore.Store
	bus          *FakeEventBus
	refunds      *FakeRefundScheduler
	gateway      *paymentgateway.Sandbox
	svc          *Service
	registration *registrationservice.Service
	now          time.Time

	organizer authdomain.Principal
	admin     authdomain.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	book := ledgerservice.NewBook(store.Ledger(), store.Tournaments())
	env := &testEnv{
		store:     store,
		bus:       &FakeEventBus{},
		refunds:   &FakeRefundScheduler{},
		gateway:   paymentgateway.NewSandbox("key-secret", "webhook-secret"),
		now:       time.Now().UTC().Truncate(time.Second),
		organizer: authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer, Name: "org"},
		admin:     authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin, Name: "admin"},
	}
	env.svc = NewService(
		store.Tournaments(),
		store.Registrations(),
		store.Slots(),
		store.Settlement(),
		book,
		env.bus,
		logger,
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
	env.svc.SetRefundScheduler(env.refunds)
	env.svc.clock = func() time.Time { return env.now }

	env.registration = registrationservice.NewService(
		store.Tournaments(),
		store.Registrations(),
		store.Slots(),
		book,
		store.Settlement(),
		env.gateway,
		&FakeEventBus{},
		registrationservice.Config{PaymentTimeout: 15 * time.Minute, Currency: "INR"},
		logger,
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
	return env
}

func (e *testEnv) terms() tournamentdomain.Terms {
	return tournamentdomain.Terms{
		Name:       "Weekend Cup",
		Game:       "BGMI",
		Capacity:   4,
		EntryFee:   5000,
		Currency:   "inr",
		PrizePool:  15000,
		PrizeTable: []int64{10000, 5000},
		StartsAt:   e.now.Add(72 * time.Hour),
	}
}

// openTournament drives a new tournament through approval to
// REGISTRATION_OPEN.
func (e *testEnv) openTournament(t *testing.T) *tournamentdb.Tournament {
	t.Helper()
	ctx := context.Background()
	tour, err := e.svc.CreateTournament(ctx, e.organizer, e.terms())
	require.NoError(t, err)
	_, err = e.svc.SubmitForApproval(ctx, e.organizer, tour.ID)
	require.NoError(t, err)
	_, err = e.svc.Approve(ctx, e.admin, tour.ID)
	require.NoError(t, err)
	tour, err = e.svc.OpenRegistration(ctx, e.organizer, tour.ID)
	require.NoError(t, err)
	return tour
}

// join reserves a slot for a fresh participant and, when pay is set,
// completes the checkout.
func (e *testEnv) join(t *testing.T, tournamentID uuid.UUID, name string, pay bool) *registrationdb.Registration {
	t.Helper()
	ctx := context.Background()
	p := authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant, Name: name}
	res, err := e.registration.Join(ctx, p, tournamentID, registrationdomain.TeamInfo{TeamName: name})
	require.NoError(t, err)
	if !pay {
		return res.Registration
	}
	orderID := e.gateway.OrderID(res.Registration.ID.String())
	paymentID := "pay_" + name
	_, err = e.registration.VerifyPayment(ctx, p, registrationservice.VerifyPaymentRequest{
		RegistrationID: res.Registration.ID,
		OrderID:        orderID,
		PaymentID:      paymentID,
		Signature:      e.gateway.SignCallback(orderID, paymentID),
	})
	require.NoError(t, err)
	reg, err := e.store.Registrations().GetByID(ctx, nil, res.Registration.ID)
	require.NoError(t, err)
	return reg
}

func (e *testEnv) tournament(t *testing.T, id uuid.UUID) *tournamentdb.Tournament {
	t.Helper()
	tour, err := e.store.Tournaments().GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return tour
}
