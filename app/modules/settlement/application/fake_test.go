package settlementservice

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
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/application"
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
// Fake Dispute Gate
// ------------------------

type FakeDisputeGate struct {
	HasBlockingDisputeFunc func(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error)
}

func (f *FakeDisputeGate) HasBlockingDispute(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
	if f.HasBlockingDisputeFunc != nil {
		return f.HasBlockingDisputeFunc(ctx, tournamentID, matchID)
	}
	return false, nil
}

var _ DisputeGate = (*FakeDisputeGate)(nil)

// ------------------------
// Fake Payout Scheduler
// ------------------------

type FakePayoutScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
}

func (f *FakePayoutScheduler) SchedulePayout(ctx context.Context, payoutID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, payoutID)
	return nil
}

func (f *FakePayoutScheduler) Scheduled() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.scheduled...)
}

// ------------------------
// Test environment
// ------------------------

const testFeeRateBps = 1000

type testEnv struct {
	store     *memstore.Store
	bus       *FakeEventBus
	gate      *FakeDisputeGate
	scheduler *FakePayoutScheduler
	gateway   *paymentgateway.Sandbox
	svc       *Service

	tournaments  *tournamentservice.Service
	registration *registrationservice.Service

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
		gate:      &FakeDisputeGate{},
		scheduler: &FakePayoutScheduler{},
		gateway:   paymentgateway.NewSandbox("key-secret", "webhook-secret"),
		organizer: authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer, Name: "org"},
		admin:     authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin, Name: "admin"},
	}
	env.svc = NewService(
		store.Tournaments(),
		store.Registrations(),
		store.Settlement(),
		book,
		env.gateway,
		env.gate,
		env.bus,
		Config{FeeRateBps: testFeeRateBps, ProcessingLease: 10 * time.Minute},
		logger,
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
	env.svc.SetPayoutScheduler(env.scheduler)

	env.tournaments = tournamentservice.NewService(
		store.Tournaments(),
		store.Registrations(),
		store.Slots(),
		store.Settlement(),
		book,
		&FakeEventBus{},
		logger,
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
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

// terms prices a single-winner tournament: the whole pool goes to
// placement 1.
func terms(prizePool int64) tournamentdomain.Terms {
	return tournamentdomain.Terms{
		Name:      "Sunday Showdown",
		Game:      "Valorant",
		Capacity:  4,
		EntryFee:  5000,
		Currency:  "INR",
		PrizePool: prizePool,
		StartsAt:  time.Now().UTC().Add(72 * time.Hour),
	}
}

// liveTournament opens a tournament, confirms one paid registration per
// team name and takes it LIVE.
func (e *testEnv) liveTournament(t *testing.T, tt tournamentdomain.Terms, teams ...string) (*tournamentdb.Tournament, []*registrationdb.Registration) {
	t.Helper()
	ctx := context.Background()
	tour, err := e.tournaments.CreateTournament(ctx, e.organizer, tt)
	require.NoError(t, err)
	_, err = e.tournaments.SubmitForApproval(ctx, e.organizer, tour.ID)
	require.NoError(t, err)
	_, err = e.tournaments.Approve(ctx, e.admin, tour.ID)
	require.NoError(t, err)
	_, err = e.tournaments.OpenRegistration(ctx, e.organizer, tour.ID)
	require.NoError(t, err)

	regs := make([]*registrationdb.Registration, 0, len(teams))
	for _, team := range teams {
		regs = append(regs, e.join(t, tour.ID, team, true))
	}

	_, err = e.tournaments.CloseRegistration(ctx, e.organizer, tour.ID)
	require.NoError(t, err)
	tour, err = e.tournaments.StartMatch(ctx, e.organizer, tour.ID)
	require.NoError(t, err)
	return tour, regs
}

func (e *testEnv) join(t *testing.T, tournamentID uuid.UUID, team string, pay bool) *registrationdb.Registration {
	t.Helper()
	ctx := context.Background()
	p := authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant, Name: team}
	res, err := e.registration.Join(ctx, p, tournamentID, registrationdomain.TeamInfo{TeamName: team})
	require.NoError(t, err)
	if pay {
		orderID := e.gateway.OrderID(res.Registration.ID.String())
		paymentID := "pay_" + team
		_, err = e.registration.VerifyPayment(ctx, p, registrationservice.VerifyPaymentRequest{
			RegistrationID: res.Registration.ID,
			OrderID:        orderID,
			PaymentID:      paymentID,
			Signature:      e.gateway.SignCallback(orderID, paymentID),
		})
		require.NoError(t, err)
	}
	reg, err := e.store.Registrations().GetByID(ctx, nil, res.Registration.ID)
	require.NoError(t, err)
	return reg
}

func (e *testEnv) match(t *testing.T, tournamentID uuid.UUID, name string) *settlementdb.Match {
	t.Helper()
	m, err := e.svc.CreateMatch(context.Background(), e.organizer, tournamentID, MatchInput{Name: name})
	require.NoError(t, err)
	return m
}

func (e *testEnv) submit(t *testing.T, matchID uuid.UUID, entries ...settlementdomain.Entry) *settlementdb.MatchResult {
	t.Helper()
	mr, err := e.svc.SubmitResult(context.Background(), e.organizer, matchID, ResultInput{Entries: entries, EvidenceRefs: []string{"clip-1"}})
	require.NoError(t, err)
	return mr
}

func (e *testEnv) tournament(t *testing.T, id uuid.UUID) *tournamentdb.Tournament {
	t.Helper()
	tour, err := e.store.Tournaments().GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return tour
}

func first(reg *registrationdb.Registration) settlementdomain.Entry {
	return settlementdomain.Entry{RegistrationID: reg.ID, Placement: 1}
}
