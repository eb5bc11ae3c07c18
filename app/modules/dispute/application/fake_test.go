package disputeservice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/memstore"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
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
// Fake Tournament Repo
// ------------------------

// FakeTournamentRepo delegates to the in-memory store and records which
// tournaments were read under a row lock.
type FakeTournamentRepo struct {
	tournamentdb.Repository

	mu     sync.Mutex
	locked []uuid.UUID
}

func (f *FakeTournamentRepo) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.mu.Lock()
	f.locked = append(f.locked, id)
	f.mu.Unlock()
	return f.Repository.GetForUpdate(ctx, db, id)
}

func (f *FakeTournamentRepo) Locked() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.locked...)
}

// ------------------------
// Test environment
// ------------------------

type testEnv struct {
	store       *memstore.Store
	bus         *FakeEventBus
	tournaments *FakeTournamentRepo
	svc         *Service
	faker       *gofakeit.Faker

	organizer   authdomain.Principal
	admin       authdomain.Principal
	participant authdomain.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	env := &testEnv{
		store:       store,
		bus:         &FakeEventBus{},
		tournaments: &FakeTournamentRepo{Repository: store.Tournaments()},
		faker:       gofakeit.New(42),
		organizer:   authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer},
		admin:       authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin},
		participant: authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant},
	}
	env.svc = NewService(
		store.Disputes(),
		env.tournaments,
		store.Registrations(),
		store.Settlement(),
		ledgerservice.NewBook(store.Ledger(), store.Tournaments()),
		env.bus,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		telemetry.NoOpMetrics{},
		nil,
		nil,
	)
	return env
}

// seed stores a LIVE tournament with one match and one confirmed entrant.
func (e *testEnv) seed(t *testing.T) (*tournamentdb.Tournament, *settlementdb.Match, *registrationdb.Registration) {
	t.Helper()
	ctx := context.Background()
	tour := &tournamentdb.Tournament{
		ID:          uuid.New(),
		OrganizerID: e.organizer.ID,
		Name:        e.faker.Company() + " Open",
		Game:        "Valorant",
		Capacity:    8,
		EntryFee:    5000,
		Currency:    "INR",
		PrizePool:   20000,
		Status:      tournamentdomain.StatusLive,
	}
	require.NoError(t, e.store.Tournaments().Create(ctx, nil, tour))

	m := &settlementdb.Match{TournamentID: tour.ID, Name: "Final", Round: 1, CreatedBy: e.organizer.ID}
	require.NoError(t, e.store.Settlement().CreateMatch(ctx, nil, m))

	reg := &registrationdb.Registration{
		TournamentID:  tour.ID,
		ParticipantID: e.participant.ID,
		TeamName:      e.faker.Username(),
		Status:        registrationdomain.StatusConfirmed,
	}
	require.NoError(t, e.store.Registrations().Create(ctx, nil, reg))
	return tour, m, reg
}

func (e *testEnv) description() string {
	return e.faker.Sentence(8)
}
