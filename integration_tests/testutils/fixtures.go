package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app"
	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/Black-And-White-Club/tourney-settlement/config"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Deps is a fully wired set of services over the test database.
type Deps struct {
	Env       *TestEnvironment
	Config    *config.Config
	Repos     app.Repositories
	Modules   *app.Modules
	Gateway   *paymentgateway.Sandbox
	Organizer authdomain.Principal
	Admin     authdomain.Principal
	Faker     *gofakeit.Faker
}

// TestConfig is the configuration the fixtures run with.
func TestConfig(dsn string) *config.Config {
	return &config.Config{
		Postgres:     config.PostgresConfig{DSN: dsn},
		HTTP:         config.HTTPConfig{RateLimit: 1000, RateBurst: 1000},
		JWT:          config.JWTConfig{Secret: "integration-secret"},
		Gateway:      config.GatewayConfig{Mode: "sandbox", Currency: "INR", KeySecret: "sbx-key", MaxAttempts: 1},
		Registration: config.RegistrationConfig{PaymentTimeout: 15 * time.Minute, SweepInterval: time.Minute},
		Settlement:   config.SettlementConfig{FeeRateBps: 1000, MaxWorkers: 4},
	}
}

// NewDeps resets the database and wires every module on it.
func NewDeps(t *testing.T, env *TestEnvironment) Deps {
	t.Helper()
	resetCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, env.Reset(resetCtx))

	cfg := TestConfig(env.DSN)
	bus := eventbus.NewInMemory(env.Logger)
	t.Cleanup(func() { _ = bus.Close() })

	sandbox := paymentgateway.NewSandbox(cfg.Gateway.KeySecret, "")
	repos := app.PostgresRepositories(env.DB)
	modules := app.NewModules(app.ModuleDeps{
		Config:       cfg,
		Repositories: repos,
		Gateway:      sandbox,
		EventBus:     bus,
		Logger:       env.Logger,
		Metrics:      telemetry.NoOpMetrics{},
		DB:           env.DB,
	})

	return Deps{
		Env:       env,
		Config:    cfg,
		Repos:     repos,
		Modules:   modules,
		Gateway:   sandbox,
		Organizer: authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer, Name: "organizer"},
		Admin:     authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleAdmin, Name: "admin"},
		Faker:     gofakeit.New(7),
	}
}

// Participant returns a fresh participant principal with a generated name.
func (d Deps) Participant() authdomain.Principal {
	return authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant, Name: d.Faker.Username()}
}

// Terms returns valid tournament terms starting in three days.
func Terms(capacity int, entryFee, prizePool int64) tournamentdomain.Terms {
	return tournamentdomain.Terms{
		Name:      "Integration Cup",
		Game:      "Valorant",
		Capacity:  capacity,
		EntryFee:  entryFee,
		Currency:  "INR",
		PrizePool: prizePool,
		StartsAt:  time.Now().UTC().Add(72 * time.Hour),
	}
}

// OpenTournament creates a tournament and takes it to REGISTRATION_OPEN.
func (d Deps) OpenTournament(t *testing.T, terms tournamentdomain.Terms) *tournamentdb.Tournament {
	t.Helper()
	ctx := context.Background()
	svc := d.Modules.Tournaments
	tour, err := svc.CreateTournament(ctx, d.Organizer, terms)
	require.NoError(t, err)
	_, err = svc.SubmitForApproval(ctx, d.Organizer, tour.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, d.Admin, tour.ID)
	require.NoError(t, err)
	tour, err = svc.OpenRegistration(ctx, d.Organizer, tour.ID)
	require.NoError(t, err)
	return tour
}

// Join reserves a slot for p.
func (d Deps) Join(ctx context.Context, p authdomain.Principal, tournamentID uuid.UUID) (*registrationservice.JoinResult, error) {
	return d.Modules.Registrations.Join(ctx, p, tournamentID, registrationdomain.TeamInfo{TeamName: p.Name})
}

// Pay completes checkout for a registration with a correctly signed callback.
func (d Deps) Pay(ctx context.Context, p authdomain.Principal, registrationID uuid.UUID, paymentID string) (*registrationservice.PaymentResult, error) {
	orderID := d.Gateway.OrderID(registrationID.String())
	return d.Modules.Registrations.VerifyPayment(ctx, p, registrationservice.VerifyPaymentRequest{
		RegistrationID: registrationID,
		OrderID:        orderID,
		PaymentID:      paymentID,
		Signature:      d.Gateway.SignCallback(orderID, paymentID),
	})
}

// JoinPaid joins and pays in one step.
func (d Deps) JoinPaid(t *testing.T, p authdomain.Principal, tournamentID uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	res, err := d.Join(ctx, p, tournamentID)
	require.NoError(t, err)
	_, err = d.Pay(ctx, p, res.Registration.ID, "pay_"+res.Registration.ID.String()[:8])
	require.NoError(t, err)
	return res.Registration.ID
}

// Tournament reloads a tournament row.
func (d Deps) Tournament(t *testing.T, id uuid.UUID) *tournamentdb.Tournament {
	t.Helper()
	tour, err := d.Repos.Tournaments.GetByID(context.Background(), d.Env.DB, id)
	require.NoError(t, err)
	return tour
}
