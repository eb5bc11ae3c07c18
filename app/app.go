package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/modules/auth"
	disputeservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/application"
	disputehandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/handlers"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/handlers"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/application"
	settlementhandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/handlers"
	settlementqueue "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/queue"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/application"
	tournamenthandlers "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/handlers"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/Black-And-White-Club/tourney-settlement/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/Black-And-White-Club/tourney-settlement"

// App holds every long-lived dependency of the running service.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *bun.DB
	EventBus eventbus.EventBus
	Queue    *settlementqueue.Service
	Registry *prometheus.Registry
	Modules  *Modules

	handler http.Handler
}

// Repositories is the storage every module shares.
type Repositories struct {
	Tournaments   tournamentdb.Repository
	Registrations registrationdb.Repository
	Slots         registrationdb.SlotAllocator
	Ledger        ledgerdb.Repository
	Settlement    settlementdb.Repository
	Disputes      disputedb.Repository
}

// PostgresRepositories returns the bun-backed repositories.
func PostgresRepositories(db bun.IDB) Repositories {
	return Repositories{
		Tournaments:   tournamentdb.NewRepository(db),
		Registrations: registrationdb.NewRepository(db),
		Slots:         registrationdb.NewSlotAllocator(db),
		Ledger:        ledgerdb.NewRepository(db),
		Settlement:    settlementdb.NewRepository(db),
		Disputes:      disputedb.NewRepository(db),
	}
}

// Modules holds the application services and the auth guard.
type Modules struct {
	Auth          *auth.Module
	Tournaments   *tournamentservice.Service
	Registrations *registrationservice.Service
	Settlement    *settlementservice.Service
	Disputes      *disputeservice.Service
}

// ModuleDeps is what NewModules needs. DB may be nil when the repositories
// are not SQL backed.
type ModuleDeps struct {
	Config       *config.Config
	Repositories Repositories
	Gateway      paymentgateway.Gateway
	EventBus     eventbus.EventBus
	Logger       *slog.Logger
	Metrics      telemetry.Metrics
	DB           *bun.DB
}

// NewModules builds the services. The dispute service doubles as the gate
// settlement consults before moving money. Job schedulers are wired later by
// the caller.
func NewModules(d ModuleDeps) *Modules {
	cfg := d.Config
	repos := d.Repositories
	book := ledgerservice.NewBook(repos.Ledger, repos.Tournaments)

	tournaments := tournamentservice.NewService(
		repos.Tournaments, repos.Registrations, repos.Slots, repos.Settlement,
		book, d.EventBus, d.Logger, d.Metrics, otel.Tracer(tracerName+"/tournament"), d.DB,
	)
	registrations := registrationservice.NewService(
		repos.Tournaments, repos.Registrations, repos.Slots, book, repos.Settlement, d.Gateway, d.EventBus,
		registrationservice.Config{
			PaymentTimeout: cfg.Registration.PaymentTimeout,
			Currency:       cfg.Gateway.Currency,
		},
		d.Logger, d.Metrics, otel.Tracer(tracerName+"/registration"), d.DB,
	)
	disputes := disputeservice.NewService(
		repos.Disputes, repos.Tournaments, repos.Registrations, repos.Settlement,
		book, d.EventBus, d.Logger, d.Metrics, otel.Tracer(tracerName+"/dispute"), d.DB,
	)
	settlement := settlementservice.NewService(
		repos.Tournaments, repos.Registrations, repos.Settlement, book, d.Gateway, disputes, d.EventBus,
		settlementservice.Config{
			FeeRateBps:      cfg.Settlement.FeeRateBps,
			ProcessingLease: cfg.Settlement.ProcessingLease,
		},
		d.Logger, d.Metrics, otel.Tracer(tracerName+"/settlement"), d.DB,
	)

	return &Modules{
		Auth:          auth.NewModule(cfg, d.Logger),
		Tournaments:   tournaments,
		Registrations: registrations,
		Settlement:    settlement,
		Disputes:      disputes,
	}
}

// Handler builds the HTTP handler for the modules.
func (m *Modules) Handler(logger *slog.Logger, health map[string]HealthCheck, metrics http.Handler) http.Handler {
	return NewRouter(RouterDeps{
		Guard:         m.Auth,
		CORS:          m.Auth.CORS,
		Tournaments:   tournamenthandlers.NewTournamentHandlers(m.Tournaments, logger),
		Registrations: registrationhandlers.NewRegistrationHandlers(m.Registrations, logger),
		Settlement:    settlementhandlers.NewSettlementHandlers(m.Settlement, logger),
		Disputes:      disputehandlers.NewDisputeHandlers(m.Disputes, logger),
		Health:        health,
		Metrics:       metrics,
		Logger:        logger,
	})
}

// NewApp connects to Postgres and the event bus, builds every module and
// the settlement job queue.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Observability)
	slog.SetDefault(logger)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.InfoContext(ctx, "Database connection established")

	bus, err := eventbus.New(ctx, cfg.NATS.URL, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	logger.InfoContext(ctx, "Event bus initialized", attr.Bool("nats", cfg.NATS.URL != ""))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewPrometheusMetrics(registry)

	repos := PostgresRepositories(db)
	modules := NewModules(ModuleDeps{
		Config:       cfg,
		Repositories: repos,
		Gateway:      NewGateway(cfg, logger),
		EventBus:     bus,
		Logger:       logger,
		Metrics:      metrics,
		DB:           db,
	})

	queue, err := settlementqueue.NewService(ctx, db, logger, cfg.Postgres.DSN, metrics, settlementqueue.Dependencies{
		Payouts:    modules.Settlement,
		Refunds:    modules.Settlement,
		Sweeper:    modules.Registrations,
		Closer:     modules.Tournaments,
		PayoutRepo: repos.Settlement,
		LedgerRepo: repos.Ledger,
	}, settlementqueue.Config{
		MaxWorkers:      cfg.Settlement.MaxWorkers,
		SweepInterval:   cfg.Registration.SweepInterval,
		ProcessingLease: cfg.Settlement.ProcessingLease,
	})
	if err != nil {
		_ = bus.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize settlement queue: %w", err)
	}
	modules.Tournaments.SetRefundScheduler(queue)
	modules.Registrations.SetRefundScheduler(queue)
	modules.Settlement.SetPayoutScheduler(queue)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		EventBus: bus,
		Queue:    queue,
		Registry: registry,
		Modules:  modules,
	}
	a.handler = modules.Handler(logger, map[string]HealthCheck{
		"database": db.PingContext,
		"queue":    queue.HealthCheck,
	}, MetricsHandler(registry))
	return a, nil
}

// NewGateway returns the sandbox gateway or the live HTTP client.
func NewGateway(cfg *config.Config, logger *slog.Logger) paymentgateway.Gateway {
	if cfg.Gateway.Mode != "live" {
		logger.Warn("Payment gateway running in sandbox mode")
		return paymentgateway.NewSandbox(cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)
	}
	return paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
		MaxAttempts:   cfg.Gateway.MaxAttempts,
	}, &http.Client{}, logger)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the event bus and the database.
func (a *App) Close() error {
	var firstErr error
	if err := a.EventBus.Close(); err != nil {
		a.Logger.Error("Failed to close event bus", attr.Error(err))
		firstErr = err
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database", attr.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
