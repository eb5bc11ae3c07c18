package settlementqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/uptrace/bun"
)

// QueueSettlement carries every money-moving job.
const QueueSettlement = "settlement"

// Config tunes the job queue.
type Config struct {
	MaxWorkers        int
	MaxAttempts       int
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	DisputeSnooze     time.Duration
	ReconcileBatch    int
	ProcessingLease   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 5 * time.Minute
	}
	if c.DisputeSnooze <= 0 {
		c.DisputeSnooze = 15 * time.Minute
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = 500
	}
	if c.ProcessingLease <= 0 {
		c.ProcessingLease = 10 * time.Minute
	}
	return c
}

// Dependencies are the services the workers drive.
type Dependencies struct {
	Payouts    PayoutProcessor
	Refunds    RefundProcessor
	Sweeper    ReservationSweeper
	Closer     RegistrationCloser
	PayoutRepo settlementdb.Repository
	LedgerRepo ledgerdb.Repository
}

// uniqueStates leaves completed and cancelled jobs out so reconcile can
// enqueue a fresh job for a row whose last job finished without moving it.
var uniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// Ensure Service implements Scheduler
var _ Scheduler = (*Service)(nil)

// Service owns the River client that runs payout, refund, sweep and
// reconcile jobs.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	cfg     Config
	logger  *slog.Logger
	db      *bun.DB
	metrics telemetry.Metrics
}

// NewService creates a River-backed queue on its own pgx pool.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics telemetry.Metrics, deps Dependencies, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = telemetry.NoOpMetrics{}
	}
	ctxLogger := logger.With(
		attr.String("operation", "new_settlement_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	// River requires pgx, not database/sql
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Service{pool: pool, cfg: cfg, logger: ctxLogger, db: bunDB, metrics: metrics}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewPayoutWorker(deps.Payouts, cfg.DisputeSnooze, ctxLogger))
	river.AddWorker(workers, NewRefundWorker(deps.Refunds, cfg.DisputeSnooze, ctxLogger))
	river.AddWorker(workers, NewSweepWorker(deps.Sweeper, deps.Closer, ctxLogger))
	river.AddWorker(workers, NewReconcileWorker(deps.PayoutRepo, deps.LedgerRepo, s, cfg.ReconcileBatch, cfg.ProcessingLease, ctxLogger))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueSettlement:    {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) { return SweepJob{}, nil },
				&river.PeriodicJobOpts{RunOnStart: true},
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.ReconcileInterval),
				func() (river.JobArgs, *river.InsertOpts) { return ReconcileJob{}, nil },
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
		Logger: ctxLogger,
	})
	if err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	s.client = client

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))
	ctxLogger.InfoContext(ctx, "Settlement queue service initialized")
	return s, nil
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to start River client", attr.Error(err))
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Settlement queue service started")
	return nil
}

// Stop drains running jobs and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to stop River client", attr.Error(err))
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Settlement queue service stopped")
	return nil
}

// SchedulePayout enqueues a transfer for payoutID. A live job for the same
// payout makes this a no-op.
func (s *Service) SchedulePayout(ctx context.Context, payoutID uuid.UUID) error {
	return s.insert(ctx, "schedule_payout", PayoutJob{PayoutID: payoutID}, attr.UUID("payout_id", payoutID))
}

// ScheduleRefund enqueues a refund transfer for refundID.
func (s *Service) ScheduleRefund(ctx context.Context, refundID uuid.UUID) error {
	return s.insert(ctx, "schedule_refund", RefundJob{RefundID: refundID}, attr.UUID("refund_id", refundID))
}

func (s *Service) insert(ctx context.Context, operation string, args river.JobArgs, id slog.Attr) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, "river")

	res, err := s.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueSettlement,
		MaxAttempts: s.cfg.MaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByState: uniqueStates,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue job", id, attr.String("kind", args.Kind()), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, operation, "river")
		return fmt.Errorf("failed to enqueue %s job: %w", args.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, operation, "river")
	s.metrics.RecordOperationDuration(ctx, operation, "river", time.Since(start))
	s.logger.DebugContext(ctx, "Enqueued job",
		id,
		attr.String("kind", args.Kind()),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return nil
}

// HealthCheck verifies the job table is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("state IN (?)", bun.In([]string{"available", "retryable"})).
		Scan(ctx, &count)
	if err != nil {
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	return nil
}
