package registrationservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "registration"
	sweepBatch  = 500
)

// Config holds the registration settings the service needs.
type Config struct {
	PaymentTimeout time.Duration
	Currency       string
}

// RefundScheduler hands a freshly created refund to the background workers.
// Scheduling is best effort: the reconcile job picks up anything missed.
type RefundScheduler interface {
	ScheduleRefund(ctx context.Context, refundID uuid.UUID) error
}

// Commitments reports how much of a tournament's escrow verified results
// have already claimed.
type Commitments interface {
	SumCommittedGross(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int64, error)
}

// Service implements the registration workflow.
type Service struct {
	tournaments tournamentdb.Repository
	repo        registrationdb.Repository
	slots       registrationdb.SlotAllocator
	book        *ledgerservice.Book
	commitments Commitments
	gateway     paymentgateway.Gateway
	bus         eventbus.EventBus
	refunds     RefundScheduler
	cfg         Config

	logger  *slog.Logger
	metrics telemetry.Metrics
	tracer  trace.Tracer
	db      *bun.DB
	clock   func() time.Time
}

// NewService creates a new registration Service.
func NewService(
	tournaments tournamentdb.Repository,
	repo registrationdb.Repository,
	slots registrationdb.SlotAllocator,
	book *ledgerservice.Book,
	commitments Commitments,
	gateway paymentgateway.Gateway,
	bus eventbus.EventBus,
	cfg Config,
	logger *slog.Logger,
	metrics telemetry.Metrics,
	tracer trace.Tracer,
	db *bun.DB,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NoOpMetrics{}
	}
	return &Service{
		tournaments: tournaments,
		repo:        repo,
		slots:       slots,
		book:        book,
		commitments: commitments,
		gateway:     gateway,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		db:          db,
		clock:       time.Now,
	}
}

// SetRefundScheduler wires the job queue once it exists.
func (s *Service) SetRefundScheduler(r RefundScheduler) { s.refunds = r }

func (s *Service) instruments() telemetry.Instruments {
	return telemetry.Instruments{Service: serviceName, Logger: s.logger, Metrics: s.metrics, Tracer: s.tracer}
}

// idb is the handle for reads outside a transaction.
func (s *Service) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) scheduleRefund(ctx context.Context, refund *ledgerdb.Refund) {
	if s.refunds == nil || refund == nil {
		return
	}
	if err := s.refunds.ScheduleRefund(ctx, refund.ID); err != nil {
		s.logger.WarnContext(ctx, "Failed to schedule refund",
			attr.ExtractCorrelationID(ctx),
			attr.UUID("refund_id", refund.ID),
			attr.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, evts ...eventbus.Event) {
	eventbus.PublishAll(ctx, s.bus, s.logger, evts...)
}

func (s *Service) audit(ctx context.Context, db bun.IDB, reg *registrationdb.Registration, action string, from registrationdomain.Status, actorID *uuid.UUID, reason string) error {
	return s.book.Audit(ctx, db, ledgerservice.AuditEntry{
		EntityType: ledgerservice.EntityRegistration,
		EntityID:   reg.ID,
		Action:     action,
		From:       string(from),
		To:         string(reg.Status),
		ActorID:    actorID,
		Reason:     reason,
	})
}

func confirmedEvent(reg *registrationdb.Registration) eventbus.Event {
	p := events.RegistrationConfirmedPayload{
		RegistrationID: reg.ID,
		TournamentID:   reg.TournamentID,
		ParticipantID:  reg.ParticipantID,
		AmountPaid:     reg.AmountPaid,
	}
	if reg.SlotNumber != nil {
		p.SlotNumber = *reg.SlotNumber
	}
	if reg.ConfirmedAt != nil {
		p.ConfirmedAt = *reg.ConfirmedAt
	}
	return eventbus.Event{Topic: events.RegistrationConfirmed, Payload: p}
}

func closedEvent(topic string, reg *registrationdb.Registration, refunded bool) eventbus.Event {
	return eventbus.Event{Topic: topic, Payload: events.RegistrationClosedPayload{
		RegistrationID: reg.ID,
		TournamentID:   reg.TournamentID,
		ParticipantID:  reg.ParticipantID,
		Status:         string(reg.Status),
		Refunded:       refunded,
	}}
}

func refundEvent(refund *ledgerdb.Refund) eventbus.Event {
	return eventbus.Event{Topic: events.RefundCreated, Payload: events.RefundPayload{
		RefundID:       refund.ID,
		TournamentID:   refund.TournamentID,
		RegistrationID: refund.RegistrationID,
		Amount:         refund.Amount,
		Status:         string(refund.Status),
	}}
}

func tournamentClosedEvent(t *tournamentdb.Tournament, at time.Time) eventbus.Event {
	return eventbus.Event{Topic: events.TournamentStatusChanged, Payload: events.TournamentStatusChangedPayload{
		TournamentID: t.ID,
		From:         string(tournamentdomain.StatusRegistrationOpen),
		To:           string(tournamentdomain.StatusRegistrationClosed),
		Reason:       autoCloseReason,
		OccurredAt:   at,
	}}
}
