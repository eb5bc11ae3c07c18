package tournamentservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "tournament"

// RefundScheduler hands refunds created by a cancellation to the workers.
type RefundScheduler interface {
	ScheduleRefund(ctx context.Context, refundID uuid.UUID) error
}

// Service implements the tournament lifecycle and escrow funding.
type Service struct {
	repo          tournamentdb.Repository
	registrations registrationdb.Repository
	slots         registrationdb.SlotAllocator
	settlement    settlementdb.Repository
	book          *ledgerservice.Book
	bus           eventbus.EventBus
	refunds       RefundScheduler

	logger  *slog.Logger
	metrics telemetry.Metrics
	tracer  trace.Tracer
	db      *bun.DB
	clock   func() time.Time
}

// NewService creates a new tournament Service.
func NewService(
	repo tournamentdb.Repository,
	registrations registrationdb.Repository,
	slots registrationdb.SlotAllocator,
	settlement settlementdb.Repository,
	book *ledgerservice.Book,
	bus eventbus.EventBus,
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
		repo:          repo,
		registrations: registrations,
		slots:         slots,
		settlement:    settlement,
		book:          book,
		bus:           bus,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		db:            db,
		clock:         time.Now,
	}
}

// SetRefundScheduler wires the job queue once it exists.
func (s *Service) SetRefundScheduler(r RefundScheduler) { s.refunds = r }

func (s *Service) instruments() telemetry.Instruments {
	return telemetry.Instruments{Service: serviceName, Logger: s.logger, Metrics: s.metrics, Tracer: s.tracer}
}

func (s *Service) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) publish(ctx context.Context, evts ...eventbus.Event) {
	eventbus.PublishAll(ctx, s.bus, s.logger, evts...)
}

func (s *Service) scheduleRefunds(ctx context.Context, refunds []*ledgerdb.Refund) {
	if s.refunds == nil {
		return
	}
	for _, r := range refunds {
		if err := s.refunds.ScheduleRefund(ctx, r.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to schedule refund",
				attr.ExtractCorrelationID(ctx),
				attr.UUID("refund_id", r.ID),
				attr.Error(err),
			)
		}
	}
}

func (s *Service) audit(ctx context.Context, db bun.IDB, id uuid.UUID, action string, from, to tournamentdomain.Status, actorID *uuid.UUID, reason string) error {
	return s.book.Audit(ctx, db, ledgerservice.AuditEntry{
		EntityType: ledgerservice.EntityTournament,
		EntityID:   id,
		Action:     action,
		From:       string(from),
		To:         string(to),
		ActorID:    actorID,
		Reason:     reason,
	})
}

// loadOwned reads the tournament and checks the actor organizes it.
func (s *Service) loadOwned(ctx context.Context, db bun.IDB, actor authdomain.Principal, id uuid.UUID, lock bool) (*tournamentdb.Tournament, *apperr.Error, error) {
	var (
		t   *tournamentdb.Tournament
		err error
	)
	if lock {
		t, err = s.repo.GetForUpdate(ctx, db, id)
	} else {
		t, err = s.repo.GetByID(ctx, db, id)
	}
	if err != nil {
		if errors.Is(err, tournamentdb.ErrNotFound) {
			return nil, apperr.NotFound("tournament %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if !actor.Owns(t.OrganizerID) {
		return nil, apperr.Forbidden("tournament is organized by someone else"), nil
	}
	return t, nil, nil
}

func statusChanged(t *tournamentdb.Tournament, from tournamentdomain.Status, actorID *uuid.UUID, reason string, at time.Time) eventbus.Event {
	return eventbus.Event{Topic: events.TournamentStatusChanged, Payload: events.TournamentStatusChangedPayload{
		TournamentID: t.ID,
		From:         string(from),
		To:           string(t.Status),
		ActorID:      actorID,
		Reason:       reason,
		OccurredAt:   at,
	}}
}

func fail[S any](e *apperr.Error) (results.OperationResult[S, error], error) {
	return results.FailureResult[S, error](e), nil
}
