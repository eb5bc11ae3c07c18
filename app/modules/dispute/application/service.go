package disputeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "dispute"

// Service raises disputes and walks them through review. It is also the
// gate settlement consults before moving money.
type Service struct {
	repo          disputedb.Repository
	tournaments   tournamentdb.Repository
	registrations registrationdb.Repository
	matches       settlementdb.Repository
	book          *ledgerservice.Book
	bus           eventbus.EventBus

	logger  *slog.Logger
	metrics telemetry.Metrics
	tracer  trace.Tracer
	db      *bun.DB
}

// NewService creates a new dispute Service.
func NewService(
	repo disputedb.Repository,
	tournaments tournamentdb.Repository,
	registrations registrationdb.Repository,
	matches settlementdb.Repository,
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
		tournaments:   tournaments,
		registrations: registrations,
		matches:       matches,
		book:          book,
		bus:           bus,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		db:            db,
	}
}

func (s *Service) instruments() telemetry.Instruments {
	return telemetry.Instruments{Service: serviceName, Logger: s.logger, Metrics: s.metrics, Tracer: s.tracer}
}

func (s *Service) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}

// HasBlockingDispute reports an OPEN or UNDER_REVIEW dispute on the whole
// tournament or, when matchID is set, on that match.
func (s *Service) HasBlockingDispute(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
	return s.repo.HasBlocking(ctx, s.idb(), tournamentID, matchID)
}

// loadTournament reads the tournament. With lock set it takes the row lock
// that settlement holds while it checks for disputes.
func (s *Service) loadTournament(ctx context.Context, db bun.IDB, id uuid.UUID, lock bool) (*tournamentdb.Tournament, *apperr.Error, error) {
	var (
		t   *tournamentdb.Tournament
		err error
	)
	if lock {
		t, err = s.tournaments.GetForUpdate(ctx, db, id)
	} else {
		t, err = s.tournaments.GetByID(ctx, db, id)
	}
	if err != nil {
		if errors.Is(err, tournamentdb.ErrNotFound) {
			return nil, apperr.NotFound("tournament %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil, nil
}

func (s *Service) loadDispute(ctx context.Context, db bun.IDB, id uuid.UUID) (*disputedb.Dispute, *apperr.Error, error) {
	d, err := s.repo.GetByID(ctx, db, id)
	if err != nil {
		if errors.Is(err, disputedb.ErrNotFound) {
			return nil, apperr.NotFound("dispute %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil, nil
}

func (s *Service) audit(ctx context.Context, db bun.IDB, d *disputedb.Dispute, action, from string, actorID *uuid.UUID, reason string) error {
	return s.book.Audit(ctx, db, ledgerservice.AuditEntry{
		EntityType: ledgerservice.EntityDispute,
		EntityID:   d.ID,
		Action:     action,
		From:       from,
		To:         string(d.Status),
		ActorID:    actorID,
		Reason:     reason,
	})
}

func disputeEvent(topic string, d *disputedb.Dispute) eventbus.Event {
	return eventbus.Event{Topic: topic, Payload: events.DisputePayload{
		DisputeID:    d.ID,
		TournamentID: d.TournamentID,
		MatchID:      d.MatchID,
		Type:         string(d.Type),
		Status:       string(d.Status),
	}}
}

func requireAdmin(actor authdomain.Principal) *apperr.Error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func fail[S any](e *apperr.Error) (results.OperationResult[S, error], error) {
	return results.FailureResult[S, error](e), nil
}

func infra[S any](err error) (results.OperationResult[S, error], error) {
	return results.OperationResult[S, error]{}, err
}

func (s *Service) publish(ctx context.Context, evts ...eventbus.Event) {
	eventbus.PublishAll(ctx, s.bus, s.logger, evts...)
}
