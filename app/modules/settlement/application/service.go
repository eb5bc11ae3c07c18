package settlementservice

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
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "settlement"

// Config holds the settlement settings the service needs.
type Config struct {
	FeeRateBps int64
	// ProcessingLease is how long a claimed transfer may stay PROCESSING
	// before another worker may claim it again. Zero never reclaims.
	ProcessingLease time.Duration
}

// DisputeGate reports open disputes that halt verification and payouts.
type DisputeGate interface {
	HasBlockingDispute(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error)
}

// PayoutScheduler hands approved payouts to the background workers.
// Scheduling is best effort: the reconcile job picks up anything missed.
type PayoutScheduler interface {
	SchedulePayout(ctx context.Context, payoutID uuid.UUID) error
}

// Service implements matches, result verification, payouts and refund
// processing.
type Service struct {
	tournaments   tournamentdb.Repository
	registrations registrationdb.Repository
	repo          settlementdb.Repository
	book          *ledgerservice.Book
	gateway       paymentgateway.Gateway
	gate          DisputeGate
	bus           eventbus.EventBus
	payouts       PayoutScheduler
	cfg           Config

	logger  *slog.Logger
	metrics telemetry.Metrics
	tracer  trace.Tracer
	db      *bun.DB
	clock   func() time.Time
}

// NewService creates a new settlement Service.
func NewService(
	tournaments tournamentdb.Repository,
	registrations registrationdb.Repository,
	repo settlementdb.Repository,
	book *ledgerservice.Book,
	gateway paymentgateway.Gateway,
	gate DisputeGate,
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
		tournaments:   tournaments,
		registrations: registrations,
		repo:          repo,
		book:          book,
		gateway:       gateway,
		gate:          gate,
		bus:           bus,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		db:            db,
		clock:         time.Now,
	}
}

// SetPayoutScheduler wires the job queue once it exists.
func (s *Service) SetPayoutScheduler(p PayoutScheduler) { s.payouts = p }

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

// staleBefore is the cutoff for reclaiming an abandoned PROCESSING row.
func (s *Service) staleBefore() time.Time {
	if s.cfg.ProcessingLease <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.cfg.ProcessingLease)
}

func (s *Service) publish(ctx context.Context, evts ...eventbus.Event) {
	eventbus.PublishAll(ctx, s.bus, s.logger, evts...)
}

func (s *Service) schedulePayouts(ctx context.Context, payouts []settlementdb.Payout) {
	if s.payouts == nil {
		return
	}
	for _, p := range payouts {
		if err := s.payouts.SchedulePayout(ctx, p.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to schedule payout",
				attr.ExtractCorrelationID(ctx),
				attr.UUID("payout_id", p.ID),
				attr.Error(err),
			)
		}
	}
}

func (s *Service) audit(ctx context.Context, db bun.IDB, entityType string, id uuid.UUID, action, from, to string, actorID *uuid.UUID, reason string) error {
	return s.book.Audit(ctx, db, ledgerservice.AuditEntry{
		EntityType: entityType,
		EntityID:   id,
		Action:     action,
		From:       from,
		To:         to,
		ActorID:    actorID,
		Reason:     reason,
	})
}

// blocked asks the dispute gate about the tournament and, when set, the match.
func (s *Service) blocked(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (*apperr.Error, error) {
	if s.gate == nil {
		return nil, nil
	}
	blocking, err := s.gate.HasBlockingDispute(ctx, tournamentID, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to check disputes: %w", err)
	}
	if blocking {
		return apperr.New(apperr.CodeDisputeBlocking, "an open dispute blocks settlement"), nil
	}
	return nil, nil
}

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

func (s *Service) loadMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*settlementdb.Match, *apperr.Error, error) {
	m, err := s.repo.GetMatch(ctx, db, id)
	if err != nil {
		if errors.Is(err, settlementdb.ErrNotFound) {
			return nil, apperr.NotFound("match %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil, nil
}

func (s *Service) loadPayout(ctx context.Context, db bun.IDB, id uuid.UUID) (*settlementdb.Payout, *apperr.Error, error) {
	p, err := s.repo.GetPayout(ctx, db, id)
	if err != nil {
		if errors.Is(err, settlementdb.ErrNotFound) {
			return nil, apperr.NotFound("payout %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil, nil
}

func (s *Service) loadRefund(ctx context.Context, db bun.IDB, id uuid.UUID) (*ledgerdb.Refund, *apperr.Error, error) {
	r, err := s.book.Ledger().GetRefund(ctx, db, id)
	if err != nil {
		if errors.Is(err, ledgerdb.ErrNotFound) {
			return nil, apperr.NotFound("refund %s not found", id), nil
		}
		return nil, nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return r, nil, nil
}

func requireAdmin(actor authdomain.Principal) *apperr.Error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func payoutEvent(topic string, p *settlementdb.Payout) eventbus.Event {
	payload := events.PayoutPayload{
		PayoutID:     p.ID,
		TournamentID: p.TournamentID,
		RecipientID:  p.RecipientID,
		GrossAmount:  p.GrossAmount,
		NetAmount:    p.NetAmount,
		Status:       string(p.Status),
	}
	if p.TransferReference != nil {
		payload.TransferReference = *p.TransferReference
	}
	if p.FailureReason != nil {
		payload.FailureReason = *p.FailureReason
	}
	return eventbus.Event{Topic: topic, Payload: payload}
}

func resultEvent(topic string, r *settlementdb.MatchResult, payoutIDs []uuid.UUID) eventbus.Event {
	payload := events.ResultPayload{
		MatchResultID: r.ID,
		MatchID:       r.MatchID,
		TournamentID:  r.TournamentID,
		Status:        string(r.Status),
		PayoutIDs:     payoutIDs,
	}
	if r.RejectionReason != nil {
		payload.Reason = *r.RejectionReason
	}
	return eventbus.Event{Topic: topic, Payload: payload}
}

func fail[S any](e *apperr.Error) (results.OperationResult[S, error], error) {
	return results.FailureResult[S, error](e), nil
}

func infra[S any](err error) (results.OperationResult[S, error], error) {
	return results.OperationResult[S, error]{}, err
}
