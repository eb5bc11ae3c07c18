package registrationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a registration is not found.
	ErrNotFound = errors.New("registration not found")
	// ErrAlreadyRegistered is returned when the participant already holds
	// an active registration for the tournament.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrStatusConflict is returned when a guarded update found the row in
	// an unexpected status.
	ErrStatusConflict = errors.New("registration status changed concurrently")
)

// activeIndexPredicate must match registrations_active_participant_idx.
const activeIndexPredicate = "status IN ('INITIATED', 'AWAITING_PAYMENT', 'CONFIRMED')"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new registration repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, reg *Registration) error {
	db = r.resolveDB(db)
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	if reg.Status == "" {
		reg.Status = registrationdomain.StatusInitiated
	}

	res, err := db.NewInsert().
		Model(reg).
		On("CONFLICT (tournament_id, participant_id) WHERE " + activeIndexPredicate + " DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyRegistered
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Registration, error) {
	return r.getOne(ctx, db, "get registration", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

func (r *Impl) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Registration, error) {
	return r.getOne(ctx, db, "lock registration", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id).For("UPDATE")
	})
}

func (r *Impl) GetByOrderID(ctx context.Context, db bun.IDB, orderID string) (*Registration, error) {
	return r.getOne(ctx, db, "get registration by order", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("payment_order_id = ?", orderID)
	})
}

func (r *Impl) GetActiveByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*Registration, error) {
	return r.getOne(ctx, db, "get active registration", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("tournament_id = ?", tournamentID).
			Where("participant_id = ?", participantID).
			Where("status IN (?)", bun.In(registrationdomain.ActiveStatuses))
	})
}

func (r *Impl) GetLatestByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*Registration, error) {
	return r.getOne(ctx, db, "get latest registration", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("tournament_id = ?", tournamentID).
			Where("participant_id = ?", participantID).
			Order("created_at DESC").
			Limit(1)
	})
}

func (r *Impl) getOne(ctx context.Context, db bun.IDB, op string, build func(*bun.SelectQuery) *bun.SelectQuery) (*Registration, error) {
	db = r.resolveDB(db)
	reg := new(Registration)
	if err := build(db.NewSelect().Model(reg)).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return reg, nil
}

func (r *Impl) MarkAwaitingPayment(ctx context.Context, db bun.IDB, id uuid.UUID, deadline time.Time) (*Registration, error) {
	db = r.resolveDB(db)
	reg := new(Registration)
	q := db.NewUpdate().
		Model(reg).
		Set("status = ?", registrationdomain.StatusAwaitingPayment).
		Set("payment_deadline = ?", deadline).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", registrationdomain.StatusInitiated)
	return reg, r.execReturning(ctx, q, "mark registration awaiting payment")
}

func (r *Impl) SetPaymentOrder(ctx context.Context, db bun.IDB, id uuid.UUID, orderID string) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Registration)(nil)).
		Set("payment_order_id = ?", orderID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(registrationdomain.PendingStatuses)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set payment order: %w", err)
	}
	return requireOneRow(res, ErrStatusConflict)
}

func (r *Impl) Confirm(ctx context.Context, db bun.IDB, id uuid.UUID, params ConfirmParams) (*Registration, error) {
	db = r.resolveDB(db)
	reg := new(Registration)
	q := db.NewUpdate().
		Model(reg).
		Set("status = ?", registrationdomain.StatusConfirmed).
		Set("slot_number = ?", params.SlotNumber).
		Set("amount_paid = ?", params.AmountPaid).
		Set("payment_reference = ?", params.PaymentReference).
		Set("confirmed_at = ?", params.ConfirmedAt).
		Set("updated_at = ?", params.ConfirmedAt).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(params.From))
	return reg, r.execReturning(ctx, q, "confirm registration")
}

func (r *Impl) Cancel(ctx context.Context, db bun.IDB, id uuid.UUID, from []registrationdomain.Status, reason string) (*Registration, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	reg := new(Registration)
	q := db.NewUpdate().
		Model(reg).
		Set("status = ?", registrationdomain.StatusCancelled).
		Set("cancellation_reason = ?", reason).
		Set("cancelled_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(from))
	return reg, r.execReturning(ctx, q, "cancel registration")
}

func (r *Impl) RecordLatePayment(ctx context.Context, db bun.IDB, id uuid.UUID, paymentReference string, amount int64) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Registration)(nil)).
		Set("payment_reference = ?", paymentReference).
		Set("amount_paid = ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("payment_reference IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record late payment: %w", err)
	}
	return requireOneRow(res, ErrStatusConflict)
}

func (r *Impl) execReturning(ctx context.Context, q *bun.UpdateQuery, op string) error {
	res, err := q.Returning("*").Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusConflict
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return requireOneRow(res, ErrStatusConflict)
}

func (r *Impl) ClaimExpired(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, now time.Time, limit int) ([]ExpiredRegistration, error) {
	db = r.resolveDB(db)

	// The candidates are locked first so their prior status holds until the
	// update. SKIP LOCKED leaves rows a concurrent payment is confirming.
	var candidates []Registration
	err := db.NewSelect().
		Model(&candidates).
		Column("id", "status").
		Where("tournament_id = ?", tournamentID).
		Where("status IN (?)", bun.In(registrationdomain.PendingStatuses)).
		Where("payment_deadline < ?", now).
		Order("payment_deadline ASC").
		Limit(limit).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select expired registrations: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	from := make(map[uuid.UUID]registrationdomain.Status, len(candidates))
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		from[c.ID] = c.Status
		ids = append(ids, c.ID)
	}

	var claimed []Registration
	_, err = db.NewUpdate().
		Model((*Registration)(nil)).
		Set("status = ?", registrationdomain.StatusExpired).
		Set("expired_at = ?", now).
		Set("updated_at = ?", now).
		Where("id IN (?)", bun.In(ids)).
		Where("status IN (?)", bun.In(registrationdomain.PendingStatuses)).
		Returning("*").
		Exec(ctx, &claimed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim expired registrations: %w", err)
	}

	out := make([]ExpiredRegistration, 0, len(claimed))
	for _, reg := range claimed {
		out = append(out, ExpiredRegistration{Registration: reg, From: from[reg.ID]})
	}
	return out, nil
}

func (r *Impl) TournamentsWithExpired(ctx context.Context, db bun.IDB, now time.Time, limit int) ([]uuid.UUID, error) {
	db = r.resolveDB(db)
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*Registration)(nil)).
		ColumnExpr("DISTINCT tournament_id").
		Where("status IN (?)", bun.In(registrationdomain.PendingStatuses)).
		Where("payment_deadline < ?", now).
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find tournaments with expired reservations: %w", err)
	}
	return ids, nil
}

func (r *Impl) CancelPendingForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]Registration, error) {
	return r.cancelForTournament(ctx, db, tournamentID, registrationdomain.PendingStatuses, reason)
}

func (r *Impl) CancelConfirmedForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]Registration, error) {
	return r.cancelForTournament(ctx, db, tournamentID, []registrationdomain.Status{registrationdomain.StatusConfirmed}, reason)
}

func (r *Impl) cancelForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, from []registrationdomain.Status, reason string) ([]Registration, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	var cancelled []Registration
	_, err := db.NewUpdate().
		Model((*Registration)(nil)).
		Set("status = ?", registrationdomain.StatusCancelled).
		Set("cancellation_reason = ?", reason).
		Set("cancelled_at = ?", now).
		Set("updated_at = ?", now).
		Where("tournament_id = ?", tournamentID).
		Where("status IN (?)", bun.In(from)).
		Returning("*").
		Exec(ctx, &cancelled)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to cancel registrations: %w", err)
	}
	return cancelled, nil
}

func (r *Impl) ListByStatus(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, statuses ...registrationdomain.Status) ([]Registration, error) {
	db = r.resolveDB(db)
	var regs []Registration
	q := db.NewSelect().
		Model(&regs).
		Where("tournament_id = ?", tournamentID).
		OrderExpr("slot_number ASC NULLS LAST, created_at ASC")
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func (r *Impl) Roster(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]RosterEntry, error) {
	db = r.resolveDB(db)
	var roster []RosterEntry
	err := db.NewSelect().
		Model((*Registration)(nil)).
		Column("team_name", "slot_number", "status").
		Where("tournament_id = ?", tournamentID).
		Where("status = ?", registrationdomain.StatusConfirmed).
		Order("slot_number ASC").
		Scan(ctx, &roster)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster, nil
}

func requireOneRow(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
