package tournamentdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a tournament is not found.
	ErrNotFound = errors.New("tournament not found")
	// ErrStatusConflict is returned when a guarded update found the row in
	// an unexpected status.
	ErrStatusConflict = errors.New("tournament status changed concurrently")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new tournament repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, t *Tournament) error {
	db = r.resolveDB(db)
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := db.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error) {
	return r.get(ctx, db, id, "")
}

func (r *Impl) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error) {
	return r.get(ctx, db, id, "UPDATE")
}

func (r *Impl) GetForShare(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error) {
	return r.get(ctx, db, id, "SHARE")
}

func (r *Impl) get(ctx context.Context, db bun.IDB, id uuid.UUID, lock string) (*Tournament, error) {
	db = r.resolveDB(db)
	t := new(Tournament)
	q := db.NewSelect().Model(t).Where("id = ?", id)
	if lock != "" {
		q = q.For(lock)
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB, filter ListFilter) ([]Tournament, error) {
	db = r.resolveDB(db)
	var tournaments []Tournament
	q := db.NewSelect().Model(&tournaments).Order("starts_at ASC", "id ASC")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.OrganizerID != nil {
		q = q.Where("organizer_id = ?", *filter.OrganizerID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q = q.Limit(limit).Offset(filter.Offset)
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (r *Impl) UpdateTerms(ctx context.Context, db bun.IDB, t *Tournament) error {
	db = r.resolveDB(db)
	t.UpdatedAt = time.Now().UTC()
	res, err := db.NewUpdate().
		Model(t).
		Column("name", "game", "capacity", "entry_fee", "currency", "prize_pool",
			"prize_per_kill", "prize_table", "starts_at", "updated_at").
		Where("id = ?", t.ID).
		Where("status = ?", tournamentdomain.StatusDraft).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update tournament terms: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *Impl) ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr Transition) (*Tournament, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	t := new(Tournament)

	q := db.NewUpdate().
		Model(t).
		Set("status = ?", tr.To).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(tr.From))

	switch tr.To {
	case tournamentdomain.StatusDraft:
		q = q.Set("rejection_reason = ?", tr.RejectionReason)
	case tournamentdomain.StatusPendingApproval, tournamentdomain.StatusApproved:
		q = q.Set("rejection_reason = NULL")
	case tournamentdomain.StatusRegistrationOpen:
		q = q.Set("opened_at = ?", now)
	case tournamentdomain.StatusRegistrationClosed:
		q = q.Set("closed_at = ?", now)
	case tournamentdomain.StatusLive:
		q = q.Set("started_at = ?", now)
	case tournamentdomain.StatusCompleted:
		q = q.Set("completed_at = ?", now)
	case tournamentdomain.StatusCancelled:
		q = q.Set("cancelled_at = ?", now).Set("cancellation_reason = ?", tr.CancellationReason)
	}

	res, err := q.Returning("*").Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to transition tournament: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrStatusConflict
	}
	return t, nil
}

func (r *Impl) AdjustEscrow(ctx context.Context, db bun.IDB, id uuid.UUID, delta EscrowDelta) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Tournament)(nil)).
		Set("escrow_collected = escrow_collected + ?", delta.Collected).
		Set("escrow_topup = escrow_topup + ?", delta.TopUp).
		Set("escrow_refunded = escrow_refunded + ?", delta.Refunded).
		Set("escrow_released = escrow_released + ?", delta.Released).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to adjust escrow counters: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
