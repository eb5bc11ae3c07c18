package disputedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a dispute is not found.
	ErrNotFound = errors.New("dispute not found")
	// ErrStatusConflict is returned when a guarded update found the row in
	// an unexpected status.
	ErrStatusConflict = errors.New("dispute status changed concurrently")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new dispute repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, d *Dispute) error {
	db = r.resolveDB(db)
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = disputedomain.StatusOpen
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	if _, err := db.NewInsert().Model(d).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Dispute, error) {
	db = r.resolveDB(db)
	d := new(Dispute)
	if err := db.NewSelect().Model(d).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB, filter ListFilter) ([]Dispute, error) {
	db = r.resolveDB(db)
	var disputes []Dispute
	q := db.NewSelect().
		Model(&disputes).
		Where("tournament_id = ?", filter.TournamentID).
		Order("created_at DESC")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	return disputes, nil
}

func (r *Impl) ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr Transition) (*Dispute, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	d := new(Dispute)
	q := db.NewUpdate().
		Model(d).
		Set("status = ?", tr.To).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(tr.From))
	if tr.To.IsTerminal() {
		q = q.Set("resolution = ?", tr.Resolution).
			Set("resolved_by = ?", tr.ActorID).
			Set("resolved_at = ?", now)
	}

	res, err := q.Returning("*").Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to transition dispute: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrStatusConflict
	}
	return d, nil
}

func (r *Impl) HasBlocking(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
	db = r.resolveDB(db)
	q := db.NewSelect().
		Model((*Dispute)(nil)).
		Where("tournament_id = ?", tournamentID).
		Where("status IN (?)", bun.In(disputedomain.BlockingStatuses))
	if matchID != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("match_id IS NULL").WhereOr("match_id = ?", *matchID)
		})
	} else {
		q = q.Where("match_id IS NULL")
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check blocking disputes: %w", err)
	}
	return exists, nil
}
