package settlementdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a match, result or payout is not found.
	ErrNotFound = errors.New("settlement record not found")
	// ErrStatusConflict is returned when a guarded update found the row in
	// an unexpected status.
	ErrStatusConflict = errors.New("settlement status changed concurrently")
	// ErrNotClaimable is returned when a payout is not in a claimable state.
	ErrNotClaimable = errors.New("payout not claimable")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new settlement repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) CreateMatch(ctx context.Context, db bun.IDB, m *Match) error {
	db = r.resolveDB(db)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = settlementdomain.MatchStatusScheduled
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	if _, err := db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *Impl) GetMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error) {
	db = r.resolveDB(db)
	m := new(Match)
	if err := db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (r *Impl) ListMatches(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]Match, error) {
	db = r.resolveDB(db)
	var matches []Match
	err := db.NewSelect().
		Model(&matches).
		Where("tournament_id = ?", tournamentID).
		Order("round ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (r *Impl) UpsertResult(ctx context.Context, db bun.IDB, result *MatchResult) error {
	db = r.resolveDB(db)
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	now := time.Now().UTC()
	result.Status = settlementdomain.ResultStatusSubmitted
	result.SubmittedAt = now
	result.CreatedAt, result.UpdatedAt = now, now

	res, err := db.NewInsert().
		Model(result).
		On("CONFLICT (match_id) DO UPDATE").
		Set("winner_id = EXCLUDED.winner_id").
		Set("entries = EXCLUDED.entries").
		Set("kills = EXCLUDED.kills").
		Set("placement = EXCLUDED.placement").
		Set("evidence_refs = EXCLUDED.evidence_refs").
		Set("status = EXCLUDED.status").
		Set("rejection_reason = NULL").
		Set("rejected_at = NULL").
		Set("submitted_by = EXCLUDED.submitted_by").
		Set("submitted_at = EXCLUDED.submitted_at").
		Set("updated_at = EXCLUDED.updated_at").
		Where("mr.status IN (?)", bun.In([]settlementdomain.ResultStatus{
			settlementdomain.ResultStatusSubmitted, settlementdomain.ResultStatusRejected,
		})).
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusConflict
		}
		return fmt.Errorf("failed to upsert match result: %w", err)
	}
	return requireOneRow(res, ErrStatusConflict)
}

func (r *Impl) GetResultByMatch(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*MatchResult, error) {
	return r.getResult(ctx, db, "match_id = ?", matchID, false)
}

func (r *Impl) GetResultByMatchForUpdate(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*MatchResult, error) {
	return r.getResult(ctx, db, "match_id = ?", matchID, true)
}

func (r *Impl) GetResult(ctx context.Context, db bun.IDB, id uuid.UUID) (*MatchResult, error) {
	return r.getResult(ctx, db, "id = ?", id, false)
}

func (r *Impl) getResult(ctx context.Context, db bun.IDB, where string, id uuid.UUID, lock bool) (*MatchResult, error) {
	db = r.resolveDB(db)
	result := new(MatchResult)
	q := db.NewSelect().Model(result).Where(where, id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match result: %w", err)
	}
	return result, nil
}

func (r *Impl) MarkResultVerified(ctx context.Context, db bun.IDB, id, verifiedBy uuid.UUID) (*MatchResult, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	result := new(MatchResult)
	q := db.NewUpdate().
		Model(result).
		Set("status = ?", settlementdomain.ResultStatusVerified).
		Set("verified_by = ?", verifiedBy).
		Set("verified_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", settlementdomain.ResultStatusSubmitted)
	return result, execReturning(ctx, q, "verify match result")
}

func (r *Impl) MarkResultRejected(ctx context.Context, db bun.IDB, id, rejectedBy uuid.UUID, reason string) (*MatchResult, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	result := new(MatchResult)
	q := db.NewUpdate().
		Model(result).
		Set("status = ?", settlementdomain.ResultStatusRejected).
		Set("rejection_reason = ?", reason).
		Set("verified_by = ?", rejectedBy).
		Set("rejected_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", settlementdomain.ResultStatusSubmitted)
	return result, execReturning(ctx, q, "reject match result")
}

func (r *Impl) CreatePayouts(ctx context.Context, db bun.IDB, payouts []Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	now := time.Now().UTC()
	for i := range payouts {
		if payouts[i].ID == uuid.Nil {
			payouts[i].ID = uuid.New()
		}
		if payouts[i].Status == "" {
			payouts[i].Status = settlementdomain.PayoutStatusPending
		}
		payouts[i].CreatedAt, payouts[i].UpdatedAt = now, now
	}
	if _, err := db.NewInsert().Model(&payouts).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create payouts: %w", err)
	}
	return nil
}

func (r *Impl) SumCommittedGross(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int64, error) {
	db = r.resolveDB(db)
	var total int64
	err := db.NewSelect().
		Model((*Payout)(nil)).
		ColumnExpr("COALESCE(SUM(gross_amount), 0)").
		Where("tournament_id = ?", tournamentID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum committed payouts: %w", err)
	}
	return total, nil
}

func (r *Impl) GetPayout(ctx context.Context, db bun.IDB, id uuid.UUID) (*Payout, error) {
	db = r.resolveDB(db)
	p := new(Payout)
	if err := db.NewSelect().Model(p).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

func (r *Impl) ListPayouts(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]Payout, error) {
	db = r.resolveDB(db)
	var payouts []Payout
	q := db.NewSelect().
		Model(&payouts).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC", "id ASC")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

func (r *Impl) ListPayoutIDsByStatus(ctx context.Context, db bun.IDB, status settlementdomain.PayoutStatus, limit int) ([]uuid.UUID, error) {
	db = r.resolveDB(db)
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*Payout)(nil)).
		Column("id").
		Where("status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts by status: %w", err)
	}
	return ids, nil
}

func (r *Impl) ListStalePayoutIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	db = r.resolveDB(db)
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*Payout)(nil)).
		Column("id").
		Where("status = ?", settlementdomain.PayoutStatusProcessing).
		Where("updated_at < ?", staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payouts: %w", err)
	}
	return ids, nil
}

func (r *Impl) ApprovePayout(ctx context.Context, db bun.IDB, id uuid.UUID, approvedBy *uuid.UUID) (*Payout, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	p := new(Payout)
	q := db.NewUpdate().
		Model(p).
		Set("status = ?", settlementdomain.PayoutStatusApproved).
		Set("approved_by = ?", approvedBy).
		Set("approved_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", settlementdomain.PayoutStatusPending)
	return p, execReturning(ctx, q, "approve payout")
}

func (r *Impl) ClaimPayout(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*Payout, error) {
	db = r.resolveDB(db)
	p := new(Payout)
	q := db.NewUpdate().
		Model(p).
		Set("status = ?", settlementdomain.PayoutStatusProcessing).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("status IN (?)", bun.In(settlementdomain.ClaimableStatuses)).
				WhereOr("status = ? AND updated_at < ?", settlementdomain.PayoutStatusProcessing, staleBefore)
		})
	if err := execReturning(ctx, q, "claim payout"); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, ErrNotClaimable
		}
		return nil, err
	}
	return p, nil
}

func (r *Impl) CompletePayout(ctx context.Context, db bun.IDB, id uuid.UUID, transferReference string) (*Payout, error) {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	p := new(Payout)
	q := db.NewUpdate().
		Model(p).
		Set("status = ?", settlementdomain.PayoutStatusCompleted).
		Set("transfer_reference = ?", transferReference).
		Set("failure_reason = NULL").
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", settlementdomain.PayoutStatusProcessing)
	return p, execReturning(ctx, q, "complete payout")
}

func (r *Impl) FailPayout(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) (*Payout, error) {
	db = r.resolveDB(db)
	p := new(Payout)
	q := db.NewUpdate().
		Model(p).
		Set("status = ?", settlementdomain.PayoutStatusFailed).
		Set("failure_reason = ?", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", settlementdomain.PayoutStatusProcessing)
	return p, execReturning(ctx, q, "fail payout")
}

func execReturning(ctx context.Context, q *bun.UpdateQuery, op string) error {
	res, err := q.Returning("*").Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusConflict
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return requireOneRow(res, ErrStatusConflict)
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
