package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a refund is not found.
	ErrNotFound = errors.New("refund not found")
	// ErrNotClaimable is returned when a refund is not in a claimable state.
	ErrNotClaimable = errors.New("refund not claimable")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new ledger repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) AppendEntry(ctx context.Context, db bun.IDB, entry *EscrowEntry) (bool, error) {
	db = r.resolveDB(db)
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	res, err := db.NewInsert().
		Model(entry).
		On("CONFLICT (kind, reference_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to append escrow entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *Impl) Totals(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (EscrowTotals, error) {
	db = r.resolveDB(db)
	var rows []struct {
		Kind  EntryKind `bun:"kind"`
		Total int64     `bun:"total"`
	}
	err := db.NewSelect().
		Model((*EscrowEntry)(nil)).
		Column("kind").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total").
		Where("tournament_id = ?", tournamentID).
		Group("kind").
		Scan(ctx, &rows)
	if err != nil {
		return EscrowTotals{}, fmt.Errorf("failed to sum escrow entries: %w", err)
	}

	var totals EscrowTotals
	for _, row := range rows {
		switch row.Kind {
		case EntryKindEntryFee:
			totals.EntryFees = row.Total
		case EntryKindTopUp:
			totals.TopUps = row.Total
		case EntryKindPayout:
			totals.Payouts = -row.Total
		case EntryKindRefund:
			totals.Refunds = -row.Total
		}
	}
	return totals, nil
}

func (r *Impl) ListEntries(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]EscrowEntry, error) {
	db = r.resolveDB(db)
	var entries []EscrowEntry
	err := db.NewSelect().
		Model(&entries).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow entries: %w", err)
	}
	return entries, nil
}

func (r *Impl) CreateRefund(ctx context.Context, db bun.IDB, refund *Refund) (bool, error) {
	db = r.resolveDB(db)
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	if refund.Status == "" {
		refund.Status = RefundStatusPending
	}
	res, err := db.NewInsert().
		Model(refund).
		On("CONFLICT (registration_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create refund: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *Impl) GetRefund(ctx context.Context, db bun.IDB, id uuid.UUID) (*Refund, error) {
	db = r.resolveDB(db)
	refund := new(Refund)
	err := db.NewSelect().Model(refund).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return refund, nil
}

func (r *Impl) GetRefundByRegistration(ctx context.Context, db bun.IDB, registrationID uuid.UUID) (*Refund, error) {
	db = r.resolveDB(db)
	refund := new(Refund)
	err := db.NewSelect().Model(refund).Where("registration_id = ?", registrationID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refund by registration: %w", err)
	}
	return refund, nil
}

func (r *Impl) ClaimRefund(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*Refund, error) {
	db = r.resolveDB(db)
	refund := new(Refund)
	res, err := db.NewUpdate().
		Model(refund).
		Set("status = ?", RefundStatusProcessing).
		Set("attempts = attempts + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("status IN (?)", bun.In([]RefundStatus{RefundStatusPending, RefundStatusFailed})).
				WhereOr("status = ? AND updated_at < ?", RefundStatusProcessing, staleBefore)
		}).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotClaimable
		}
		return nil, fmt.Errorf("failed to claim refund: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrNotClaimable
	}
	return refund, nil
}

func (r *Impl) CompleteRefund(ctx context.Context, db bun.IDB, id uuid.UUID, gatewayRefundID string) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	res, err := db.NewUpdate().
		Model((*Refund)(nil)).
		Set("status = ?", RefundStatusCompleted).
		Set("gateway_refund_id = ?", gatewayRefundID).
		Set("failure_reason = NULL").
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", RefundStatusProcessing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete refund: %w", err)
	}
	return requireOneRow(res, ErrNotClaimable)
}

func (r *Impl) FailRefund(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Refund)(nil)).
		Set("status = ?", RefundStatusFailed).
		Set("failure_reason = ?", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", RefundStatusProcessing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark refund failed: %w", err)
	}
	return requireOneRow(res, ErrNotClaimable)
}

func (r *Impl) ListRefunds(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]Refund, error) {
	db = r.resolveDB(db)
	var refunds []Refund
	err := db.NewSelect().
		Model(&refunds).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

func (r *Impl) ListRefundIDsByStatus(ctx context.Context, db bun.IDB, status RefundStatus, limit int) ([]uuid.UUID, error) {
	db = r.resolveDB(db)
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*Refund)(nil)).
		Column("id").
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds by status: %w", err)
	}
	return ids, nil
}

func (r *Impl) ListStaleRefundIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	db = r.resolveDB(db)
	var ids []uuid.UUID
	err := db.NewSelect().
		Model((*Refund)(nil)).
		Column("id").
		Where("status = ?", RefundStatusProcessing).
		Where("updated_at < ?", staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale refunds: %w", err)
	}
	return ids, nil
}

func (r *Impl) RecordAudit(ctx context.Context, db bun.IDB, event *AuditEvent) error {
	db = r.resolveDB(db)
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, err := db.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (r *Impl) ListAudit(ctx context.Context, db bun.IDB, entityType string, entityID uuid.UUID) ([]AuditEvent, error) {
	db = r.resolveDB(db)
	var events []AuditEvent
	err := db.NewSelect().
		Model(&events).
		Where("entity_type = ?", entityType).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
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
