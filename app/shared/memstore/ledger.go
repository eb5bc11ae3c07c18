package memstore

import (
	"context"
	"sort"
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ledgerRepo struct{ s *Store }

func cloneRefund(r *ledgerdb.Refund) *ledgerdb.Refund {
	c := *r
	return &c
}

func (r *ledgerRepo) AppendEntry(ctx context.Context, db bun.IDB, entry *ledgerdb.EscrowEntry) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.Kind == entry.Kind && e.ReferenceID == entry.ReferenceID {
			return false, nil
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = now()
	r.s.entries = append(r.s.entries, *entry)
	return true, nil
}

func (r *ledgerRepo) Totals(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (ledgerdb.EscrowTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var t ledgerdb.EscrowTotals
	for _, e := range r.s.entries {
		if e.TournamentID != tournamentID {
			continue
		}
		switch e.Kind {
		case ledgerdb.EntryKindEntryFee:
			t.EntryFees += e.Amount
		case ledgerdb.EntryKindTopUp:
			t.TopUps += e.Amount
		case ledgerdb.EntryKindPayout:
			t.Payouts -= e.Amount
		case ledgerdb.EntryKindRefund:
			t.Refunds -= e.Amount
		}
	}
	return t, nil
}

func (r *ledgerRepo) ListEntries(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]ledgerdb.EscrowEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ledgerdb.EscrowEntry
	for _, e := range r.s.entries {
		if e.TournamentID == tournamentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *ledgerRepo) CreateRefund(ctx context.Context, db bun.IDB, refund *ledgerdb.Refund) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.refunds {
		if existing.RegistrationID == refund.RegistrationID {
			return false, nil
		}
	}
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	if refund.Status == "" {
		refund.Status = ledgerdb.RefundStatusPending
	}
	ts := now()
	refund.CreatedAt, refund.UpdatedAt = ts, ts
	r.s.refunds[refund.ID] = cloneRefund(refund)
	return true, nil
}

func (r *ledgerRepo) GetRefund(ctx context.Context, db bun.IDB, id uuid.UUID) (*ledgerdb.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund, ok := r.s.refunds[id]
	if !ok {
		return nil, ledgerdb.ErrNotFound
	}
	return cloneRefund(refund), nil
}

func (r *ledgerRepo) GetRefundByRegistration(ctx context.Context, db bun.IDB, registrationID uuid.UUID) (*ledgerdb.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, refund := range r.s.refunds {
		if refund.RegistrationID == registrationID {
			return cloneRefund(refund), nil
		}
	}
	return nil, ledgerdb.ErrNotFound
}

func (r *ledgerRepo) transition(id uuid.UUID, from []ledgerdb.RefundStatus, fn func(*ledgerdb.Refund)) (*ledgerdb.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund, ok := r.s.refunds[id]
	if !ok || !contains(from, refund.Status) {
		return nil, ledgerdb.ErrNotClaimable
	}
	fn(refund)
	refund.UpdatedAt = now()
	return cloneRefund(refund), nil
}

func (r *ledgerRepo) ClaimRefund(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*ledgerdb.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund, ok := r.s.refunds[id]
	if !ok {
		return nil, ledgerdb.ErrNotClaimable
	}
	stale := refund.Status == ledgerdb.RefundStatusProcessing && refund.UpdatedAt.Before(staleBefore)
	if !stale && refund.Status != ledgerdb.RefundStatusPending && refund.Status != ledgerdb.RefundStatusFailed {
		return nil, ledgerdb.ErrNotClaimable
	}
	refund.Status = ledgerdb.RefundStatusProcessing
	refund.Attempts++
	refund.UpdatedAt = now()
	return cloneRefund(refund), nil
}

func (r *ledgerRepo) CompleteRefund(ctx context.Context, db bun.IDB, id uuid.UUID, gatewayRefundID string) error {
	from := []ledgerdb.RefundStatus{ledgerdb.RefundStatusProcessing}
	_, err := r.transition(id, from, func(refund *ledgerdb.Refund) {
		refund.Status = ledgerdb.RefundStatusCompleted
		refund.GatewayRefundID = ptr(gatewayRefundID)
		refund.FailureReason = nil
		refund.CompletedAt = ptr(now())
	})
	return err
}

func (r *ledgerRepo) FailRefund(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) error {
	from := []ledgerdb.RefundStatus{ledgerdb.RefundStatusProcessing}
	_, err := r.transition(id, from, func(refund *ledgerdb.Refund) {
		refund.Status = ledgerdb.RefundStatusFailed
		refund.FailureReason = ptr(reason)
	})
	return err
}

func (r *ledgerRepo) sortedRefunds(match func(*ledgerdb.Refund) bool) []*ledgerdb.Refund {
	var out []*ledgerdb.Refund
	for _, refund := range r.s.refunds {
		if match(refund) {
			out = append(out, refund)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *ledgerRepo) ListRefunds(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]ledgerdb.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ledgerdb.Refund
	for _, refund := range r.sortedRefunds(func(rf *ledgerdb.Refund) bool { return rf.TournamentID == tournamentID }) {
		out = append(out, *refund)
	}
	return out, nil
}

func (r *ledgerRepo) ListRefundIDsByStatus(ctx context.Context, db bun.IDB, status ledgerdb.RefundStatus, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for _, refund := range r.sortedRefunds(func(rf *ledgerdb.Refund) bool { return rf.Status == status }) {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, refund.ID)
	}
	return ids, nil
}

func (r *ledgerRepo) ListStaleRefundIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stale := r.sortedRefunds(func(rf *ledgerdb.Refund) bool {
		return rf.Status == ledgerdb.RefundStatusProcessing && rf.UpdatedAt.Before(staleBefore)
	})
	sort.SliceStable(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	var ids []uuid.UUID
	for _, refund := range stale {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, refund.ID)
	}
	return ids, nil
}

func (r *ledgerRepo) RecordAudit(ctx context.Context, db bun.IDB, event *ledgerdb.AuditEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = now()
	r.s.audit = append(r.s.audit, *event)
	return nil
}

func (r *ledgerRepo) ListAudit(ctx context.Context, db bun.IDB, entityType string, entityID uuid.UUID) ([]ledgerdb.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ledgerdb.AuditEvent
	for _, e := range r.s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
