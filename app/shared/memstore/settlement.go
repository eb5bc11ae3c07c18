package memstore

import (
	"context"
	"errors"
	"sort"
	"time"

	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var errDuplicatePayout = errors.New("duplicate key value violates unique constraint \"payouts_match_result_id_registration_id_key\"")

type settlementRepo struct{ s *Store }

func cloneMatch(m *settlementdb.Match) *settlementdb.Match {
	c := *m
	return &c
}

func cloneResult(r *settlementdb.MatchResult) *settlementdb.MatchResult {
	c := *r
	c.Entries = cloneSlice(r.Entries)
	c.EvidenceRefs = cloneSlice(r.EvidenceRefs)
	return &c
}

func (r *settlementRepo) CreateMatch(ctx context.Context, db bun.IDB, m *settlementdb.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = settlementdomain.MatchStatusScheduled
	}
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	r.s.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r *settlementRepo) GetMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*settlementdb.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, settlementdb.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (r *settlementRepo) ListMatches(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]settlementdb.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []settlementdb.Match
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *settlementRepo) UpsertResult(ctx context.Context, db bun.IDB, result *settlementdb.MatchResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := now()
	result.Status = settlementdomain.ResultStatusSubmitted
	result.SubmittedAt = ts
	result.UpdatedAt = ts
	for _, existing := range r.s.results {
		if existing.MatchID != result.MatchID {
			continue
		}
		if !existing.Status.IsEditable() {
			return settlementdb.ErrStatusConflict
		}
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		result.RejectionReason = nil
		result.RejectedAt = nil
		result.VerifiedBy = existing.VerifiedBy
		result.VerifiedAt = existing.VerifiedAt
		r.s.results[existing.ID] = cloneResult(result)
		return nil
	}
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CreatedAt = ts
	r.s.results[result.ID] = cloneResult(result)
	return nil
}

func (r *settlementRepo) findResult(match func(*settlementdb.MatchResult) bool) (*settlementdb.MatchResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, result := range r.s.results {
		if match(result) {
			return cloneResult(result), nil
		}
	}
	return nil, settlementdb.ErrNotFound
}

func (r *settlementRepo) GetResultByMatch(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*settlementdb.MatchResult, error) {
	return r.findResult(func(mr *settlementdb.MatchResult) bool { return mr.MatchID == matchID })
}

func (r *settlementRepo) GetResultByMatchForUpdate(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*settlementdb.MatchResult, error) {
	return r.GetResultByMatch(ctx, db, matchID)
}

func (r *settlementRepo) GetResult(ctx context.Context, db bun.IDB, id uuid.UUID) (*settlementdb.MatchResult, error) {
	return r.findResult(func(mr *settlementdb.MatchResult) bool { return mr.ID == id })
}

func (r *settlementRepo) updateResult(id uuid.UUID, fn func(*settlementdb.MatchResult)) (*settlementdb.MatchResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result, ok := r.s.results[id]
	if !ok || result.Status != settlementdomain.ResultStatusSubmitted {
		return nil, settlementdb.ErrStatusConflict
	}
	fn(result)
	result.UpdatedAt = now()
	return cloneResult(result), nil
}

func (r *settlementRepo) MarkResultVerified(ctx context.Context, db bun.IDB, id, verifiedBy uuid.UUID) (*settlementdb.MatchResult, error) {
	return r.updateResult(id, func(mr *settlementdb.MatchResult) {
		mr.Status = settlementdomain.ResultStatusVerified
		mr.VerifiedBy = ptr(verifiedBy)
		mr.VerifiedAt = ptr(now())
	})
}

func (r *settlementRepo) MarkResultRejected(ctx context.Context, db bun.IDB, id, rejectedBy uuid.UUID, reason string) (*settlementdb.MatchResult, error) {
	return r.updateResult(id, func(mr *settlementdb.MatchResult) {
		mr.Status = settlementdomain.ResultStatusRejected
		mr.RejectionReason = ptr(reason)
		mr.VerifiedBy = ptr(rejectedBy)
		mr.RejectedAt = ptr(now())
	})
}

func (r *settlementRepo) CreatePayouts(ctx context.Context, db bun.IDB, payouts []settlementdb.Payout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range payouts {
		for _, row := range r.s.payouts {
			if row.payout.MatchResultID == p.MatchResultID && row.payout.RegistrationID == p.RegistrationID {
				return errDuplicatePayout
			}
		}
	}
	ts := now()
	for i := range payouts {
		if payouts[i].ID == uuid.Nil {
			payouts[i].ID = uuid.New()
		}
		if payouts[i].Status == "" {
			payouts[i].Status = settlementdomain.PayoutStatusPending
		}
		payouts[i].CreatedAt, payouts[i].UpdatedAt = ts, ts
		r.s.payouts[payouts[i].ID] = &payoutRow{payout: payouts[i], seq: r.s.next()}
	}
	return nil
}

func (r *settlementRepo) SumCommittedGross(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, row := range r.s.payouts {
		if row.payout.TournamentID == tournamentID {
			total += row.payout.GrossAmount
		}
	}
	return total, nil
}

func (r *settlementRepo) GetPayout(ctx context.Context, db bun.IDB, id uuid.UUID) (*settlementdb.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.payouts[id]
	if !ok {
		return nil, settlementdb.ErrNotFound
	}
	p := row.payout
	return &p, nil
}

func (r *settlementRepo) sortedPayouts(match func(*settlementdb.Payout) bool) []*payoutRow {
	var rows []*payoutRow
	for _, row := range r.s.payouts {
		if match(&row.payout) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (r *settlementRepo) ListPayouts(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]settlementdb.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.sortedPayouts(func(p *settlementdb.Payout) bool {
		return p.TournamentID == tournamentID && (status == nil || p.Status == *status)
	})
	out := make([]settlementdb.Payout, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.payout)
	}
	return out, nil
}

func (r *settlementRepo) ListPayoutIDsByStatus(ctx context.Context, db bun.IDB, status settlementdomain.PayoutStatus, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for _, row := range r.sortedPayouts(func(p *settlementdb.Payout) bool { return p.Status == status }) {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, row.payout.ID)
	}
	return ids, nil
}

func (r *settlementRepo) ListStalePayoutIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stale := r.sortedPayouts(func(p *settlementdb.Payout) bool {
		return p.Status == settlementdomain.PayoutStatusProcessing && p.UpdatedAt.Before(staleBefore)
	})
	sort.SliceStable(stale, func(i, j int) bool { return stale[i].payout.UpdatedAt.Before(stale[j].payout.UpdatedAt) })
	var ids []uuid.UUID
	for _, row := range stale {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, row.payout.ID)
	}
	return ids, nil
}

func (r *settlementRepo) updatePayout(id uuid.UUID, from []settlementdomain.PayoutStatus, fn func(*settlementdb.Payout)) (*settlementdb.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.payouts[id]
	if !ok || !contains(from, row.payout.Status) {
		return nil, settlementdb.ErrStatusConflict
	}
	fn(&row.payout)
	row.payout.UpdatedAt = now()
	p := row.payout
	return &p, nil
}

func (r *settlementRepo) ApprovePayout(ctx context.Context, db bun.IDB, id uuid.UUID, approvedBy *uuid.UUID) (*settlementdb.Payout, error) {
	return r.updatePayout(id, []settlementdomain.PayoutStatus{settlementdomain.PayoutStatusPending}, func(p *settlementdb.Payout) {
		p.Status = settlementdomain.PayoutStatusApproved
		p.ApprovedBy = approvedBy
		p.ApprovedAt = ptr(now())
	})
}

func (r *settlementRepo) ClaimPayout(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*settlementdb.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.payouts[id]
	if !ok {
		return nil, settlementdb.ErrNotClaimable
	}
	p := &row.payout
	stale := p.Status == settlementdomain.PayoutStatusProcessing && p.UpdatedAt.Before(staleBefore)
	if !stale && !contains(settlementdomain.ClaimableStatuses, p.Status) {
		return nil, settlementdb.ErrNotClaimable
	}
	p.Status = settlementdomain.PayoutStatusProcessing
	p.Attempts++
	p.UpdatedAt = now()
	claimed := *p
	return &claimed, nil
}

func (r *settlementRepo) CompletePayout(ctx context.Context, db bun.IDB, id uuid.UUID, transferReference string) (*settlementdb.Payout, error) {
	return r.updatePayout(id, []settlementdomain.PayoutStatus{settlementdomain.PayoutStatusProcessing}, func(p *settlementdb.Payout) {
		p.Status = settlementdomain.PayoutStatusCompleted
		p.TransferReference = ptr(transferReference)
		p.FailureReason = nil
		p.CompletedAt = ptr(now())
	})
}

func (r *settlementRepo) FailPayout(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) (*settlementdb.Payout, error) {
	return r.updatePayout(id, []settlementdomain.PayoutStatus{settlementdomain.PayoutStatusProcessing}, func(p *settlementdb.Payout) {
		p.Status = settlementdomain.PayoutStatusFailed
		p.FailureReason = ptr(reason)
	})
}
