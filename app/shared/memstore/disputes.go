package memstore

import (
	"context"
	"sort"

	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type disputeRepo struct{ s *Store }

func cloneDispute(d *disputedb.Dispute) *disputedb.Dispute {
	c := *d
	return &c
}

func (r *disputeRepo) Create(ctx context.Context, db bun.IDB, d *disputedb.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = disputedomain.StatusOpen
	}
	ts := now()
	d.CreatedAt, d.UpdatedAt = ts, ts
	r.s.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (r *disputeRepo) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*disputedb.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok {
		return nil, disputedb.ErrNotFound
	}
	return cloneDispute(d), nil
}

func (r *disputeRepo) List(ctx context.Context, db bun.IDB, filter disputedb.ListFilter) ([]disputedb.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []disputedb.Dispute
	for _, d := range r.s.disputes {
		if d.TournamentID != filter.TournamentID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *disputeRepo) ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr disputedb.Transition) (*disputedb.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok || !contains(tr.From, d.Status) {
		return nil, disputedb.ErrStatusConflict
	}
	ts := now()
	d.Status = tr.To
	d.UpdatedAt = ts
	if tr.To.IsTerminal() {
		d.Resolution = tr.Resolution
		d.ResolvedBy = tr.ActorID
		d.ResolvedAt = &ts
	}
	return cloneDispute(d), nil
}

func (r *disputeRepo) HasBlocking(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.disputes {
		if d.TournamentID != tournamentID || !d.Status.IsBlocking() {
			continue
		}
		if d.MatchID == nil || (matchID != nil && *d.MatchID == *matchID) {
			return true, nil
		}
	}
	return false, nil
}
