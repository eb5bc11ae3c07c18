package memstore

import (
	"context"
	"fmt"
	"sort"

	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type tournamentRepo struct{ s *Store }

func cloneTournament(t *tournamentdb.Tournament) *tournamentdb.Tournament {
	c := *t
	c.PrizeTable = cloneSlice(t.PrizeTable)
	if t.PrizePerKill != nil {
		c.PrizePerKill = ptr(*t.PrizePerKill)
	}
	return &c
}

func (r *tournamentRepo) Create(ctx context.Context, db bun.IDB, t *tournamentdb.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, ok := r.s.tournaments[t.ID]; ok {
		return fmt.Errorf("failed to create tournament: duplicate id %s", t.ID)
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	r.s.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *tournamentRepo) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*tournamentdb.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, tournamentdb.ErrNotFound
	}
	return cloneTournament(t), nil
}

func (r *tournamentRepo) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return r.GetByID(ctx, db, id)
}

func (r *tournamentRepo) GetForShare(ctx context.Context, db bun.IDB, id uuid.UUID) (*tournamentdb.Tournament, error) {
	return r.GetByID(ctx, db, id)
}

func (r *tournamentRepo) List(ctx context.Context, db bun.IDB, filter tournamentdb.ListFilter) ([]tournamentdb.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []tournamentdb.Tournament
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *cloneTournament(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *tournamentRepo) UpdateTerms(ctx context.Context, db bun.IDB, t *tournamentdb.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tournaments[t.ID]
	if !ok || cur.Status != tournamentdomain.StatusDraft {
		return tournamentdb.ErrStatusConflict
	}
	cur.Name, cur.Game, cur.Capacity = t.Name, t.Game, t.Capacity
	cur.EntryFee, cur.Currency, cur.PrizePool = t.EntryFee, t.Currency, t.PrizePool
	cur.PrizePerKill = nil
	if t.PrizePerKill != nil {
		cur.PrizePerKill = ptr(*t.PrizePerKill)
	}
	cur.PrizeTable = cloneSlice(t.PrizeTable)
	cur.StartsAt = t.StartsAt
	cur.UpdatedAt = now()
	t.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *tournamentRepo) ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr tournamentdb.Transition) (*tournamentdb.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || !contains(tr.From, t.Status) {
		return nil, tournamentdb.ErrStatusConflict
	}
	ts := now()
	t.Status = tr.To
	t.UpdatedAt = ts
	switch tr.To {
	case tournamentdomain.StatusDraft:
		t.RejectionReason = tr.RejectionReason
	case tournamentdomain.StatusPendingApproval, tournamentdomain.StatusApproved:
		t.RejectionReason = nil
	case tournamentdomain.StatusRegistrationOpen:
		t.OpenedAt = ptr(ts)
	case tournamentdomain.StatusRegistrationClosed:
		t.ClosedAt = ptr(ts)
	case tournamentdomain.StatusLive:
		t.StartedAt = ptr(ts)
	case tournamentdomain.StatusCompleted:
		t.CompletedAt = ptr(ts)
	case tournamentdomain.StatusCancelled:
		t.CancelledAt = ptr(ts)
		t.CancellationReason = tr.CancellationReason
	}
	return cloneTournament(t), nil
}

func (r *tournamentRepo) AdjustEscrow(ctx context.Context, db bun.IDB, id uuid.UUID, delta tournamentdb.EscrowDelta) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return tournamentdb.ErrNotFound
	}
	next := *t
	next.EscrowCollected += delta.Collected
	next.EscrowTopUp += delta.TopUp
	next.EscrowRefunded += delta.Refunded
	next.EscrowReleased += delta.Released
	if next.EscrowCollected < 0 || next.EscrowTopUp < 0 || next.EscrowRefunded < 0 || next.EscrowReleased < 0 {
		return fmt.Errorf("failed to adjust escrow counters: tournaments_escrow_non_negative violated")
	}
	*t = next
	t.UpdatedAt = now()
	return nil
}

type slotAllocator struct{ s *Store }

func (a *slotAllocator) Reserve(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (bool, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	t, ok := a.s.tournaments[tournamentID]
	if !ok || t.Status != tournamentdomain.StatusRegistrationOpen || t.ReservedSlots >= t.Capacity {
		return false, nil
	}
	t.ReservedSlots++
	return true, nil
}

func (a *slotAllocator) Release(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	t, ok := a.s.tournaments[tournamentID]
	if !ok || t.ReservedSlots-n < t.CurrentParticipants {
		return registrationdb.ErrCounterUnderflow
	}
	t.ReservedSlots -= n
	return nil
}

func (a *slotAllocator) Confirm(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	t, ok := a.s.tournaments[tournamentID]
	if !ok || t.CurrentParticipants >= t.ReservedSlots {
		return 0, registrationdb.ErrCounterUnderflow
	}
	t.CurrentParticipants++
	t.NextSlotNumber++
	return t.NextSlotNumber, nil
}

func (a *slotAllocator) ReleaseConfirmed(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	t, ok := a.s.tournaments[tournamentID]
	if !ok || t.CurrentParticipants < n {
		return registrationdb.ErrCounterUnderflow
	}
	t.CurrentParticipants -= n
	t.ReservedSlots -= n
	return nil
}
