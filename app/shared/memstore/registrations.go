package memstore

import (
	"context"
	"sort"
	"time"

	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type registrationRepo struct{ s *Store }

func cloneRegistration(r *registrationdb.Registration) *registrationdb.Registration {
	c := *r
	c.TeamMembers = cloneSlice(r.TeamMembers)
	return &c
}

func (r *registrationRepo) Create(ctx context.Context, db bun.IDB, reg *registrationdb.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.registrations {
		if row.reg.TournamentID == reg.TournamentID && row.reg.ParticipantID == reg.ParticipantID && row.reg.Status.IsActive() {
			return registrationdb.ErrAlreadyRegistered
		}
	}
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	if reg.Status == "" {
		reg.Status = registrationdomain.StatusInitiated
	}
	ts := now()
	reg.CreatedAt, reg.UpdatedAt = ts, ts
	r.s.registrations[reg.ID] = &registrationRow{reg: *cloneRegistration(reg), seq: r.s.next()}
	return nil
}

func (r *registrationRepo) find(match func(*registrationdb.Registration) bool) *registrationRow {
	var found *registrationRow
	for _, row := range r.s.registrations {
		if match(&row.reg) && (found == nil || row.seq > found.seq) {
			found = row
		}
	}
	return found
}

func (r *registrationRepo) getWhere(match func(*registrationdb.Registration) bool) (*registrationdb.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := r.find(match)
	if row == nil {
		return nil, registrationdb.ErrNotFound
	}
	return cloneRegistration(&row.reg), nil
}

func (r *registrationRepo) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*registrationdb.Registration, error) {
	return r.getWhere(func(reg *registrationdb.Registration) bool { return reg.ID == id })
}

func (r *registrationRepo) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*registrationdb.Registration, error) {
	return r.GetByID(ctx, db, id)
}

func (r *registrationRepo) GetByOrderID(ctx context.Context, db bun.IDB, orderID string) (*registrationdb.Registration, error) {
	return r.getWhere(func(reg *registrationdb.Registration) bool {
		return reg.PaymentOrderID != nil && *reg.PaymentOrderID == orderID
	})
}

func (r *registrationRepo) GetActiveByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*registrationdb.Registration, error) {
	return r.getWhere(func(reg *registrationdb.Registration) bool {
		return reg.TournamentID == tournamentID && reg.ParticipantID == participantID && reg.Status.IsActive()
	})
}

func (r *registrationRepo) GetLatestByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*registrationdb.Registration, error) {
	return r.getWhere(func(reg *registrationdb.Registration) bool {
		return reg.TournamentID == tournamentID && reg.ParticipantID == participantID
	})
}

// update applies fn to the row when its status is in from.
func (r *registrationRepo) update(id uuid.UUID, from []registrationdomain.Status, fn func(*registrationdb.Registration)) (*registrationdb.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.registrations[id]
	if !ok || !contains(from, row.reg.Status) {
		return nil, registrationdb.ErrStatusConflict
	}
	fn(&row.reg)
	row.reg.UpdatedAt = now()
	return cloneRegistration(&row.reg), nil
}

func (r *registrationRepo) MarkAwaitingPayment(ctx context.Context, db bun.IDB, id uuid.UUID, deadline time.Time) (*registrationdb.Registration, error) {
	return r.update(id, []registrationdomain.Status{registrationdomain.StatusInitiated}, func(reg *registrationdb.Registration) {
		reg.Status = registrationdomain.StatusAwaitingPayment
		reg.PaymentDeadline = ptr(deadline)
	})
}

func (r *registrationRepo) SetPaymentOrder(ctx context.Context, db bun.IDB, id uuid.UUID, orderID string) error {
	_, err := r.update(id, registrationdomain.PendingStatuses, func(reg *registrationdb.Registration) {
		reg.PaymentOrderID = ptr(orderID)
	})
	return err
}

func (r *registrationRepo) Confirm(ctx context.Context, db bun.IDB, id uuid.UUID, params registrationdb.ConfirmParams) (*registrationdb.Registration, error) {
	r.s.mu.Lock()
	for _, row := range r.s.registrations {
		if row.reg.ID != id && row.reg.SlotNumber != nil && *row.reg.SlotNumber == params.SlotNumber {
			if cur, ok := r.s.registrations[id]; ok && cur.reg.TournamentID == row.reg.TournamentID {
				r.s.mu.Unlock()
				return nil, errDuplicateSlot
			}
		}
	}
	r.s.mu.Unlock()

	return r.update(id, params.From, func(reg *registrationdb.Registration) {
		reg.Status = registrationdomain.StatusConfirmed
		reg.SlotNumber = ptr(params.SlotNumber)
		reg.AmountPaid = params.AmountPaid
		reg.PaymentReference = ptr(params.PaymentReference)
		reg.ConfirmedAt = ptr(params.ConfirmedAt)
	})
}

func (r *registrationRepo) Cancel(ctx context.Context, db bun.IDB, id uuid.UUID, from []registrationdomain.Status, reason string) (*registrationdb.Registration, error) {
	return r.update(id, from, func(reg *registrationdb.Registration) {
		ts := now()
		reg.Status = registrationdomain.StatusCancelled
		reg.CancellationReason = ptr(reason)
		reg.CancelledAt = &ts
	})
}

func (r *registrationRepo) RecordLatePayment(ctx context.Context, db bun.IDB, id uuid.UUID, paymentReference string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.registrations[id]
	if !ok || row.reg.PaymentReference != nil {
		return registrationdb.ErrStatusConflict
	}
	row.reg.PaymentReference = ptr(paymentReference)
	row.reg.AmountPaid = amount
	row.reg.UpdatedAt = now()
	return nil
}

func (r *registrationRepo) ClaimExpired(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, at time.Time, limit int) ([]registrationdb.ExpiredRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var candidates []*registrationRow
	for _, row := range r.s.registrations {
		reg := &row.reg
		if reg.TournamentID == tournamentID && reg.Status.IsPending() && reg.PaymentDeadline != nil && reg.PaymentDeadline.Before(at) {
			candidates = append(candidates, row)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].reg.PaymentDeadline.Before(*candidates[j].reg.PaymentDeadline)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	claimed := make([]registrationdb.ExpiredRegistration, 0, len(candidates))
	for _, row := range candidates {
		from := row.reg.Status
		row.reg.Status = registrationdomain.StatusExpired
		row.reg.ExpiredAt = ptr(at)
		row.reg.UpdatedAt = at
		claimed = append(claimed, registrationdb.ExpiredRegistration{Registration: *cloneRegistration(&row.reg), From: from})
	}
	return claimed, nil
}

func (r *registrationRepo) TournamentsWithExpired(ctx context.Context, db bun.IDB, at time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, row := range r.s.registrations {
		reg := &row.reg
		if !reg.Status.IsPending() || reg.PaymentDeadline == nil || !reg.PaymentDeadline.Before(at) {
			continue
		}
		if _, ok := seen[reg.TournamentID]; ok {
			continue
		}
		seen[reg.TournamentID] = struct{}{}
		ids = append(ids, reg.TournamentID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *registrationRepo) cancelWhere(tournamentID uuid.UUID, from []registrationdomain.Status, reason string) []registrationdb.Registration {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := now()
	var out []registrationdb.Registration
	for _, row := range r.s.registrations {
		if row.reg.TournamentID != tournamentID || !contains(from, row.reg.Status) {
			continue
		}
		row.reg.Status = registrationdomain.StatusCancelled
		row.reg.CancellationReason = ptr(reason)
		row.reg.CancelledAt = ptr(ts)
		row.reg.UpdatedAt = ts
		out = append(out, *cloneRegistration(&row.reg))
	}
	return out
}

func (r *registrationRepo) CancelPendingForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]registrationdb.Registration, error) {
	return r.cancelWhere(tournamentID, registrationdomain.PendingStatuses, reason), nil
}

func (r *registrationRepo) CancelConfirmedForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]registrationdb.Registration, error) {
	return r.cancelWhere(tournamentID, []registrationdomain.Status{registrationdomain.StatusConfirmed}, reason), nil
}

func (r *registrationRepo) ListByStatus(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, statuses ...registrationdomain.Status) ([]registrationdb.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*registrationRow
	for _, row := range r.s.registrations {
		if row.reg.TournamentID != tournamentID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, row.reg.Status) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].reg.SlotNumber, rows[j].reg.SlotNumber
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]registrationdb.Registration, 0, len(rows))
	for _, row := range rows {
		out = append(out, *cloneRegistration(&row.reg))
	}
	return out, nil
}

func (r *registrationRepo) Roster(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]registrationdb.RosterEntry, error) {
	regs, err := r.ListByStatus(ctx, db, tournamentID, registrationdomain.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	roster := make([]registrationdb.RosterEntry, 0, len(regs))
	for _, reg := range regs {
		roster = append(roster, registrationdb.RosterEntry{TeamName: reg.TeamName, SlotNumber: reg.SlotNumber, Status: reg.Status})
	}
	return roster, nil
}
