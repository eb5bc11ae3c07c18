package registrationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrCounterUnderflow means a release or confirm found the counters in a
// state that should be impossible. It always aborts the transaction.
var ErrCounterUnderflow = errors.New("slot counters out of range")

// Slots implements SlotAllocator with conditional updates on tournaments.
type Slots struct {
	db bun.IDB
}

// NewSlotAllocator creates a new slot allocator.
func NewSlotAllocator(db bun.IDB) SlotAllocator {
	return &Slots{db: db}
}

func (s *Slots) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return s.db
	}
	return db
}

func (s *Slots) Reserve(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (bool, error) {
	db = s.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*tournamentdb.Tournament)(nil)).
		Set("reserved_slots = reserved_slots + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", tournamentID).
		Where("status = ?", tournamentdomain.StatusRegistrationOpen).
		Where("reserved_slots < capacity").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *Slots) Release(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	db = s.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*tournamentdb.Tournament)(nil)).
		Set("reserved_slots = reserved_slots - ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", tournamentID).
		Where("reserved_slots - ? >= current_participants", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release slots: %w", err)
	}
	return requireOneRow(res, ErrCounterUnderflow)
}

func (s *Slots) Confirm(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int, error) {
	db = s.resolveDB(db)
	var slot int
	err := db.NewUpdate().
		Model((*tournamentdb.Tournament)(nil)).
		Set("current_participants = current_participants + 1").
		Set("next_slot_number = next_slot_number + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", tournamentID).
		Where("current_participants < reserved_slots").
		Returning("next_slot_number").
		Scan(ctx, &slot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCounterUnderflow
		}
		return 0, fmt.Errorf("failed to confirm slot: %w", err)
	}
	return slot, nil
}

func (s *Slots) ReleaseConfirmed(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}
	db = s.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*tournamentdb.Tournament)(nil)).
		Set("current_participants = current_participants - ?", n).
		Set("reserved_slots = reserved_slots - ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", tournamentID).
		Where("current_participants >= ?", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release confirmed slots: %w", err)
	}
	return requireOneRow(res, ErrCounterUnderflow)
}
