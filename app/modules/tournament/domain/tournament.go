package tournamentdomain

import (
	"fmt"
	"strings"
	"time"
)

// Terms are the organizer-controlled economics of a tournament.
type Terms struct {
	Name         string
	Game         string
	Capacity     int
	EntryFee     int64
	Currency     string
	PrizePool    int64
	PrizePerKill *int64
	PrizeTable   []int64
	StartsAt     time.Time
}

// Validate checks the terms against now. Errors are user-facing.
func (t Terms) Validate(now time.Time) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if t.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	if t.EntryFee < 0 {
		return fmt.Errorf("entry_fee must not be negative")
	}
	if t.PrizePool < 0 {
		return fmt.Errorf("prize_pool must not be negative")
	}
	if t.PrizePerKill != nil && *t.PrizePerKill < 0 {
		return fmt.Errorf("prize_per_kill must not be negative")
	}
	var sum int64
	for i, p := range t.PrizeTable {
		if p < 0 {
			return fmt.Errorf("prize_table[%d] must not be negative", i)
		}
		next, ok := AddAmounts(sum, p)
		if !ok {
			return fmt.Errorf("prize_table sum overflows")
		}
		sum = next
	}
	if sum > t.PrizePool {
		return fmt.Errorf("prize_table sums to %d which exceeds prize_pool %d", sum, t.PrizePool)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	if !t.StartsAt.After(now) {
		return fmt.Errorf("starts_at must be in the future")
	}
	return nil
}

// PlacementPrize returns the prize for a 1-based placement. An empty table
// awards the whole pool to placement 1.
func PlacementPrize(prizeTable []int64, prizePool int64, placement int) int64 {
	if placement < 1 {
		return 0
	}
	if len(prizeTable) == 0 {
		if placement == 1 {
			return prizePool
		}
		return 0
	}
	if placement > len(prizeTable) {
		return 0
	}
	return prizeTable[placement-1]
}
