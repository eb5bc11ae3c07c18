package settlementdomain

import (
	"errors"
	"fmt"

	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/google/uuid"
)

// MaxFeeRateBps is 100%.
const MaxFeeRateBps = 10000

// Entry is one registration's outcome in a match.
type Entry struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	Placement      int       `json:"placement"`
	Kills          int       `json:"kills"`
}

// PrizeTerms are the tournament economics that price a result.
type PrizeTerms struct {
	PrizePool    int64
	PrizeTable   []int64
	PrizePerKill *int64
}

// Award is the amount owed to one entry.
type Award struct {
	Entry
	Gross int64
	Fee   int64
	Net   int64
}

// ErrAmountOverflow is returned when prize arithmetic does not fit in an
// int64.
var ErrAmountOverflow = errors.New("prize amount overflows")

// ValidateEntries checks placements are unique and at least 1, kills are
// non-negative and no registration appears twice.
func ValidateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	var kills int64
	placements := make(map[int]struct{}, len(entries))
	regs := make(map[uuid.UUID]struct{}, len(entries))
	for i, e := range entries {
		if e.RegistrationID == uuid.Nil {
			return fmt.Errorf("entries[%d].registration_id is required", i)
		}
		if e.Placement < 1 {
			return fmt.Errorf("entries[%d].placement must be at least 1", i)
		}
		if e.Kills < 0 {
			return fmt.Errorf("entries[%d].kills must not be negative", i)
		}
		next, ok := tournamentdomain.AddAmounts(kills, int64(e.Kills))
		if !ok {
			return fmt.Errorf("entries[%d].kills overflows the kill total", i)
		}
		kills = next
		if _, dup := placements[e.Placement]; dup {
			return fmt.Errorf("placement %d is assigned twice", e.Placement)
		}
		if _, dup := regs[e.RegistrationID]; dup {
			return fmt.Errorf("registration %s is listed twice", e.RegistrationID)
		}
		placements[e.Placement] = struct{}{}
		regs[e.RegistrationID] = struct{}{}
	}
	return nil
}

// Winner returns the placement 1 entry.
func Winner(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.Placement == 1 {
			return e, true
		}
	}
	return Entry{}, false
}

// TotalKills sums kills over every entry.
func TotalKills(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Kills
	}
	return total
}

// Fee is gross * rate / 10000 rounded down, computed without overflowing
// for any non-negative gross.
func Fee(gross, feeRateBps int64) int64 {
	if gross <= 0 || feeRateBps <= 0 {
		return 0
	}
	return (gross/MaxFeeRateBps)*feeRateBps + (gross%MaxFeeRateBps)*feeRateBps/MaxFeeRateBps
}

// ComputeAwards prices every entry. Entries that earn nothing get no award.
// It returns ErrAmountOverflow when an entry's gross does not fit in an
// int64.
func ComputeAwards(entries []Entry, terms PrizeTerms, feeRateBps int64) ([]Award, error) {
	var perKill int64
	if terms.PrizePerKill != nil {
		perKill = *terms.PrizePerKill
	}

	awards := make([]Award, 0, len(entries))
	for _, e := range entries {
		killPrize, ok := tournamentdomain.MulAmount(perKill, int64(e.Kills))
		if !ok {
			return nil, fmt.Errorf("%w: %d kills at %d each", ErrAmountOverflow, e.Kills, perKill)
		}
		gross, ok := tournamentdomain.AddAmounts(tournamentdomain.PlacementPrize(terms.PrizeTable, terms.PrizePool, e.Placement), killPrize)
		if !ok {
			return nil, fmt.Errorf("%w: placement %d", ErrAmountOverflow, e.Placement)
		}
		if gross <= 0 {
			continue
		}
		fee := Fee(gross, feeRateBps)
		awards = append(awards, Award{Entry: e, Gross: gross, Fee: fee, Net: gross - fee})
	}
	return awards, nil
}

// TotalGross sums the gross of awards.
func TotalGross(awards []Award) (int64, error) {
	var total int64
	for _, a := range awards {
		next, ok := tournamentdomain.AddAmounts(total, a.Gross)
		if !ok {
			return 0, ErrAmountOverflow
		}
		total = next
	}
	return total, nil
}
