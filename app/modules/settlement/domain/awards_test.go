package settlementdomain

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFee(t *testing.T) {
	tests := []struct {
		gross, bps, want int64
	}{
		{100000, 1000, 10000},
		{99999, 1000, 9999},
		{1, 1000, 0},
		{12345, 250, 308},
		{0, 1000, 0},
		{5000, 0, 0},
		{5000, 10000, 5000},
		{9_000_000_000_000_000, 1000, 900_000_000_000_000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fee(tt.gross, tt.bps), "gross=%d bps=%d", tt.gross, tt.bps)
	}
}

func TestComputeAwards(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	perKill := int64(500)

	entries := []Entry{
		{RegistrationID: a, Placement: 1, Kills: 4},
		{RegistrationID: b, Placement: 2, Kills: 0},
		{RegistrationID: c, Placement: 4, Kills: 0},
	}
	terms := PrizeTerms{PrizePool: 100000, PrizeTable: []int64{60000, 30000, 10000}, PrizePerKill: &perKill}

	got, err := ComputeAwards(entries, terms, 1000)
	require.NoError(t, err)
	want := []Award{
		{Entry: entries[0], Gross: 62000, Fee: 6200, Net: 55800},
		{Entry: entries[1], Gross: 30000, Fee: 3000, Net: 27000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("awards mismatch (-want +got):\n%s", diff)
	}
	total, err := TotalGross(got)
	require.NoError(t, err)
	assert.Equal(t, int64(92000), total)
}

func TestComputeAwards_EmptyTableAwardsPoolToWinner(t *testing.T) {
	winner := uuid.New()
	got, err := ComputeAwards([]Entry{
		{RegistrationID: winner, Placement: 1},
		{RegistrationID: uuid.New(), Placement: 2},
	}, PrizeTerms{PrizePool: 100000}, 1000)
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, winner, got[0].RegistrationID)
	assert.Equal(t, int64(100000), got[0].Gross)
	assert.Equal(t, int64(10000), got[0].Fee)
	assert.Equal(t, int64(90000), got[0].Net)
}

func TestComputeAwards_RejectsOverflow(t *testing.T) {
	perKill := int64(100)
	terms := PrizeTerms{PrizePool: 100000, PrizePerKill: &perKill}

	_, err := ComputeAwards([]Entry{{RegistrationID: uuid.New(), Placement: 2, Kills: 50_000_000_000_000_000}}, terms, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmountOverflow))

	// Kill prize fits but adding the placement prize does not.
	_, err = ComputeAwards([]Entry{{RegistrationID: uuid.New(), Placement: 1, Kills: math.MaxInt64 / 100}}, terms, 1000)
	assert.True(t, errors.Is(err, ErrAmountOverflow))
}

func TestTotalGross_RejectsOverflow(t *testing.T) {
	_, err := TotalGross([]Award{{Gross: math.MaxInt64}, {Gross: 1}})
	assert.True(t, errors.Is(err, ErrAmountOverflow))
}

func TestValidateEntries(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tests := []struct {
		name    string
		entries []Entry
		wantErr bool
	}{
		{name: "valid", entries: []Entry{{RegistrationID: a, Placement: 1}, {RegistrationID: b, Placement: 2, Kills: 3}}},
		{name: "empty", wantErr: true},
		{name: "zero placement", entries: []Entry{{RegistrationID: a, Placement: 0}}, wantErr: true},
		{name: "negative kills", entries: []Entry{{RegistrationID: a, Placement: 1, Kills: -1}}, wantErr: true},
		{name: "duplicate placement", entries: []Entry{{RegistrationID: a, Placement: 1}, {RegistrationID: b, Placement: 1}}, wantErr: true},
		{name: "duplicate registration", entries: []Entry{{RegistrationID: a, Placement: 1}, {RegistrationID: a, Placement: 2}}, wantErr: true},
		{name: "missing registration", entries: []Entry{{Placement: 1}}, wantErr: true},
		{name: "kill total overflows", entries: []Entry{{RegistrationID: a, Placement: 1, Kills: math.MaxInt}, {RegistrationID: b, Placement: 2, Kills: 1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntries(tt.entries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWinnerAndKills(t *testing.T) {
	a := uuid.New()
	entries := []Entry{{RegistrationID: uuid.New(), Placement: 2, Kills: 1}, {RegistrationID: a, Placement: 1, Kills: 5}}
	w, ok := Winner(entries)
	assert.True(t, ok)
	assert.Equal(t, a, w.RegistrationID)
	assert.Equal(t, 6, TotalKills(entries))
	_, ok = Winner(entries[:1])
	assert.False(t, ok)
}
