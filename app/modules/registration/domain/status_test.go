package registrationdomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status   Status
		pending  bool
		active   bool
		terminal bool
	}{
		{StatusInitiated, true, true, false},
		{StatusAwaitingPayment, true, true, false},
		{StatusConfirmed, false, true, false},
		{StatusCancelled, false, false, true},
		{StatusExpired, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.pending, tt.status.IsPending())
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
	assert.False(t, Status("PAID").IsValid())
}

func TestTeamInfo(t *testing.T) {
	tests := []struct {
		name    string
		in      TeamInfo
		wantErr bool
	}{
		{name: "valid", in: TeamInfo{TeamName: " Night Owls ", Members: []string{"ana", " ", "ben"}}},
		{name: "blank name", in: TeamInfo{TeamName: "   "}, wantErr: true},
		{name: "duplicate member", in: TeamInfo{TeamName: "x", Members: []string{"Ana", "ana"}}, wantErr: true},
		{name: "too many members", in: TeamInfo{TeamName: "x", Members: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Normalize().Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	n := TeamInfo{TeamName: " Night Owls ", Members: []string{"ana", " ", "ben"}}.Normalize()
	assert.Equal(t, "Night Owls", n.TeamName)
	assert.Equal(t, []string{"ana", "ben"}, n.Members)
}
