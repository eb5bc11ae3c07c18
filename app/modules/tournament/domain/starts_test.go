package tournamentdomain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartsAt(t *testing.T) {
	// Wednesday.
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{
			name:  "tomorrow with hour",
			input: "tomorrow at 6pm",
			want:  time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC),
		},
		{
			name:  "relative duration",
			input: "in 3 hours",
			want:  time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "local zone converted to utc",
			input: "tomorrow at 6pm",
			loc:   kolkata,
			want:  time.Date(2026, 10, 15, 12, 30, 0, 0, time.UTC),
		},
		{name: "empty", input: "  ", wantErr: true},
		{name: "no time in text", input: "whenever the team is ready", wantErr: true},
		{name: "in the past", input: "yesterday at 6pm", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStartsAt(tt.input, now, tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
