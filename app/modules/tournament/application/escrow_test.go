package tournamentservice

import (
	"context"
	"errors"
	"testing"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t)
	env.join(t, tour.ID, "alpha", true)

	_, err := env.svc.TopUpEscrow(ctx, env.organizer, tour.ID, 0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	stranger := authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer}
	_, err = env.svc.TopUpEscrow(ctx, stranger, tour.ID, 1000)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	updated, err := env.svc.TopUpEscrow(ctx, env.organizer, tour.ID, 20000)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), updated.EscrowTopUp)
	assert.Equal(t, int64(25000), updated.EscrowedTotal())

	summary, err := env.svc.EscrowSummary(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, &EscrowSummary{
		TournamentID:   tour.ID,
		Currency:       "INR",
		Collected:      5000,
		TopUp:          20000,
		Escrowed:       25000,
		CommittedGross: 0,
		Available:      25000,
		Balance:        25000,
	}, summary)

	_, err = env.svc.EscrowSummary(ctx, stranger, tour.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestTopUpEscrow_ClosedAfterTerminalStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour, err := env.svc.CreateTournament(ctx, env.organizer, env.terms())
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, env.organizer, tour.ID, "scrapped")
	require.NoError(t, err)

	_, err = env.svc.TopUpEscrow(ctx, env.organizer, tour.ID, 1000)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}
