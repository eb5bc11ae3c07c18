package settlementservice

import (
	"context"
	"errors"
	"testing"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRegistration_RefusedOnceResultsCommitEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Two payers fund 10000; registration is closed but the tournament is not LIVE,
	// so confirmed entrants could otherwise still withdraw.
	tour, err := env.tournaments.CreateTournament(ctx, env.organizer, terms(6000))
	require.NoError(t, err)
	_, err = env.tournaments.SubmitForApproval(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	_, err = env.tournaments.Approve(ctx, env.admin, tour.ID)
	require.NoError(t, err)
	_, err = env.tournaments.OpenRegistration(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	alpha := env.join(t, tour.ID, "alpha", true)
	bravo := env.join(t, tour.ID, "bravo", true)
	_, err = env.tournaments.CloseRegistration(ctx, env.organizer, tour.ID)
	require.NoError(t, err)

	m := env.match(t, tour.ID, "Final")
	env.submit(t, m.ID, first(alpha))
	_, err = env.svc.VerifyResult(ctx, env.admin, m.ID)
	require.NoError(t, err)

	before := env.tournament(t, tour.ID)
	require.Equal(t, int64(10000), before.EscrowedTotal())

	owner := authdomain.Principal{ID: bravo.ParticipantID, Role: authdomain.RoleParticipant, Name: "bravo"}
	_, err = env.registration.CancelRegistration(ctx, owner, bravo.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	after := env.tournament(t, tour.ID)
	assert.Equal(t, before.EscrowedTotal(), after.EscrowedTotal())
	assert.Equal(t, int64(0), after.EscrowRefunded)

	reg, err := env.store.Registrations().GetByID(ctx, nil, bravo.ID)
	require.NoError(t, err)
	assert.Equal(t, registrationdomain.StatusConfirmed, reg.Status)

	refunds, err := env.store.Ledger().ListRefunds(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}
