package registrationservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func participant() authdomain.Principal {
	return authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant, Name: "player"}
}

func team(name string) registrationdomain.TeamInfo {
	return registrationdomain.TeamInfo{TeamName: name, Members: []string{name + "-1", name + "-2"}}
}

func TestJoin_PaidTournament(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, 4, 5000)
	p := participant()

	res, err := env.svc.Join(context.Background(), p, tour.ID, team("  Night Owls  "))
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	reg := res.Registration
	assert.Equal(t, registrationdomain.StatusAwaitingPayment, reg.Status)
	assert.Equal(t, "Night Owls", reg.TeamName)
	assert.Equal(t, p.ID, reg.ParticipantID)
	require.NotNil(t, reg.PaymentDeadline)
	assert.Equal(t, env.now.Add(env.svc.cfg.PaymentTimeout), *reg.PaymentDeadline)
	assert.Equal(t, env.gateway.OrderID(reg.ID.String()), res.Order.ID)
	assert.Equal(t, int64(5000), res.Order.Amount)

	stored := env.registration(t, reg.ID)
	require.NotNil(t, stored.PaymentOrderID)
	assert.Equal(t, res.Order.ID, *stored.PaymentOrderID)

	current := env.tournament(t, tour.ID)
	assert.Equal(t, 1, current.ReservedSlots)
	assert.Equal(t, 0, current.CurrentParticipants)
	assert.Equal(t, []string{"Create", "SetPaymentOrder"}, env.repo.Trace())
}

func TestJoin_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal)
		team    registrationdomain.TeamInfo
		wantErr error
	}{
		{
			name: "unknown tournament",
			setup: func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal) {
				return uuid.New(), participant()
			},
			team:    team("a"),
			wantErr: apperr.ErrNotFound,
		},
		{
			name: "registration not open",
			setup: func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal) {
				tour := env.openTournament(t, 4, 5000)
				_, err := env.store.Tournaments().ApplyTransition(context.Background(), nil, tour.ID, tournamentCloseTransition)
				require.NoError(t, err)
				return tour.ID, participant()
			},
			team:    team("a"),
			wantErr: apperr.ErrInvalidState,
		},
		{
			name: "already registered",
			setup: func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal) {
				tour := env.openTournament(t, 4, 5000)
				p := participant()
				_, err := env.svc.Join(context.Background(), p, tour.ID, team("first"))
				require.NoError(t, err)
				return tour.ID, p
			},
			team:    team("second"),
			wantErr: apperr.ErrConflict,
		},
		{
			name: "tournament full",
			setup: func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal) {
				tour := env.openTournament(t, 1, 5000)
				_, err := env.svc.Join(context.Background(), participant(), tour.ID, team("first"))
				require.NoError(t, err)
				return tour.ID, participant()
			},
			team:    team("late"),
			wantErr: apperr.ErrCapacityExceeded,
		},
		{
			name: "blank team name",
			setup: func(t *testing.T, env *testEnv) (uuid.UUID, authdomain.Principal) {
				return env.openTournament(t, 4, 5000).ID, participant()
			},
			team:    registrationdomain.TeamInfo{TeamName: "   "},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tournamentID, p := tt.setup(t, env)

			res, err := env.svc.Join(context.Background(), p, tournamentID, tt.team)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestJoin_DuplicateInsertReturnsReservation(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, 2, 5000)
	env.repo.CreateFunc = func(ctx context.Context, db bun.IDB, reg *registrationdb.Registration) error {
		return registrationdb.ErrAlreadyRegistered
	}

	_, err := env.svc.Join(context.Background(), participant(), tour.ID, team("racer"))
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 0, env.tournament(t, tour.ID).ReservedSlots)
}

func TestJoin_GatewayUnavailableReleasesSlot(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, 1, 5000)
	p := participant()
	env.gateway.CreateOrderFunc = func(ctx context.Context, req paymentgateway.OrderRequest) (paymentgateway.Order, error) {
		return paymentgateway.Order{}, paymentgateway.ErrUnavailable
	}

	_, err := env.svc.Join(context.Background(), p, tour.ID, team("unlucky"))
	require.ErrorIs(t, err, apperr.ErrGatewayUnavailable)

	reg, err := env.store.Registrations().GetLatestByParticipant(context.Background(), nil, tour.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, registrationdomain.StatusCancelled, reg.Status)
	assert.Equal(t, 0, env.tournament(t, tour.ID).ReservedSlots)
	assert.Contains(t, env.bus.Topics(), events.RegistrationCancelled)

	// The slot is free again, for the same participant too.
	env.gateway.CreateOrderFunc = nil
	res, err := env.svc.Join(context.Background(), p, tour.ID, team("unlucky"))
	require.NoError(t, err)
	assert.Equal(t, registrationdomain.StatusAwaitingPayment, res.Registration.Status)
}

func TestJoin_FreeTournamentConfirmsAndCloses(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, 1, 0)

	res, err := env.svc.Join(context.Background(), participant(), tour.ID, team("freebie"))
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.Equal(t, registrationdomain.StatusConfirmed, res.Registration.Status)
	require.NotNil(t, res.Registration.SlotNumber)
	assert.Equal(t, 1, *res.Registration.SlotNumber)

	current := env.tournament(t, tour.ID)
	assert.Equal(t, tournamentdomain.StatusRegistrationClosed, current.Status)
	assert.Equal(t, int64(0), current.EscrowCollected)
	assert.Equal(t, []string{events.RegistrationConfirmed, events.TournamentStatusChanged}, env.bus.Topics())

	_, err = env.svc.Join(context.Background(), participant(), tour.ID, team("too-late"))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestJoin_ConcurrentJoinsNeverOverbook(t *testing.T) {
	env := newTestEnv(t)
	const capacity, joiners = 5, 40
	tour := env.openTournament(t, capacity, 5000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Join(context.Background(), participant(), tour.ID, team(fmt.Sprintf("team-%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, apperr.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, accepted)
	assert.Equal(t, joiners-capacity, rejected)
	assert.Equal(t, capacity, env.tournament(t, tour.ID).ReservedSlots)

	regs, err := env.store.Registrations().ListByStatus(context.Background(), nil, tour.ID, registrationdomain.StatusAwaitingPayment)
	require.NoError(t, err)
	assert.Len(t, regs, capacity)
}
