package tournamentservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/application"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tour, err := env.svc.CreateTournament(ctx, env.organizer, env.terms())
	require.NoError(t, err)
	assert.Equal(t, tournamentdomain.StatusDraft, tour.Status)
	assert.Equal(t, env.organizer.ID, tour.OrganizerID)
	assert.Equal(t, "INR", tour.Currency)

	audit, err := env.store.Ledger().ListAudit(ctx, nil, ledgerservice.EntityTournament, tour.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "tournament.created", audit[0].Action)
	assert.Equal(t, string(tournamentdomain.StatusDraft), audit[0].ToStatus)
}

func TestCreateTournament_Rejections(t *testing.T) {
	env := newTestEnv(t)
	participant := authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleParticipant}

	tests := []struct {
		name  string
		actor authdomain.Principal
		edit  func(*tournamentdomain.Terms)
		code  apperr.Code
	}{
		{"participant cannot create", participant, nil, apperr.CodeForbidden},
		{"zero capacity", env.organizer, func(t *tournamentdomain.Terms) { t.Capacity = 0 }, apperr.CodeValidation},
		{"prize table over pool", env.organizer, func(t *tournamentdomain.Terms) { t.PrizeTable = []int64{20000} }, apperr.CodeValidation},
		{"start in the past", env.organizer, func(t *tournamentdomain.Terms) { t.StartsAt = env.now.Add(-time.Hour) }, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := env.terms()
			if tt.edit != nil {
				tt.edit(&terms)
			}
			_, err := env.svc.CreateTournament(context.Background(), tt.actor, terms)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tour := env.openTournament(t)
	assert.Equal(t, tournamentdomain.StatusRegistrationOpen, tour.Status)
	require.NotNil(t, tour.OpenedAt)

	tour, err := env.svc.CloseRegistration(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournamentdomain.StatusRegistrationClosed, tour.Status)

	tour, err = env.svc.StartMatch(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournamentdomain.StatusLive, tour.Status)

	tour, err = env.svc.Complete(ctx, env.admin, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournamentdomain.StatusCompleted, tour.Status)

	want := []string{
		events.TournamentStatusChanged, // submitted
		events.TournamentStatusChanged, // approved
		events.TournamentStatusChanged, // opened
		events.TournamentStatusChanged, // closed
		events.TournamentStatusChanged, // live
		events.TournamentStatusChanged, // completed
	}
	if diff := cmp.Diff(want, env.bus.Topics()); diff != "" {
		t.Errorf("published topics mismatch (-want +got):\n%s", diff)
	}

	audit, err := env.store.Ledger().ListAudit(ctx, nil, ledgerservice.EntityTournament, tour.ID)
	require.NoError(t, err)
	assert.Len(t, audit, 7)
}

func TestLifecycle_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stranger := authdomain.Principal{ID: uuid.New(), Role: authdomain.RoleOrganizer}

	draft, err := env.svc.CreateTournament(ctx, env.organizer, env.terms())
	require.NoError(t, err)

	_, err = env.svc.OpenRegistration(ctx, env.organizer, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "draft cannot open: %v", err)

	_, err = env.svc.SubmitForApproval(ctx, stranger, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "stranger: %v", err)

	_, err = env.svc.SubmitForApproval(ctx, env.organizer, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "missing: %v", err)

	_, err = env.svc.SubmitForApproval(ctx, env.organizer, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, env.organizer, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "organizer cannot self-approve: %v", err)

	_, err = env.svc.SubmitForApproval(ctx, env.organizer, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "already pending: %v", err)
}

func TestReject_ReturnsToDraftWithReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tour, err := env.svc.CreateTournament(ctx, env.organizer, env.terms())
	require.NoError(t, err)
	_, err = env.svc.SubmitForApproval(ctx, env.organizer, tour.ID)
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, env.admin, tour.ID, "  ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	tour, err = env.svc.Reject(ctx, env.admin, tour.ID, "prize pool too small")
	require.NoError(t, err)
	assert.Equal(t, tournamentdomain.StatusDraft, tour.Status)
	require.NotNil(t, tour.RejectionReason)
	assert.Equal(t, "prize pool too small", *tour.RejectionReason)

	audit, err := env.store.Ledger().ListAudit(ctx, nil, ledgerservice.EntityTournament, tour.ID)
	require.NoError(t, err)
	last := audit[len(audit)-1]
	assert.Equal(t, "tournament.rejected", last.Action)
	assert.Equal(t, "prize pool too small", last.Reason)

	// The organizer can fix the draft and resubmit.
	terms := env.terms()
	terms.PrizePool = 30000
	tour, err = env.svc.UpdateDraft(ctx, env.organizer, tour.ID, terms)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), tour.PrizePool)
	_, err = env.svc.SubmitForApproval(ctx, env.organizer, tour.ID)
	require.NoError(t, err)
	assert.Nil(t, env.tournament(t, tour.ID).RejectionReason)
}

func TestUpdateDraft_OnlyInDraft(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t)

	terms := env.terms()
	terms.Capacity = 64
	_, err := env.svc.UpdateDraft(context.Background(), env.organizer, tour.ID, terms)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.Equal(t, 4, env.tournament(t, tour.ID).Capacity)
}

func TestCloseRegistration_AfterStartIsRejected(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t)

	env.now = tour.StartsAt.Add(time.Minute)
	_, err := env.svc.CloseRegistration(context.Background(), env.organizer, tour.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestCloseDueRegistrations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	early := env.openTournament(t)

	terms := env.terms()
	terms.StartsAt = env.now.Add(240 * time.Hour)
	late, err := env.svc.CreateTournament(ctx, env.organizer, terms)
	require.NoError(t, err)
	_, err = env.svc.SubmitForApproval(ctx, env.organizer, late.ID)
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, env.admin, late.ID)
	require.NoError(t, err)
	_, err = env.svc.OpenRegistration(ctx, env.organizer, late.ID)
	require.NoError(t, err)

	env.now = early.StartsAt.Add(time.Second)
	closed, err := env.svc.CloseDueRegistrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, tournamentdomain.StatusRegistrationClosed, env.tournament(t, early.ID).Status)
	assert.Equal(t, tournamentdomain.StatusRegistrationOpen, env.tournament(t, late.ID).Status)

	// A second sweep finds nothing.
	closed, err = env.svc.CloseDueRegistrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.openTournament(t)
	draft, err := env.svc.CreateTournament(ctx, env.organizer, env.terms())
	require.NoError(t, err)

	got, err := env.svc.GetTournament(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)

	_, err = env.svc.GetTournament(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	status := tournamentdomain.StatusDraft
	list, err := env.svc.ListTournaments(ctx, tournamentdb.ListFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, draft.ID, list[0].ID)

	bad := tournamentdomain.Status("ARCHIVED")
	_, err = env.svc.ListTournaments(ctx, tournamentdb.ListFilter{Status: &bad})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
