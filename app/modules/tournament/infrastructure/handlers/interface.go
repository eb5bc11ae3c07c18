package tournamenthandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	tournamentservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/application"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
)

// Service is the tournament lifecycle as the HTTP layer sees it.
type Service interface {
	CreateTournament(ctx context.Context, actor authdomain.Principal, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error)
	UpdateDraft(ctx context.Context, actor authdomain.Principal, id uuid.UUID, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error)
	SubmitForApproval(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	Approve(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	Reject(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentdb.Tournament, error)
	OpenRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	CloseRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	StartMatch(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	Complete(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	Cancel(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentservice.CancelResult, error)
	TopUpEscrow(ctx context.Context, actor authdomain.Principal, id uuid.UUID, amount int64) (*tournamentdb.Tournament, error)
	EscrowSummary(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentservice.EscrowSummary, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*tournamentdb.Tournament, error)
	ListTournaments(ctx context.Context, filter tournamentdb.ListFilter) ([]tournamentdb.Tournament, error)
}

// Handlers defines the tournament HTTP endpoints.
type Handlers interface {
	HandleCreate(w http.ResponseWriter, r *http.Request)
	HandleUpdate(w http.ResponseWriter, r *http.Request)
	HandleSubmit(w http.ResponseWriter, r *http.Request)
	HandleApprove(w http.ResponseWriter, r *http.Request)
	HandleReject(w http.ResponseWriter, r *http.Request)
	HandleOpen(w http.ResponseWriter, r *http.Request)
	HandleClose(w http.ResponseWriter, r *http.Request)
	HandleStart(w http.ResponseWriter, r *http.Request)
	HandleComplete(w http.ResponseWriter, r *http.Request)
	HandleCancel(w http.ResponseWriter, r *http.Request)
	HandleTopUp(w http.ResponseWriter, r *http.Request)
	HandleEscrowSummary(w http.ResponseWriter, r *http.Request)
	HandleGet(w http.ResponseWriter, r *http.Request)
	HandleList(w http.ResponseWriter, r *http.Request)
}
