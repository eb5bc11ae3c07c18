package tournamenthandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	tournamentservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/application"
	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	calls                 []string
	CreateTournamentFunc  func(ctx context.Context, actor authdomain.Principal, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error)
	UpdateDraftFunc       func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error)
	SubmitForApprovalFunc func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	ApproveFunc           func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	RejectFunc            func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentdb.Tournament, error)
	OpenRegistrationFunc  func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	CloseRegistrationFunc func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	StartMatchFunc        func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	CompleteFunc          func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error)
	CancelFunc            func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentservice.CancelResult, error)
	TopUpEscrowFunc       func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, amount int64) (*tournamentdb.Tournament, error)
	EscrowSummaryFunc     func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentservice.EscrowSummary, error)
	GetTournamentFunc     func(ctx context.Context, id uuid.UUID) (*tournamentdb.Tournament, error)
	ListTournamentsFunc   func(ctx context.Context, filter tournamentdb.ListFilter) ([]tournamentdb.Tournament, error)
}

func (f *FakeService) CreateTournament(ctx context.Context, actor authdomain.Principal, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "CreateTournament")
	if f.CreateTournamentFunc != nil {
		return f.CreateTournamentFunc(ctx, actor, terms)
	}
	return nil, apperr.New(apperr.CodeInternal, "CreateTournamentFunc not set")
}

func (f *FakeService) UpdateDraft(ctx context.Context, actor authdomain.Principal, id uuid.UUID, terms tournamentdomain.Terms) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "UpdateDraft")
	if f.UpdateDraftFunc != nil {
		return f.UpdateDraftFunc(ctx, actor, id, terms)
	}
	return nil, apperr.New(apperr.CodeInternal, "UpdateDraftFunc not set")
}

func (f *FakeService) SubmitForApproval(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "SubmitForApproval")
	if f.SubmitForApprovalFunc != nil {
		return f.SubmitForApprovalFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "SubmitForApprovalFunc not set")
}

func (f *FakeService) Approve(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "Approve")
	if f.ApproveFunc != nil {
		return f.ApproveFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "ApproveFunc not set")
}

func (f *FakeService) Reject(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "Reject")
	if f.RejectFunc != nil {
		return f.RejectFunc(ctx, actor, id, reason)
	}
	return nil, apperr.New(apperr.CodeInternal, "RejectFunc not set")
}

func (f *FakeService) OpenRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "OpenRegistration")
	if f.OpenRegistrationFunc != nil {
		return f.OpenRegistrationFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "OpenRegistrationFunc not set")
}

func (f *FakeService) CloseRegistration(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "CloseRegistration")
	if f.CloseRegistrationFunc != nil {
		return f.CloseRegistrationFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "CloseRegistrationFunc not set")
}

func (f *FakeService) StartMatch(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "StartMatch")
	if f.StartMatchFunc != nil {
		return f.StartMatchFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "StartMatchFunc not set")
}

func (f *FakeService) Complete(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "Complete")
	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "CompleteFunc not set")
}

func (f *FakeService) Cancel(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*tournamentservice.CancelResult, error) {
	f.calls = append(f.calls, "Cancel")
	if f.CancelFunc != nil {
		return f.CancelFunc(ctx, actor, id, reason)
	}
	return nil, apperr.New(apperr.CodeInternal, "CancelFunc not set")
}

func (f *FakeService) TopUpEscrow(ctx context.Context, actor authdomain.Principal, id uuid.UUID, amount int64) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "TopUpEscrow")
	if f.TopUpEscrowFunc != nil {
		return f.TopUpEscrowFunc(ctx, actor, id, amount)
	}
	return nil, apperr.New(apperr.CodeInternal, "TopUpEscrowFunc not set")
}

func (f *FakeService) EscrowSummary(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*tournamentservice.EscrowSummary, error) {
	f.calls = append(f.calls, "EscrowSummary")
	if f.EscrowSummaryFunc != nil {
		return f.EscrowSummaryFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "EscrowSummaryFunc not set")
}

func (f *FakeService) GetTournament(ctx context.Context, id uuid.UUID) (*tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "GetTournament")
	if f.GetTournamentFunc != nil {
		return f.GetTournamentFunc(ctx, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "GetTournamentFunc not set")
}

func (f *FakeService) ListTournaments(ctx context.Context, filter tournamentdb.ListFilter) ([]tournamentdb.Tournament, error) {
	f.calls = append(f.calls, "ListTournaments")
	if f.ListTournamentsFunc != nil {
		return f.ListTournamentsFunc(ctx, filter)
	}
	return nil, apperr.New(apperr.CodeInternal, "ListTournamentsFunc not set")
}

var _ Service = (*FakeService)(nil)

// ------------------------
// Fake Guard
// ------------------------

// FakeGuard authenticates every request as principal and enforces roles the
// same way the auth module does.
type FakeGuard struct {
	principal *authdomain.Principal
}

func (g *FakeGuard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.principal == nil {
			httpx.Error(w, r, nil, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(authdomain.WithPrincipal(r.Context(), *g.principal)))
	})
}

func (g *FakeGuard) RateLimit(next http.Handler) http.Handler { return next }

func (g *FakeGuard) Require(roles ...authdomain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authdomain.PrincipalFrom(r.Context())
			if !ok || !p.HasRole(roles...) {
				httpx.Error(w, r, nil, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var _ httpx.Guard = (*FakeGuard)(nil)
