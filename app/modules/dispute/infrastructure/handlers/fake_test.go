package disputehandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputeservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/application"
	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

type FakeService struct {
	calls              []string
	OpenDisputeFunc    func(ctx context.Context, actor authdomain.Principal, in disputeservice.DisputeInput) (*disputedb.Dispute, error)
	SetUnderReviewFunc func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error)
	ResolveFunc        func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, outcome string) (*disputedb.Dispute, error)
	DismissFunc        func(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*disputedb.Dispute, error)
	GetDisputeFunc     func(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error)
	ListDisputesFunc   func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *disputedomain.Status) ([]disputedb.Dispute, error)
}

func (f *FakeService) OpenDispute(ctx context.Context, actor authdomain.Principal, in disputeservice.DisputeInput) (*disputedb.Dispute, error) {
	f.calls = append(f.calls, "OpenDispute")
	if f.OpenDisputeFunc != nil {
		return f.OpenDisputeFunc(ctx, actor, in)
	}
	return nil, apperr.New(apperr.CodeInternal, "OpenDisputeFunc not set")
}

func (f *FakeService) SetUnderReview(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error) {
	f.calls = append(f.calls, "SetUnderReview")
	if f.SetUnderReviewFunc != nil {
		return f.SetUnderReviewFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "SetUnderReviewFunc not set")
}

func (f *FakeService) Resolve(ctx context.Context, actor authdomain.Principal, id uuid.UUID, outcome string) (*disputedb.Dispute, error) {
	f.calls = append(f.calls, "Resolve")
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, actor, id, outcome)
	}
	return nil, apperr.New(apperr.CodeInternal, "ResolveFunc not set")
}

func (f *FakeService) Dismiss(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*disputedb.Dispute, error) {
	f.calls = append(f.calls, "Dismiss")
	if f.DismissFunc != nil {
		return f.DismissFunc(ctx, actor, id, reason)
	}
	return nil, apperr.New(apperr.CodeInternal, "DismissFunc not set")
}

func (f *FakeService) GetDispute(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error) {
	f.calls = append(f.calls, "GetDispute")
	if f.GetDisputeFunc != nil {
		return f.GetDisputeFunc(ctx, actor, id)
	}
	return nil, apperr.New(apperr.CodeInternal, "GetDisputeFunc not set")
}

func (f *FakeService) ListDisputes(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *disputedomain.Status) ([]disputedb.Dispute, error) {
	f.calls = append(f.calls, "ListDisputes")
	if f.ListDisputesFunc != nil {
		return f.ListDisputesFunc(ctx, actor, tournamentID, status)
	}
	return nil, apperr.New(apperr.CodeInternal, "ListDisputesFunc not set")
}

var _ Service = (*FakeService)(nil)

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
