package settlementhandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/application"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	calls                   []string
	CreateMatchFunc         func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, in settlementservice.MatchInput) (*settlementdb.Match, error)
	ListMatchesFunc         func(ctx context.Context, tournamentID uuid.UUID) ([]settlementdb.Match, error)
	SubmitResultFunc        func(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, in settlementservice.ResultInput) (*settlementdb.MatchResult, error)
	GetResultFunc           func(ctx context.Context, matchID uuid.UUID) (*settlementdb.MatchResult, error)
	VerifyResultFunc        func(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID) (*settlementservice.Verification, error)
	RejectResultFunc        func(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, reason string) (*settlementdb.MatchResult, error)
	ApprovePayoutFunc       func(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error)
	BatchApprovePayoutsFunc func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*settlementservice.BatchApproval, error)
	ProcessPayoutFunc       func(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error)
	RetryPayoutFunc         func(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error)
	RetryRefundFunc         func(ctx context.Context, actor authdomain.Principal, refundID uuid.UUID) (*ledgerdb.Refund, error)
	ListPayoutsFunc         func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]settlementdb.Payout, error)
	SettlementReportFunc    func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) ([]byte, error)
}

func (f *FakeService) CreateMatch(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, in settlementservice.MatchInput) (*settlementdb.Match, error) {
	f.calls = append(f.calls, "CreateMatch")
	if f.CreateMatchFunc != nil {
		return f.CreateMatchFunc(ctx, actor, tournamentID, in)
	}
	return nil, apperr.New(apperr.CodeInternal, "CreateMatchFunc not set")
}

func (f *FakeService) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]settlementdb.Match, error) {
	f.calls = append(f.calls, "ListMatches")
	if f.ListMatchesFunc != nil {
		return f.ListMatchesFunc(ctx, tournamentID)
	}
	return nil, apperr.New(apperr.CodeInternal, "ListMatchesFunc not set")
}

func (f *FakeService) SubmitResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, in settlementservice.ResultInput) (*settlementdb.MatchResult, error) {
	f.calls = append(f.calls, "SubmitResult")
	if f.SubmitResultFunc != nil {
		return f.SubmitResultFunc(ctx, actor, matchID, in)
	}
	return nil, apperr.New(apperr.CodeInternal, "SubmitResultFunc not set")
}

func (f *FakeService) GetResult(ctx context.Context, matchID uuid.UUID) (*settlementdb.MatchResult, error) {
	f.calls = append(f.calls, "GetResult")
	if f.GetResultFunc != nil {
		return f.GetResultFunc(ctx, matchID)
	}
	return nil, apperr.New(apperr.CodeInternal, "GetResultFunc not set")
}

func (f *FakeService) VerifyResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID) (*settlementservice.Verification, error) {
	f.calls = append(f.calls, "VerifyResult")
	if f.VerifyResultFunc != nil {
		return f.VerifyResultFunc(ctx, actor, matchID)
	}
	return nil, apperr.New(apperr.CodeInternal, "VerifyResultFunc not set")
}

func (f *FakeService) RejectResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, reason string) (*settlementdb.MatchResult, error) {
	f.calls = append(f.calls, "RejectResult")
	if f.RejectResultFunc != nil {
		return f.RejectResultFunc(ctx, actor, matchID, reason)
	}
	return nil, apperr.New(apperr.CodeInternal, "RejectResultFunc not set")
}

func (f *FakeService) ApprovePayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	f.calls = append(f.calls, "ApprovePayout")
	if f.ApprovePayoutFunc != nil {
		return f.ApprovePayoutFunc(ctx, actor, payoutID)
	}
	return nil, apperr.New(apperr.CodeInternal, "ApprovePayoutFunc not set")
}

func (f *FakeService) BatchApprovePayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*settlementservice.BatchApproval, error) {
	f.calls = append(f.calls, "BatchApprovePayouts")
	if f.BatchApprovePayoutsFunc != nil {
		return f.BatchApprovePayoutsFunc(ctx, actor, tournamentID)
	}
	return nil, apperr.New(apperr.CodeInternal, "BatchApprovePayoutsFunc not set")
}

func (f *FakeService) ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	f.calls = append(f.calls, "ProcessPayout")
	if f.ProcessPayoutFunc != nil {
		return f.ProcessPayoutFunc(ctx, payoutID)
	}
	return nil, apperr.New(apperr.CodeInternal, "ProcessPayoutFunc not set")
}

func (f *FakeService) RetryPayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error) {
	f.calls = append(f.calls, "RetryPayout")
	if f.RetryPayoutFunc != nil {
		return f.RetryPayoutFunc(ctx, actor, payoutID)
	}
	return nil, apperr.New(apperr.CodeInternal, "RetryPayoutFunc not set")
}

func (f *FakeService) RetryRefund(ctx context.Context, actor authdomain.Principal, refundID uuid.UUID) (*ledgerdb.Refund, error) {
	f.calls = append(f.calls, "RetryRefund")
	if f.RetryRefundFunc != nil {
		return f.RetryRefundFunc(ctx, actor, refundID)
	}
	return nil, apperr.New(apperr.CodeInternal, "RetryRefundFunc not set")
}

func (f *FakeService) ListPayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]settlementdb.Payout, error) {
	f.calls = append(f.calls, "ListPayouts")
	if f.ListPayoutsFunc != nil {
		return f.ListPayoutsFunc(ctx, actor, tournamentID, status)
	}
	return nil, apperr.New(apperr.CodeInternal, "ListPayoutsFunc not set")
}

func (f *FakeService) SettlementReport(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) ([]byte, error) {
	f.calls = append(f.calls, "SettlementReport")
	if f.SettlementReportFunc != nil {
		return f.SettlementReportFunc(ctx, actor, tournamentID)
	}
	return nil, apperr.New(apperr.CodeInternal, "SettlementReportFunc not set")
}

var _ Service = (*FakeService)(nil)

// ------------------------
// Fake Guard
// ------------------------

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
