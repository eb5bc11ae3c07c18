package registrationhandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	JoinFunc                   func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, team registrationdomain.TeamInfo) (*registrationservice.JoinResult, error)
	VerifyPaymentFunc          func(ctx context.Context, actor authdomain.Principal, req registrationservice.VerifyPaymentRequest) (*registrationservice.PaymentResult, error)
	ConfirmCapturedPaymentFunc func(ctx context.Context, body []byte, signature string) (*registrationservice.WebhookOutcome, error)
	CancelRegistrationFunc     func(ctx context.Context, actor authdomain.Principal, registrationID uuid.UUID) (*registrationdb.Registration, error)
	GetMyRegistrationFunc      func(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*registrationdb.Registration, error)
	ListParticipantsFunc       func(ctx context.Context, tournamentID uuid.UUID) ([]registrationdb.RosterEntry, error)
}

func (f *FakeService) Join(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, team registrationdomain.TeamInfo) (*registrationservice.JoinResult, error) {
	if f.JoinFunc != nil {
		return f.JoinFunc(ctx, actor, tournamentID, team)
	}
	return nil, apperr.New(apperr.CodeInternal, "JoinFunc not set")
}

func (f *FakeService) VerifyPayment(ctx context.Context, actor authdomain.Principal, req registrationservice.VerifyPaymentRequest) (*registrationservice.PaymentResult, error) {
	if f.VerifyPaymentFunc != nil {
		return f.VerifyPaymentFunc(ctx, actor, req)
	}
	return nil, apperr.New(apperr.CodeInternal, "VerifyPaymentFunc not set")
}

func (f *FakeService) ConfirmCapturedPayment(ctx context.Context, body []byte, signature string) (*registrationservice.WebhookOutcome, error) {
	if f.ConfirmCapturedPaymentFunc != nil {
		return f.ConfirmCapturedPaymentFunc(ctx, body, signature)
	}
	return nil, apperr.New(apperr.CodeInternal, "ConfirmCapturedPaymentFunc not set")
}

func (f *FakeService) CancelRegistration(ctx context.Context, actor authdomain.Principal, registrationID uuid.UUID) (*registrationdb.Registration, error) {
	if f.CancelRegistrationFunc != nil {
		return f.CancelRegistrationFunc(ctx, actor, registrationID)
	}
	return nil, apperr.New(apperr.CodeInternal, "CancelRegistrationFunc not set")
}

func (f *FakeService) GetMyRegistration(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*registrationdb.Registration, error) {
	if f.GetMyRegistrationFunc != nil {
		return f.GetMyRegistrationFunc(ctx, actor, tournamentID)
	}
	return nil, apperr.New(apperr.CodeInternal, "GetMyRegistrationFunc not set")
}

func (f *FakeService) ListParticipants(ctx context.Context, tournamentID uuid.UUID) ([]registrationdb.RosterEntry, error) {
	if f.ListParticipantsFunc != nil {
		return f.ListParticipantsFunc(ctx, tournamentID)
	}
	return nil, nil
}

var _ Service = (*FakeService)(nil)

// ------------------------
// Fake Guard
// ------------------------

// FakeGuard authenticates every request as principal, or rejects it when
// principal is nil.
type FakeGuard struct {
	principal *authdomain.Principal
	limited   bool
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

func (g *FakeGuard) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limited {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *FakeGuard) Require(roles ...authdomain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

var _ httpx.Guard = (*FakeGuard)(nil)
