package registrationhandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	"github.com/google/uuid"
)

// Service is the registration workflow as the HTTP layer sees it.
type Service interface {
	Join(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, team registrationdomain.TeamInfo) (*registrationservice.JoinResult, error)
	VerifyPayment(ctx context.Context, actor authdomain.Principal, req registrationservice.VerifyPaymentRequest) (*registrationservice.PaymentResult, error)
	ConfirmCapturedPayment(ctx context.Context, body []byte, signature string) (*registrationservice.WebhookOutcome, error)
	CancelRegistration(ctx context.Context, actor authdomain.Principal, registrationID uuid.UUID) (*registrationdb.Registration, error)
	GetMyRegistration(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*registrationdb.Registration, error)
	ListParticipants(ctx context.Context, tournamentID uuid.UUID) ([]registrationdb.RosterEntry, error)
}

// Handlers defines the registration HTTP endpoints.
type Handlers interface {
	HandleJoin(w http.ResponseWriter, r *http.Request)
	HandleVerifyPayment(w http.ResponseWriter, r *http.Request)
	HandlePaymentWebhook(w http.ResponseWriter, r *http.Request)
	HandleCancel(w http.ResponseWriter, r *http.Request)
	HandleGetMyRegistration(w http.ResponseWriter, r *http.Request)
	HandleListParticipants(w http.ResponseWriter, r *http.Request)
}
