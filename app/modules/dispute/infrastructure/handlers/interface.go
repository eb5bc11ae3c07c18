package disputehandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	disputeservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/application"
	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	"github.com/google/uuid"
)

type Service interface {
	OpenDispute(ctx context.Context, actor authdomain.Principal, in disputeservice.DisputeInput) (*disputedb.Dispute, error)
	SetUnderReview(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error)
	Resolve(ctx context.Context, actor authdomain.Principal, id uuid.UUID, outcome string) (*disputedb.Dispute, error)
	Dismiss(ctx context.Context, actor authdomain.Principal, id uuid.UUID, reason string) (*disputedb.Dispute, error)
	GetDispute(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*disputedb.Dispute, error)
	ListDisputes(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *disputedomain.Status) ([]disputedb.Dispute, error)
}

type Handlers interface {
	HandleOpen(w http.ResponseWriter, r *http.Request)
	HandleReview(w http.ResponseWriter, r *http.Request)
	HandleResolve(w http.ResponseWriter, r *http.Request)
	HandleDismiss(w http.ResponseWriter, r *http.Request)
	HandleGet(w http.ResponseWriter, r *http.Request)
	HandleList(w http.ResponseWriter, r *http.Request)
}
