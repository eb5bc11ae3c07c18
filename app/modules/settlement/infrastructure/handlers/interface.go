package settlementhandlers

import (
	"context"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/application"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/google/uuid"
)

// Service is the settlement workflow as the HTTP layer sees it.
type Service interface {
	CreateMatch(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, in settlementservice.MatchInput) (*settlementdb.Match, error)
	ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]settlementdb.Match, error)
	SubmitResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, in settlementservice.ResultInput) (*settlementdb.MatchResult, error)
	GetResult(ctx context.Context, matchID uuid.UUID) (*settlementdb.MatchResult, error)
	VerifyResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID) (*settlementservice.Verification, error)
	RejectResult(ctx context.Context, actor authdomain.Principal, matchID uuid.UUID, reason string) (*settlementdb.MatchResult, error)
	ApprovePayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error)
	BatchApprovePayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) (*settlementservice.BatchApproval, error)
	ProcessPayout(ctx context.Context, payoutID uuid.UUID) (*settlementdb.Payout, error)
	RetryPayout(ctx context.Context, actor authdomain.Principal, payoutID uuid.UUID) (*settlementdb.Payout, error)
	RetryRefund(ctx context.Context, actor authdomain.Principal, refundID uuid.UUID) (*ledgerdb.Refund, error)
	ListPayouts(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]settlementdb.Payout, error)
	SettlementReport(ctx context.Context, actor authdomain.Principal, tournamentID uuid.UUID) ([]byte, error)
}

// Handlers serves the match, result and payout routes.
type Handlers interface {
	HandleCreateMatch(w http.ResponseWriter, r *http.Request)
	HandleListMatches(w http.ResponseWriter, r *http.Request)
	HandleSubmitResult(w http.ResponseWriter, r *http.Request)
	HandleGetResult(w http.ResponseWriter, r *http.Request)
	HandleVerifyResult(w http.ResponseWriter, r *http.Request)
	HandleRejectResult(w http.ResponseWriter, r *http.Request)
	HandleApprovePayout(w http.ResponseWriter, r *http.Request)
	HandleBatchApprove(w http.ResponseWriter, r *http.Request)
	HandleProcessPayout(w http.ResponseWriter, r *http.Request)
	HandleRetryPayout(w http.ResponseWriter, r *http.Request)
	HandleRetryRefund(w http.ResponseWriter, r *http.Request)
	HandleListPayouts(w http.ResponseWriter, r *http.Request)
	HandleSettlementReport(w http.ResponseWriter, r *http.Request)
}
