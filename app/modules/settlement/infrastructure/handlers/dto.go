package settlementhandlers

import (
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	"github.com/google/uuid"
)

type matchRequest struct {
	Name        string     `json:"name"`
	Round       int        `json:"round"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type resultRequest struct {
	Entries      []settlementdomain.Entry `json:"entries"`
	EvidenceRefs []string                 `json:"evidence_refs"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type batchApproveRequest struct {
	TournamentID uuid.UUID `json:"tournament_id"`
}

type matchResponse struct {
	ID           uuid.UUID                    `json:"id"`
	TournamentID uuid.UUID                    `json:"tournament_id"`
	Name         string                       `json:"name"`
	Round        int                          `json:"round"`
	Status       settlementdomain.MatchStatus `json:"status"`
	ScheduledAt  *time.Time                   `json:"scheduled_at,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}

func newMatchResponse(m *settlementdb.Match) matchResponse {
	return matchResponse{
		ID:           m.ID,
		TournamentID: m.TournamentID,
		Name:         m.Name,
		Round:        m.Round,
		Status:       m.Status,
		ScheduledAt:  m.ScheduledAt,
		CreatedAt:    m.CreatedAt,
	}
}

type resultResponse struct {
	ID              uuid.UUID                     `json:"id"`
	MatchID         uuid.UUID                     `json:"match_id"`
	TournamentID    uuid.UUID                     `json:"tournament_id"`
	WinnerID        uuid.UUID                     `json:"winner_id"`
	Kills           int                           `json:"kills"`
	Placement       int                           `json:"placement"`
	Entries         []settlementdomain.Entry      `json:"entries"`
	EvidenceRefs    []string                      `json:"evidence_refs"`
	Status          settlementdomain.ResultStatus `json:"status"`
	RejectionReason *string                       `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time                     `json:"submitted_at"`
	VerifiedAt      *time.Time                    `json:"verified_at,omitempty"`
	RejectedAt      *time.Time                    `json:"rejected_at,omitempty"`
}

func newResultResponse(r *settlementdb.MatchResult) resultResponse {
	evidence := r.EvidenceRefs
	if evidence == nil {
		evidence = []string{}
	}
	return resultResponse{
		ID:              r.ID,
		MatchID:         r.MatchID,
		TournamentID:    r.TournamentID,
		WinnerID:        r.WinnerID,
		Kills:           r.Kills,
		Placement:       r.Placement,
		Entries:         r.Entries,
		EvidenceRefs:    evidence,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		SubmittedAt:     r.SubmittedAt,
		VerifiedAt:      r.VerifiedAt,
		RejectedAt:      r.RejectedAt,
	}
}

type payoutResponse struct {
	ID                uuid.UUID                     `json:"id"`
	TournamentID      uuid.UUID                     `json:"tournament_id"`
	MatchID           uuid.UUID                     `json:"match_id"`
	RegistrationID    uuid.UUID                     `json:"registration_id"`
	RecipientID       uuid.UUID                     `json:"recipient_id"`
	GrossAmount       int64                         `json:"gross_amount"`
	PlatformFee       int64                         `json:"platform_fee"`
	NetAmount         int64                         `json:"net_amount"`
	Status            settlementdomain.PayoutStatus `json:"status"`
	Attempts          int                           `json:"attempts"`
	TransferReference *string                       `json:"transfer_reference,omitempty"`
	FailureReason     *string                       `json:"failure_reason,omitempty"`
	ApprovedAt        *time.Time                    `json:"approved_at,omitempty"`
	CompletedAt       *time.Time                    `json:"completed_at,omitempty"`
}

func newPayoutResponse(p *settlementdb.Payout) payoutResponse {
	return payoutResponse{
		ID:                p.ID,
		TournamentID:      p.TournamentID,
		MatchID:           p.MatchID,
		RegistrationID:    p.RegistrationID,
		RecipientID:       p.RecipientID,
		GrossAmount:       p.GrossAmount,
		PlatformFee:       p.PlatformFee,
		NetAmount:         p.NetAmount,
		Status:            p.Status,
		Attempts:          p.Attempts,
		TransferReference: p.TransferReference,
		FailureReason:     p.FailureReason,
		ApprovedAt:        p.ApprovedAt,
		CompletedAt:       p.CompletedAt,
	}
}

func newPayoutList(list []settlementdb.Payout) []payoutResponse {
	out := make([]payoutResponse, 0, len(list))
	for i := range list {
		out = append(out, newPayoutResponse(&list[i]))
	}
	return out
}

type verificationResponse struct {
	Result  resultResponse   `json:"result"`
	Payouts []payoutResponse `json:"payouts"`
}

type batchApproveResponse struct {
	Approved []payoutResponse `json:"approved"`
	Blocked  []uuid.UUID      `json:"blocked"`
}

type refundResponse struct {
	ID              uuid.UUID             `json:"id"`
	TournamentID    uuid.UUID             `json:"tournament_id"`
	RegistrationID  uuid.UUID             `json:"registration_id"`
	Amount          int64                 `json:"amount"`
	Status          ledgerdb.RefundStatus `json:"status"`
	Attempts        int                   `json:"attempts"`
	GatewayRefundID *string               `json:"gateway_refund_id,omitempty"`
	FailureReason   *string               `json:"failure_reason,omitempty"`
}

func newRefundResponse(r *ledgerdb.Refund) refundResponse {
	return refundResponse{
		ID:              r.ID,
		TournamentID:    r.TournamentID,
		RegistrationID:  r.RegistrationID,
		Amount:          r.Amount,
		Status:          r.Status,
		Attempts:        r.Attempts,
		GatewayRefundID: r.GatewayRefundID,
		FailureReason:   r.FailureReason,
	}
}
