package settlementhandlers

import (
	"fmt"
	"log/slog"
	"net/http"

	settlementservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/application"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SettlementHandlers implements the Handlers interface.
type SettlementHandlers struct {
	service Service
	logger  *slog.Logger
}

// NewSettlementHandlers creates a new SettlementHandlers instance.
func NewSettlementHandlers(service Service, logger *slog.Logger) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementHandlers{service: service, logger: logger}
}

func (h *SettlementHandlers) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	tournamentID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req matchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	m, err := h.service.CreateMatch(r.Context(), actor, tournamentID, settlementservice.MatchInput{
		Name:        req.Name,
		Round:       req.Round,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newMatchResponse(m))
}

func (h *SettlementHandlers) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	list, err := h.service.ListMatches(r.Context(), tournamentID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	out := make([]matchResponse, 0, len(list))
	for i := range list {
		out = append(out, newMatchResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matches": out})
}

func (h *SettlementHandlers) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	matchID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req resultRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	mr, err := h.service.SubmitResult(r.Context(), actor, matchID, settlementservice.ResultInput{
		Entries:      req.Entries,
		EvidenceRefs: req.EvidenceRefs,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newResultResponse(mr))
}

func (h *SettlementHandlers) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	mr, err := h.service.GetResult(r.Context(), matchID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newResultResponse(mr))
}

func (h *SettlementHandlers) HandleVerifyResult(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	matchID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	v, err := h.service.VerifyResult(r.Context(), actor, matchID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, verificationResponse{
		Result:  newResultResponse(v.Result),
		Payouts: newPayoutList(v.Payouts),
	})
}

func (h *SettlementHandlers) HandleRejectResult(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	matchID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req reasonRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	mr, err := h.service.RejectResult(r.Context(), actor, matchID, req.Reason)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newResultResponse(mr))
}

func (h *SettlementHandlers) HandleApprovePayout(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	payoutID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	p, err := h.service.ApprovePayout(r.Context(), actor, payoutID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPayoutResponse(p))
}

func (h *SettlementHandlers) HandleBatchApprove(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req batchApproveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	if req.TournamentID == uuid.Nil {
		httpx.Error(w, r, h.logger, apperr.Validation("tournament_id is required"))
		return
	}
	batch, err := h.service.BatchApprovePayouts(r.Context(), actor, req.TournamentID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batchApproveResponse{
		Approved: newPayoutList(batch.Approved),
		Blocked:  batch.Blocked,
	})
}

// HandleProcessPayout runs the transfer inline. A gateway failure comes
// back as a FAILED payout with 200.
func (h *SettlementHandlers) HandleProcessPayout(w http.ResponseWriter, r *http.Request) {
	payoutID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	p, err := h.service.ProcessPayout(r.Context(), payoutID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPayoutResponse(p))
}

func (h *SettlementHandlers) HandleRetryPayout(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	payoutID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	p, err := h.service.RetryPayout(r.Context(), actor, payoutID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPayoutResponse(p))
}

func (h *SettlementHandlers) HandleRetryRefund(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	refundID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	refund, err := h.service.RetryRefund(r.Context(), actor, refundID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRefundResponse(refund))
}

// HandleListPayouts supports ?status=.
func (h *SettlementHandlers) HandleListPayouts(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	tournamentID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var status *settlementdomain.PayoutStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := settlementdomain.PayoutStatus(raw)
		if !s.IsValid() {
			httpx.Error(w, r, h.logger, apperr.Validation("invalid status %q", raw))
			return
		}
		status = &s
	}
	list, err := h.service.ListPayouts(r.Context(), actor, tournamentID, status)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payouts": newPayoutList(list)})
}

func (h *SettlementHandlers) HandleSettlementReport(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	tournamentID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	data, err := h.service.SettlementReport(r.Context(), actor, tournamentID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="settlement-%s.xlsx"`, tournamentID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write settlement report",
			attr.UUID("tournament_id", tournamentID),
			attr.Error(err),
		)
	}
}
