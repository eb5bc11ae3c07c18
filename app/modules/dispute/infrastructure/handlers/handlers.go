package disputehandlers

import (
	"log/slog"
	"net/http"

	disputeservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/application"
	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
)

type DisputeHandlers struct {
	service Service
	logger  *slog.Logger
}

func NewDisputeHandlers(service Service, logger *slog.Logger) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisputeHandlers{service: service, logger: logger}
}

func (h *DisputeHandlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req openRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	d, err := h.service.OpenDispute(r.Context(), actor, disputeservice.DisputeInput{
		TournamentID:   req.TournamentID,
		RegistrationID: req.RegistrationID,
		MatchID:        req.MatchID,
		Type:           req.Type,
		Priority:       req.Priority,
		Description:    req.Description,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newDisputeResponse(d))
}

func (h *DisputeHandlers) HandleReview(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	d, err := h.service.SetUnderReview(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDisputeResponse(d))
}

func (h *DisputeHandlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req resolveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	d, err := h.service.Resolve(r.Context(), actor, id, req.Outcome)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDisputeResponse(d))
}

func (h *DisputeHandlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req dismissRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	d, err := h.service.Dismiss(r.Context(), actor, id, req.Reason)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDisputeResponse(d))
}

func (h *DisputeHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	d, err := h.service.GetDispute(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDisputeResponse(d))
}

// HandleList supports ?status=.
func (h *DisputeHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
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
	var status *disputedomain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := disputedomain.Status(raw)
		if !s.IsValid() {
			httpx.Error(w, r, h.logger, apperr.Validation("invalid status %q", raw))
			return
		}
		status = &s
	}
	list, err := h.service.ListDisputes(r.Context(), actor, tournamentID, status)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	out := make([]disputeResponse, 0, len(list))
	for i := range list {
		out = append(out, newDisputeResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"disputes": out})
}
