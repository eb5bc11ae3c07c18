package registrationhandlers

import (
	"io"
	"log/slog"
	"net/http"

	registrationservice "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/application"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/httpx"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "X-Razorpay-Signature"

const maxWebhookBytes = 1 << 16

// RegistrationHandlers implements the Handlers interface.
type RegistrationHandlers struct {
	service Service
	logger  *slog.Logger
}

// NewRegistrationHandlers creates a new RegistrationHandlers instance.
func NewRegistrationHandlers(service Service, logger *slog.Logger) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationHandlers{service: service, logger: logger}
}

// HandleJoin reserves a slot and opens a payment order.
func (h *RegistrationHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
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
	var req joinRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	res, err := h.service.Join(r.Context(), actor, tournamentID, registrationdomain.TeamInfo{
		TeamName: req.TeamName,
		Members:  req.TeamMembers,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, joinResponse{
		Registration: newRegistrationResponse(res.Registration),
		Order:        res.Order,
	})
}

// HandleVerifyPayment confirms a registration from a checkout callback.
func (h *RegistrationHandlers) HandleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req verifyPaymentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	registrationID, err := httpx.ParseUUID("registration_id", req.RegistrationID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	res, err := h.service.VerifyPayment(r.Context(), actor, registrationservice.VerifyPaymentRequest{
		RegistrationID: registrationID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// HandlePaymentWebhook accepts gateway notifications. Anything with a valid
// signature is acknowledged with 200 so the gateway stops redelivering.
func (h *RegistrationHandlers) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httpx.Error(w, r, h.logger, apperr.Validation("failed to read webhook body"))
		return
	}

	outcome, err := h.service.ConfirmCapturedPayment(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcome)
}

// HandleCancel withdraws a registration.
func (h *RegistrationHandlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Principal(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	registrationID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	reg, err := h.service.CancelRegistration(r.Context(), actor, registrationID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRegistrationResponse(reg))
}

func (h *RegistrationHandlers) HandleGetMyRegistration(w http.ResponseWriter, r *http.Request) {
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

	reg, err := h.service.GetMyRegistration(r.Context(), actor, tournamentID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRegistrationResponse(reg))
}

// HandleListParticipants is public and exposes team names and slots only.
func (h *RegistrationHandlers) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	roster, err := h.service.ListParticipants(r.Context(), tournamentID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	out := make([]rosterEntryResponse, 0, len(roster))
	for _, e := range roster {
		out = append(out, rosterEntryResponse{TeamName: e.TeamName, SlotNumber: e.SlotNumber, Status: e.Status})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"participants": out})
}
