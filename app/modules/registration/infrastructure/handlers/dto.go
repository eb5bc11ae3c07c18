package registrationhandlers

import (
	"time"

	paymentgateway "github.com/Black-And-White-Club/tourney-settlement/app/modules/payment/infrastructure/gateway"
	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	"github.com/google/uuid"
)

type joinRequest struct {
	TeamName    string   `json:"team_name"`
	TeamMembers []string `json:"team_members"`
}

type verifyPaymentRequest struct {
	RegistrationID string `json:"registration_id"`
	OrderID        string `json:"order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

type registrationResponse struct {
	ID              uuid.UUID                 `json:"id"`
	TournamentID    uuid.UUID                 `json:"tournament_id"`
	ParticipantID   uuid.UUID                 `json:"participant_id"`
	TeamName        string                    `json:"team_name"`
	TeamMembers     []string                  `json:"team_members"`
	SlotNumber      *int                      `json:"slot_number"`
	AmountPaid      int64                     `json:"amount_paid"`
	Status          registrationdomain.Status `json:"status"`
	PaymentOrderID  *string                   `json:"payment_order_id,omitempty"`
	PaymentDeadline *time.Time                `json:"payment_deadline,omitempty"`
	ConfirmedAt     *time.Time                `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
	ExpiredAt       *time.Time                `json:"expired_at,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

type joinResponse struct {
	Registration registrationResponse  `json:"registration"`
	Order        *paymentgateway.Order `json:"order"`
}

type rosterEntryResponse struct {
	TeamName   string                    `json:"team_name"`
	SlotNumber *int                      `json:"slot_number"`
	Status     registrationdomain.Status `json:"status"`
}

func newRegistrationResponse(reg *registrationdb.Registration) registrationResponse {
	members := reg.TeamMembers
	if members == nil {
		members = []string{}
	}
	return registrationResponse{
		ID:              reg.ID,
		TournamentID:    reg.TournamentID,
		ParticipantID:   reg.ParticipantID,
		TeamName:        reg.TeamName,
		TeamMembers:     members,
		SlotNumber:      reg.SlotNumber,
		AmountPaid:      reg.AmountPaid,
		Status:          reg.Status,
		PaymentOrderID:  reg.PaymentOrderID,
		PaymentDeadline: reg.PaymentDeadline,
		ConfirmedAt:     reg.ConfirmedAt,
		CancelledAt:     reg.CancelledAt,
		ExpiredAt:       reg.ExpiredAt,
		CreatedAt:       reg.CreatedAt,
	}
}
