package disputehandlers

import (
	"time"

	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	"github.com/google/uuid"
)

type openRequest struct {
	TournamentID   uuid.UUID              `json:"tournament_id"`
	RegistrationID *uuid.UUID             `json:"registration_id"`
	MatchID        *uuid.UUID             `json:"match_id"`
	Type           disputedomain.Type     `json:"type"`
	Priority       disputedomain.Priority `json:"priority"`
	Description    string                 `json:"description"`
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

type dismissRequest struct {
	Reason string `json:"reason"`
}

type disputeResponse struct {
	ID             uuid.UUID              `json:"id"`
	TournamentID   uuid.UUID              `json:"tournament_id"`
	RegistrationID *uuid.UUID             `json:"registration_id,omitempty"`
	MatchID        *uuid.UUID             `json:"match_id,omitempty"`
	RaisedBy       uuid.UUID              `json:"raised_by"`
	Type           disputedomain.Type     `json:"type"`
	Priority       disputedomain.Priority `json:"priority"`
	Status         disputedomain.Status   `json:"status"`
	Description    string                 `json:"description"`
	Resolution     *string                `json:"resolution,omitempty"`
	ResolvedBy     *uuid.UUID             `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

func newDisputeResponse(d *disputedb.Dispute) disputeResponse {
	return disputeResponse{
		ID:             d.ID,
		TournamentID:   d.TournamentID,
		RegistrationID: d.RegistrationID,
		MatchID:        d.MatchID,
		RaisedBy:       d.RaisedBy,
		Type:           d.Type,
		Priority:       d.Priority,
		Status:         d.Status,
		Description:    d.Description,
		Resolution:     d.Resolution,
		ResolvedBy:     d.ResolvedBy,
		ResolvedAt:     d.ResolvedAt,
		CreatedAt:      d.CreatedAt,
	}
}
