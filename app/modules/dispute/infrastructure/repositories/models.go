package disputedb

import (
	"time"

	disputedomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Dispute struct {
	bun.BaseModel `bun:"table:disputes,alias:d"`

	ID             uuid.UUID              `bun:"id,pk,type:uuid"`
	TournamentID   uuid.UUID              `bun:"tournament_id,type:uuid,notnull"`
	RegistrationID *uuid.UUID             `bun:"registration_id,type:uuid"`
	MatchID        *uuid.UUID             `bun:"match_id,type:uuid"`
	RaisedBy       uuid.UUID              `bun:"raised_by,type:uuid,notnull"`
	Type           disputedomain.Type     `bun:"type,notnull"`
	Priority       disputedomain.Priority `bun:"priority,notnull"`
	Status         disputedomain.Status   `bun:"status,notnull"`
	Description    string                 `bun:"description,notnull"`
	Resolution     *string                `bun:"resolution"`
	ResolvedBy     *uuid.UUID             `bun:"resolved_by,type:uuid"`
	ResolvedAt     *time.Time             `bun:"resolved_at"`
	CreatedAt      time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time              `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Transition describes a guarded status change.
type Transition struct {
	From       []disputedomain.Status
	To         disputedomain.Status
	Resolution *string
	ActorID    *uuid.UUID
}

type ListFilter struct {
	TournamentID uuid.UUID
	Status       *disputedomain.Status
}
