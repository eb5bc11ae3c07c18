package settlementdb

import (
	"time"

	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID           uuid.UUID                    `bun:"id,pk,type:uuid"`
	TournamentID uuid.UUID                    `bun:"tournament_id,type:uuid,notnull"`
	Name         string                       `bun:"name,notnull"`
	Round        int                          `bun:"round,notnull,default:1"`
	Status       settlementdomain.MatchStatus `bun:"status,notnull"`
	ScheduledAt  *time.Time                   `bun:"scheduled_at"`
	CreatedBy    uuid.UUID                    `bun:"created_by,type:uuid,notnull"`
	CreatedAt    time.Time                    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time                    `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// MatchResult is the organizer's report of a match. One per match; never
// deleted.
type MatchResult struct {
	bun.BaseModel `bun:"table:match_results,alias:mr"`

	ID              uuid.UUID                     `bun:"id,pk,type:uuid"`
	TournamentID    uuid.UUID                     `bun:"tournament_id,type:uuid,notnull"`
	MatchID         uuid.UUID                     `bun:"match_id,type:uuid,notnull,unique"`
	WinnerID        uuid.UUID                     `bun:"winner_id,type:uuid,notnull"`
	Entries         []settlementdomain.Entry      `bun:"entries,type:jsonb,notnull"`
	Kills           int                           `bun:"kills,notnull"`
	Placement       int                           `bun:"placement,notnull"`
	EvidenceRefs    []string                      `bun:"evidence_refs,array"`
	Status          settlementdomain.ResultStatus `bun:"status,notnull"`
	RejectionReason *string                       `bun:"rejection_reason"`
	SubmittedBy     uuid.UUID                     `bun:"submitted_by,type:uuid,notnull"`
	VerifiedBy      *uuid.UUID                    `bun:"verified_by,type:uuid"`
	SubmittedAt     time.Time                     `bun:"submitted_at,notnull"`
	VerifiedAt      *time.Time                    `bun:"verified_at"`
	RejectedAt      *time.Time                    `bun:"rejected_at"`
	CreatedAt       time.Time                     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time                     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Payout is one prize transfer owed from a verified result.
type Payout struct {
	bun.BaseModel `bun:"table:payouts,alias:p"`

	ID                uuid.UUID                     `bun:"id,pk,type:uuid"`
	TournamentID      uuid.UUID                     `bun:"tournament_id,type:uuid,notnull"`
	MatchID           uuid.UUID                     `bun:"match_id,type:uuid,notnull"`
	MatchResultID     uuid.UUID                     `bun:"match_result_id,type:uuid,notnull"`
	RegistrationID    uuid.UUID                     `bun:"registration_id,type:uuid,notnull"`
	RecipientID       uuid.UUID                     `bun:"recipient_id,type:uuid,notnull"`
	GrossAmount       int64                         `bun:"gross_amount,notnull"`
	PlatformFee       int64                         `bun:"platform_fee,notnull"`
	NetAmount         int64                         `bun:"net_amount,notnull"`
	Status            settlementdomain.PayoutStatus `bun:"status,notnull"`
	TransferReference *string                       `bun:"transfer_reference"`
	FailureReason     *string                       `bun:"failure_reason"`
	Attempts          int                           `bun:"attempts,notnull,default:0"`
	ApprovedBy        *uuid.UUID                    `bun:"approved_by,type:uuid"`
	ApprovedAt        *time.Time                    `bun:"approved_at"`
	CompletedAt       *time.Time                    `bun:"completed_at"`
	CreatedAt         time.Time                     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time                     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
