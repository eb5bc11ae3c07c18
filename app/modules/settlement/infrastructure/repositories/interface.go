package settlementdb

import (
	"context"
	"time"

	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for match, result and payout persistence.
type Repository interface {
	CreateMatch(ctx context.Context, db bun.IDB, m *Match) error
	GetMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error)
	ListMatches(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]Match, error)

	// UpsertResult inserts the match's result or overwrites one that is
	// still SUBMITTED or REJECTED. ErrStatusConflict once VERIFIED.
	UpsertResult(ctx context.Context, db bun.IDB, result *MatchResult) error
	GetResultByMatch(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*MatchResult, error)
	GetResultByMatchForUpdate(ctx context.Context, db bun.IDB, matchID uuid.UUID) (*MatchResult, error)
	GetResult(ctx context.Context, db bun.IDB, id uuid.UUID) (*MatchResult, error)
	MarkResultVerified(ctx context.Context, db bun.IDB, id, verifiedBy uuid.UUID) (*MatchResult, error)
	MarkResultRejected(ctx context.Context, db bun.IDB, id, rejectedBy uuid.UUID, reason string) (*MatchResult, error)

	CreatePayouts(ctx context.Context, db bun.IDB, payouts []Payout) error
	// SumCommittedGross totals the gross of every payout the tournament owes
	// or has paid.
	SumCommittedGross(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int64, error)
	GetPayout(ctx context.Context, db bun.IDB, id uuid.UUID) (*Payout, error)
	ListPayouts(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, status *settlementdomain.PayoutStatus) ([]Payout, error)
	ListPayoutIDsByStatus(ctx context.Context, db bun.IDB, status settlementdomain.PayoutStatus, limit int) ([]uuid.UUID, error)
	// ListStalePayoutIDs returns PROCESSING payouts last touched before
	// staleBefore, oldest first.
	ListStalePayoutIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error)

	ApprovePayout(ctx context.Context, db bun.IDB, id uuid.UUID, approvedBy *uuid.UUID) (*Payout, error)
	// ClaimPayout moves an APPROVED or FAILED payout, or a PROCESSING one
	// last touched before staleBefore, to PROCESSING. Only one caller
	// succeeds; the rest get ErrNotClaimable.
	ClaimPayout(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*Payout, error)
	CompletePayout(ctx context.Context, db bun.IDB, id uuid.UUID, transferReference string) (*Payout, error)
	FailPayout(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) (*Payout, error)
}
