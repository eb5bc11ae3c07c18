package disputedb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for dispute persistence.
type Repository interface {
	Create(ctx context.Context, db bun.IDB, d *Dispute) error
	GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Dispute, error)
	List(ctx context.Context, db bun.IDB, filter ListFilter) ([]Dispute, error)
	ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr Transition) (*Dispute, error)

	// HasBlocking reports an OPEN or UNDER_REVIEW dispute on the tournament
	// as a whole or, when matchID is set, on that match.
	HasBlocking(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error)
}
