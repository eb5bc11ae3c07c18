package tournamentdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for tournament persistence.
type Repository interface {
	Create(ctx context.Context, db bun.IDB, t *Tournament) error
	GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error)

	// GetForUpdate reads the row under SELECT ... FOR UPDATE. Callers must be
	// inside a transaction.
	GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error)

	// GetForShare reads the row under SELECT ... FOR SHARE.
	GetForShare(ctx context.Context, db bun.IDB, id uuid.UUID) (*Tournament, error)

	List(ctx context.Context, db bun.IDB, filter ListFilter) ([]Tournament, error)

	// UpdateTerms rewrites organizer-editable fields while the row is DRAFT.
	UpdateTerms(ctx context.Context, db bun.IDB, t *Tournament) error

	// ApplyTransition moves the row from one of tr.From to tr.To and returns
	// the updated row. ErrStatusConflict if the row was not in tr.From.
	ApplyTransition(ctx context.Context, db bun.IDB, id uuid.UUID, tr Transition) (*Tournament, error)

	AdjustEscrow(ctx context.Context, db bun.IDB, id uuid.UUID, delta EscrowDelta) error
}
