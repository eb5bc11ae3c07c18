package registrationdb

import (
	"context"
	"time"

	registrationdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExpiredRegistration is a registration ClaimExpired moved to EXPIRED.
type ExpiredRegistration struct {
	Registration
	From registrationdomain.Status
}

// Repository defines the contract for registration persistence.
type Repository interface {
	// Create inserts an INITIATED registration. ErrAlreadyRegistered when the
	// participant already holds an active registration for the tournament.
	Create(ctx context.Context, db bun.IDB, reg *Registration) error
	GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Registration, error)
	GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Registration, error)
	GetByOrderID(ctx context.Context, db bun.IDB, orderID string) (*Registration, error)
	GetActiveByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*Registration, error)
	// GetLatestByParticipant returns the most recent registration in any status.
	GetLatestByParticipant(ctx context.Context, db bun.IDB, tournamentID, participantID uuid.UUID) (*Registration, error)

	MarkAwaitingPayment(ctx context.Context, db bun.IDB, id uuid.UUID, deadline time.Time) (*Registration, error)
	SetPaymentOrder(ctx context.Context, db bun.IDB, id uuid.UUID, orderID string) error
	Confirm(ctx context.Context, db bun.IDB, id uuid.UUID, params ConfirmParams) (*Registration, error)
	Cancel(ctx context.Context, db bun.IDB, id uuid.UUID, from []registrationdomain.Status, reason string) (*Registration, error)
	// RecordLatePayment stores the capture reference on a registration that
	// can no longer be confirmed.
	RecordLatePayment(ctx context.Context, db bun.IDB, id uuid.UUID, paymentReference string, amount int64) error

	// ClaimExpired moves the tournament's pending registrations whose
	// deadline passed to EXPIRED and returns exactly the rows it moved, each
	// with the status it left. Callers must be inside a transaction.
	ClaimExpired(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, now time.Time, limit int) ([]ExpiredRegistration, error)
	TournamentsWithExpired(ctx context.Context, db bun.IDB, now time.Time, limit int) ([]uuid.UUID, error)

	CancelPendingForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]Registration, error)
	CancelConfirmedForTournament(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, reason string) ([]Registration, error)

	ListByStatus(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, statuses ...registrationdomain.Status) ([]Registration, error)
	Roster(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]RosterEntry, error)
}

// SlotAllocator moves the slot counters on the tournaments row. Every
// method is a single conditional UPDATE.
type SlotAllocator interface {
	// Reserve takes a provisional slot. False when the tournament is not
	// open or every slot is reserved.
	Reserve(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (bool, error)
	// Release returns n provisional slots.
	Release(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error
	// Confirm turns a reserved slot into a confirmed one and returns the
	// next number from the tournament's slot sequence.
	Confirm(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (int, error)
	// ReleaseConfirmed gives back n confirmed slots together with their
	// reservations.
	ReleaseConfirmed(ctx context.Context, db bun.IDB, tournamentID uuid.UUID, n int) error
}
