package ledgerdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for escrow, refund and audit persistence.
type Repository interface {
	// AppendEntry books an escrow movement. It reports false when an entry
	// with the same kind and reference already exists.
	AppendEntry(ctx context.Context, db bun.IDB, entry *EscrowEntry) (bool, error)
	Totals(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) (EscrowTotals, error)
	ListEntries(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]EscrowEntry, error)

	// CreateRefund reports false when the registration already has a refund.
	CreateRefund(ctx context.Context, db bun.IDB, refund *Refund) (bool, error)
	GetRefund(ctx context.Context, db bun.IDB, id uuid.UUID) (*Refund, error)
	GetRefundByRegistration(ctx context.Context, db bun.IDB, registrationID uuid.UUID) (*Refund, error)
	// ClaimRefund moves a PENDING or FAILED refund, or a PROCESSING one last
	// touched before staleBefore, to PROCESSING. Only one caller succeeds;
	// the rest get ErrNotClaimable.
	ClaimRefund(ctx context.Context, db bun.IDB, id uuid.UUID, staleBefore time.Time) (*Refund, error)
	CompleteRefund(ctx context.Context, db bun.IDB, id uuid.UUID, gatewayRefundID string) error
	FailRefund(ctx context.Context, db bun.IDB, id uuid.UUID, reason string) error
	ListRefunds(ctx context.Context, db bun.IDB, tournamentID uuid.UUID) ([]Refund, error)
	ListRefundIDsByStatus(ctx context.Context, db bun.IDB, status RefundStatus, limit int) ([]uuid.UUID, error)
	// ListStaleRefundIDs returns PROCESSING refunds last touched before
	// staleBefore, oldest first.
	ListStaleRefundIDs(ctx context.Context, db bun.IDB, staleBefore time.Time, limit int) ([]uuid.UUID, error)

	RecordAudit(ctx context.Context, db bun.IDB, event *AuditEvent) error
	ListAudit(ctx context.Context, db bun.IDB, entityType string, entityID uuid.UUID) ([]AuditEvent, error)
}
