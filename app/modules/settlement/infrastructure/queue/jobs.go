package settlementqueue

import "github.com/google/uuid"

// PayoutJob transfers one approved payout to its recipient.
type PayoutJob struct {
	PayoutID uuid.UUID `json:"payout_id"`
}

// Kind returns the job type identifier for River
func (PayoutJob) Kind() string { return "payout_transfer" }

// RefundJob returns one entry fee to the payer.
type RefundJob struct {
	RefundID uuid.UUID `json:"refund_id"`
}

// Kind returns the job type identifier for River
func (RefundJob) Kind() string { return "refund_transfer" }

// SweepJob expires unpaid reservations and closes registration on
// tournaments that reached their start time.
type SweepJob struct{}

// Kind returns the job type identifier for River
func (SweepJob) Kind() string { return "registration_sweep" }

// ReconcileJob re-enqueues payouts and refunds whose scheduling was lost.
type ReconcileJob struct{}

// Kind returns the job type identifier for River
func (ReconcileJob) Kind() string { return "settlement_reconcile" }
