package tournamentdb

import (
	"time"

	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tournament is the tournaments row. The slot and escrow counters are only
// changed through conditional updates.
type Tournament struct {
	bun.BaseModel `bun:"table:tournaments,alias:t"`

	ID                  uuid.UUID               `bun:"id,pk,type:uuid"`
	OrganizerID         uuid.UUID               `bun:"organizer_id,type:uuid,notnull"`
	Name                string                  `bun:"name,notnull"`
	Game                string                  `bun:"game"`
	Capacity            int                     `bun:"capacity,notnull"`
	EntryFee            int64                   `bun:"entry_fee,notnull"`
	Currency            string                  `bun:"currency,notnull"`
	PrizePool           int64                   `bun:"prize_pool,notnull"`
	PrizePerKill        *int64                  `bun:"prize_per_kill"`
	PrizeTable          []int64                 `bun:"prize_table,array"`
	StartsAt            time.Time               `bun:"starts_at,notnull"`
	Status              tournamentdomain.Status `bun:"status,notnull"`
	ReservedSlots       int                     `bun:"reserved_slots,notnull,default:0"`
	CurrentParticipants int                     `bun:"current_participants,notnull,default:0"`
	NextSlotNumber      int                     `bun:"next_slot_number,notnull,default:0"`
	EscrowCollected     int64                   `bun:"escrow_collected,notnull,default:0"`
	EscrowTopUp         int64                   `bun:"escrow_topup,notnull,default:0"`
	EscrowRefunded      int64                   `bun:"escrow_refunded,notnull,default:0"`
	EscrowReleased      int64                   `bun:"escrow_released,notnull,default:0"`
	RejectionReason     *string                 `bun:"rejection_reason"`
	CancellationReason  *string                 `bun:"cancellation_reason"`
	CreatedAt           time.Time               `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time               `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	OpenedAt            *time.Time              `bun:"opened_at"`
	ClosedAt            *time.Time              `bun:"closed_at"`
	StartedAt           *time.Time              `bun:"started_at"`
	CompletedAt         *time.Time              `bun:"completed_at"`
	CancelledAt         *time.Time              `bun:"cancelled_at"`
}

// EscrowedTotal is what winners can be paid from: captured entry fees net
// of refund obligations, plus organizer top-ups.
func (t *Tournament) EscrowedTotal() int64 {
	return t.EscrowCollected - t.EscrowRefunded + t.EscrowTopUp
}

// IsFull reports whether every slot is confirmed.
func (t *Tournament) IsFull() bool {
	return t.CurrentParticipants >= t.Capacity
}

// ListFilter narrows ListTournaments.
type ListFilter struct {
	Status      *tournamentdomain.Status
	OrganizerID *uuid.UUID
	Limit       int
	Offset      int
}

// Transition describes a guarded status change.
type Transition struct {
	From               []tournamentdomain.Status
	To                 tournamentdomain.Status
	RejectionReason    *string
	CancellationReason *string
}

// EscrowDelta adjusts the escrow counters on the tournament row.
type EscrowDelta struct {
	Collected int64
	TopUp     int64
	Refunded  int64
	Released  int64
}
