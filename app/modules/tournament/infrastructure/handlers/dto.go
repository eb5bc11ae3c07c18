package tournamenthandlers

import (
	"time"

	tournamentdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/domain"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/google/uuid"
)

type termsRequest struct {
	Name         string    `json:"name"`
	Game         string    `json:"game"`
	Capacity     int       `json:"capacity"`
	EntryFee     int64     `json:"entry_fee"`
	Currency     string    `json:"currency"`
	PrizePool    int64     `json:"prize_pool"`
	PrizePerKill *int64    `json:"prize_per_kill"`
	PrizeTable   []int64   `json:"prize_table"`
	StartsAt     time.Time `json:"starts_at"`
	// StartsAtText is a free-text alternative to StartsAt, read in Timezone.
	StartsAtText string `json:"starts_at_text"`
	Timezone     string `json:"timezone"`
}

func (r termsRequest) terms(now time.Time) (tournamentdomain.Terms, error) {
	startsAt := r.StartsAt
	if startsAt.IsZero() && r.StartsAtText != "" {
		loc := time.UTC
		if r.Timezone != "" {
			l, err := time.LoadLocation(r.Timezone)
			if err != nil {
				return tournamentdomain.Terms{}, apperr.Validation("unknown timezone %q", r.Timezone)
			}
			loc = l
		}
		parsed, err := tournamentdomain.ParseStartsAt(r.StartsAtText, now, loc)
		if err != nil {
			return tournamentdomain.Terms{}, apperr.Validation("%s", err.Error())
		}
		startsAt = parsed
	}
	return tournamentdomain.Terms{
		Name:         r.Name,
		Game:         r.Game,
		Capacity:     r.Capacity,
		EntryFee:     r.EntryFee,
		Currency:     r.Currency,
		PrizePool:    r.PrizePool,
		PrizePerKill: r.PrizePerKill,
		PrizeTable:   r.PrizeTable,
		StartsAt:     startsAt,
	}, nil
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

type tournamentResponse struct {
	ID                  uuid.UUID               `json:"id"`
	OrganizerID         uuid.UUID               `json:"organizer_id"`
	Name                string                  `json:"name"`
	Game                string                  `json:"game,omitempty"`
	Capacity            int                     `json:"capacity"`
	EntryFee            int64                   `json:"entry_fee"`
	Currency            string                  `json:"currency"`
	PrizePool           int64                   `json:"prize_pool"`
	PrizePerKill        *int64                  `json:"prize_per_kill"`
	PrizeTable          []int64                 `json:"prize_table"`
	StartsAt            time.Time               `json:"starts_at"`
	Status              tournamentdomain.Status `json:"status"`
	CurrentParticipants int                     `json:"current_participants"`
	ReservedSlots       int                     `json:"reserved_slots"`
	RejectionReason     *string                 `json:"rejection_reason,omitempty"`
	CancellationReason  *string                 `json:"cancellation_reason,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	OpenedAt            *time.Time              `json:"opened_at,omitempty"`
	ClosedAt            *time.Time              `json:"closed_at,omitempty"`
	StartedAt           *time.Time              `json:"started_at,omitempty"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
	CancelledAt         *time.Time              `json:"cancelled_at,omitempty"`
}

type cancelResponse struct {
	Tournament         tournamentResponse `json:"tournament"`
	CancelledPending   int                `json:"cancelled_pending"`
	CancelledConfirmed int                `json:"cancelled_confirmed"`
	RefundsCreated     int                `json:"refunds_created"`
	RefundedTotal      int64              `json:"refunded_total"`
}

func newTournamentResponse(t *tournamentdb.Tournament) tournamentResponse {
	table := t.PrizeTable
	if table == nil {
		table = []int64{}
	}
	return tournamentResponse{
		ID:                  t.ID,
		OrganizerID:         t.OrganizerID,
		Name:                t.Name,
		Game:                t.Game,
		Capacity:            t.Capacity,
		EntryFee:            t.EntryFee,
		Currency:            t.Currency,
		PrizePool:           t.PrizePool,
		PrizePerKill:        t.PrizePerKill,
		PrizeTable:          table,
		StartsAt:            t.StartsAt,
		Status:              t.Status,
		CurrentParticipants: t.CurrentParticipants,
		ReservedSlots:       t.ReservedSlots,
		RejectionReason:     t.RejectionReason,
		CancellationReason:  t.CancellationReason,
		CreatedAt:           t.CreatedAt,
		OpenedAt:            t.OpenedAt,
		ClosedAt:            t.ClosedAt,
		StartedAt:           t.StartedAt,
		CompletedAt:         t.CompletedAt,
		CancelledAt:         t.CancelledAt,
	}
}
