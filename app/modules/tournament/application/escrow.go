package tournamentservice

import (
	"context"
	"fmt"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/telemetry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EscrowSummary is the money position of one tournament. Amounts are in
// minor units of the tournament currency.
type EscrowSummary struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	Currency     string    `json:"currency"`
	Collected    int64     `json:"collected"`
	TopUp        int64     `json:"topup"`
	Refunded     int64     `json:"refunded"`
	Released     int64     `json:"released"`
	// Escrowed is what winners can be paid from.
	Escrowed       int64 `json:"escrowed"`
	CommittedGross int64 `json:"committed_gross"`
	Available      int64 `json:"available"`
	// Balance is the ledger's view: credits minus completed debits.
	Balance int64 `json:"balance"`
}

// TopUpEscrow credits organizer funds to the tournament escrow.
func (s *Service) TopUpEscrow(ctx context.Context, actor authdomain.Principal, id uuid.UUID, amount int64) (*tournamentdb.Tournament, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	result, err := telemetry.Run(ctx, s.instruments(), "TopUpEscrow", id.String(), func(ctx context.Context) (results.OperationResult[*tournamentdb.Tournament, error], error) {
		return ledgerdb.RunInTx(ctx, s.db, func(ctx context.Context, db bun.IDB) (results.OperationResult[*tournamentdb.Tournament, error], error) {
			t, denied, err := s.loadOwned(ctx, db, actor, id, true)
			if err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, err
			}
			if denied != nil {
				return fail[*tournamentdb.Tournament](denied)
			}
			if !t.Status.AcceptsEscrowTopUp() {
				return fail[*tournamentdb.Tournament](apperr.InvalidState("tournament is %s, escrow is closed", t.Status))
			}

			topUpID := uuid.New()
			if err := s.book.CreditTopUp(ctx, db, t.ID, topUpID, amount); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to credit top-up: %w", err)
			}
			if err := s.audit(ctx, db, t.ID, "escrow.topup", t.Status, t.Status, actor.ActorID(), fmt.Sprintf("top-up %s of %d %s", topUpID, amount, t.Currency)); err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to audit top-up: %w", err)
			}
			fresh, err := s.repo.GetByID(ctx, db, t.ID)
			if err != nil {
				return results.OperationResult[*tournamentdb.Tournament, error]{}, fmt.Errorf("failed to reload tournament: %w", err)
			}
			return results.SuccessResult[*tournamentdb.Tournament, error](fresh), nil
		})
	})
	return telemetry.Unwrap(result, err)
}

// EscrowSummary reports the tournament's counters next to the ledger.
func (s *Service) EscrowSummary(ctx context.Context, actor authdomain.Principal, id uuid.UUID) (*EscrowSummary, error) {
	result, err := telemetry.Run(ctx, s.instruments(), "EscrowSummary", id.String(), func(ctx context.Context) (results.OperationResult[*EscrowSummary, error], error) {
		db := s.idb()
		t, denied, err := s.loadOwned(ctx, db, actor, id, false)
		if err != nil {
			return results.OperationResult[*EscrowSummary, error]{}, err
		}
		if denied != nil {
			return fail[*EscrowSummary](denied)
		}
		committed, err := s.settlement.SumCommittedGross(ctx, db, t.ID)
		if err != nil {
			return results.OperationResult[*EscrowSummary, error]{}, fmt.Errorf("failed to sum committed payouts: %w", err)
		}
		totals, err := s.book.Ledger().Totals(ctx, db, t.ID)
		if err != nil {
			return results.OperationResult[*EscrowSummary, error]{}, fmt.Errorf("failed to total escrow entries: %w", err)
		}
		return results.SuccessResult[*EscrowSummary, error](&EscrowSummary{
			TournamentID:   t.ID,
			Currency:       t.Currency,
			Collected:      t.EscrowCollected,
			TopUp:          t.EscrowTopUp,
			Refunded:       t.EscrowRefunded,
			Released:       t.EscrowReleased,
			Escrowed:       t.EscrowedTotal(),
			CommittedGross: committed,
			Available:      t.EscrowedTotal() - committed,
			Balance:        totals.Balance(),
		}), nil
	})
	return telemetry.Unwrap(result, err)
}
