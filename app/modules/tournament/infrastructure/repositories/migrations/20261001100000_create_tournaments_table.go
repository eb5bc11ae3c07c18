package tournamentmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating tournaments table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS tournaments (
					id UUID PRIMARY KEY,
					organizer_id UUID NOT NULL,
					name VARCHAR(200) NOT NULL,
					game VARCHAR(100),
					capacity INT NOT NULL CHECK (capacity >= 1),
					entry_fee BIGINT NOT NULL CHECK (entry_fee >= 0),
					currency CHAR(3) NOT NULL DEFAULT 'INR',
					prize_pool BIGINT NOT NULL CHECK (prize_pool >= 0),
					prize_per_kill BIGINT CHECK (prize_per_kill >= 0),
					prize_table BIGINT[],
					starts_at TIMESTAMPTZ NOT NULL,
					status VARCHAR(32) NOT NULL CHECK (status IN (
						'DRAFT', 'PENDING_APPROVAL', 'APPROVED', 'REGISTRATION_OPEN',
						'REGISTRATION_CLOSED', 'LIVE', 'COMPLETED', 'CANCELLED'
					)),
					reserved_slots INT NOT NULL DEFAULT 0,
					current_participants INT NOT NULL DEFAULT 0,
					next_slot_number INT NOT NULL DEFAULT 0,
					escrow_collected BIGINT NOT NULL DEFAULT 0,
					escrow_topup BIGINT NOT NULL DEFAULT 0,
					escrow_refunded BIGINT NOT NULL DEFAULT 0,
					escrow_released BIGINT NOT NULL DEFAULT 0,
					rejection_reason TEXT,
					cancellation_reason TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					opened_at TIMESTAMPTZ,
					closed_at TIMESTAMPTZ,
					started_at TIMESTAMPTZ,
					completed_at TIMESTAMPTZ,
					cancelled_at TIMESTAMPTZ,
					CONSTRAINT tournaments_reserved_bounds CHECK (reserved_slots >= 0 AND reserved_slots <= capacity),
					CONSTRAINT tournaments_participants_bounds CHECK (current_participants >= 0 AND current_participants <= capacity),
					CONSTRAINT tournaments_confirmed_within_reserved CHECK (current_participants <= reserved_slots),
					CONSTRAINT tournaments_escrow_non_negative CHECK (
						escrow_collected >= 0 AND escrow_topup >= 0 AND
						escrow_refunded >= 0 AND escrow_released >= 0
					)
				);
				CREATE INDEX IF NOT EXISTS idx_tournaments_status ON tournaments(status);
				CREATE INDEX IF NOT EXISTS idx_tournaments_organizer ON tournaments(organizer_id);
			`); err != nil {
				return fmt.Errorf("failed to create tournaments table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping tournaments table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS tournaments;`); err != nil {
				return fmt.Errorf("failed to drop tournaments table: %w", err)
			}
			return nil
		})
	})
}
