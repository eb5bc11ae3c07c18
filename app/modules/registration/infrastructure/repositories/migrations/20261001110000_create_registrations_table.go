package registrationmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating registrations table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS registrations (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					participant_id UUID NOT NULL,
					team_name VARCHAR(64) NOT NULL,
					team_members TEXT[],
					slot_number INT CHECK (slot_number >= 1),
					amount_paid BIGINT NOT NULL DEFAULT 0 CHECK (amount_paid >= 0),
					status VARCHAR(32) NOT NULL CHECK (status IN (
						'INITIATED', 'AWAITING_PAYMENT', 'CONFIRMED', 'CANCELLED', 'EXPIRED'
					)),
					payment_order_id TEXT,
					payment_reference TEXT,
					payment_deadline TIMESTAMPTZ,
					cancellation_reason TEXT,
					confirmed_at TIMESTAMPTZ,
					cancelled_at TIMESTAMPTZ,
					expired_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT registrations_tournament_slot_key UNIQUE (tournament_id, slot_number)
				);
			`); err != nil {
				return fmt.Errorf("failed to create registrations table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE UNIQUE INDEX IF NOT EXISTS registrations_active_participant_idx
					ON registrations(tournament_id, participant_id)
					WHERE status IN ('INITIATED', 'AWAITING_PAYMENT', 'CONFIRMED');
				CREATE UNIQUE INDEX IF NOT EXISTS registrations_payment_order_idx
					ON registrations(payment_order_id) WHERE payment_order_id IS NOT NULL;
				CREATE INDEX IF NOT EXISTS idx_registrations_pending_deadline
					ON registrations(payment_deadline)
					WHERE status IN ('INITIATED', 'AWAITING_PAYMENT');
				CREATE INDEX IF NOT EXISTS idx_registrations_tournament_status
					ON registrations(tournament_id, status);
			`); err != nil {
				return fmt.Errorf("failed to create registrations indexes: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping registrations table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS registrations;`); err != nil {
				return fmt.Errorf("failed to drop registrations table: %w", err)
			}
			return nil
		})
	})
}
