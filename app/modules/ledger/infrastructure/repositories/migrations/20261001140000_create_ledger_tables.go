package ledgermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating escrow_entries, refunds and audit_events tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS escrow_entries (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					kind VARCHAR(16) NOT NULL CHECK (kind IN ('ENTRY_FEE', 'TOPUP', 'PAYOUT', 'REFUND')),
					amount BIGINT NOT NULL,
					reference_id UUID NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT escrow_entries_kind_reference_key UNIQUE (kind, reference_id),
					CONSTRAINT escrow_entries_sign CHECK (
						(kind IN ('ENTRY_FEE', 'TOPUP') AND amount > 0) OR
						(kind IN ('PAYOUT', 'REFUND') AND amount < 0)
					)
				);
				CREATE INDEX IF NOT EXISTS idx_escrow_entries_tournament ON escrow_entries(tournament_id);
			`); err != nil {
				return fmt.Errorf("failed to create escrow_entries table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS refunds (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					registration_id UUID NOT NULL UNIQUE REFERENCES registrations(id),
					participant_id UUID NOT NULL,
					payment_reference TEXT NOT NULL,
					amount BIGINT NOT NULL CHECK (amount > 0),
					reason TEXT NOT NULL,
					from_escrow BOOLEAN NOT NULL DEFAULT TRUE,
					status VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED')),
					gateway_refund_id TEXT,
					failure_reason TEXT,
					attempts INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					completed_at TIMESTAMPTZ
				);
				CREATE INDEX IF NOT EXISTS idx_refunds_tournament ON refunds(tournament_id);
				CREATE INDEX IF NOT EXISTS idx_refunds_status ON refunds(status);
			`); err != nil {
				return fmt.Errorf("failed to create refunds table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS audit_events (
					id UUID PRIMARY KEY,
					entity_type VARCHAR(32) NOT NULL,
					entity_id UUID NOT NULL,
					action VARCHAR(64) NOT NULL,
					from_status VARCHAR(32),
					to_status VARCHAR(32),
					actor_id UUID,
					reason TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id);
			`); err != nil {
				return fmt.Errorf("failed to create audit_events table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ledger tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS audit_events;
				DROP TABLE IF EXISTS refunds;
				DROP TABLE IF EXISTS escrow_entries;
			`); err != nil {
				return fmt.Errorf("failed to drop ledger tables: %w", err)
			}
			return nil
		})
	})
}
