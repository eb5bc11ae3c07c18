package settlementmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating matches, match_results and payouts tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS matches (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					name VARCHAR(200) NOT NULL,
					round INT NOT NULL DEFAULT 1 CHECK (round >= 1),
					status VARCHAR(16) NOT NULL CHECK (status IN ('SCHEDULED', 'LIVE', 'COMPLETED')),
					scheduled_at TIMESTAMPTZ,
					created_by UUID NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_matches_tournament ON matches(tournament_id);
			`); err != nil {
				return fmt.Errorf("failed to create matches table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS match_results (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					match_id UUID NOT NULL UNIQUE REFERENCES matches(id),
					winner_id UUID NOT NULL REFERENCES registrations(id),
					entries JSONB NOT NULL,
					kills INT NOT NULL CHECK (kills >= 0),
					placement INT NOT NULL CHECK (placement >= 1),
					evidence_refs TEXT[],
					status VARCHAR(16) NOT NULL CHECK (status IN ('SUBMITTED', 'VERIFIED', 'REJECTED')),
					rejection_reason TEXT,
					submitted_by UUID NOT NULL,
					verified_by UUID,
					submitted_at TIMESTAMPTZ NOT NULL,
					verified_at TIMESTAMPTZ,
					rejected_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_match_results_tournament ON match_results(tournament_id);
			`); err != nil {
				return fmt.Errorf("failed to create match_results table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS payouts (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					match_id UUID NOT NULL REFERENCES matches(id),
					match_result_id UUID NOT NULL REFERENCES match_results(id),
					registration_id UUID NOT NULL REFERENCES registrations(id),
					recipient_id UUID NOT NULL,
					gross_amount BIGINT NOT NULL CHECK (gross_amount > 0),
					platform_fee BIGINT NOT NULL CHECK (platform_fee >= 0),
					net_amount BIGINT NOT NULL CHECK (net_amount >= 0),
					status VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'PROCESSING', 'COMPLETED', 'FAILED')),
					transfer_reference TEXT,
					failure_reason TEXT,
					attempts INT NOT NULL DEFAULT 0,
					approved_by UUID,
					approved_at TIMESTAMPTZ,
					completed_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT payouts_result_registration_key UNIQUE (match_result_id, registration_id),
					CONSTRAINT payouts_amounts_balance CHECK (net_amount + platform_fee = gross_amount)
				);
				CREATE INDEX IF NOT EXISTS idx_payouts_tournament ON payouts(tournament_id);
				CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);
			`); err != nil {
				return fmt.Errorf("failed to create payouts table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping settlement tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS payouts;
				DROP TABLE IF EXISTS match_results;
				DROP TABLE IF EXISTS matches;
			`); err != nil {
				return fmt.Errorf("failed to drop settlement tables: %w", err)
			}
			return nil
		})
	})
}
