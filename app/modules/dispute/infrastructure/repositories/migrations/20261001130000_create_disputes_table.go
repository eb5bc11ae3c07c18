package disputemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating disputes table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS disputes (
					id UUID PRIMARY KEY,
					tournament_id UUID NOT NULL REFERENCES tournaments(id),
					registration_id UUID REFERENCES registrations(id),
					match_id UUID REFERENCES matches(id),
					raised_by UUID NOT NULL,
					type VARCHAR(32) NOT NULL CHECK (type IN (
						'RESULT_DISPUTE', 'PAYMENT_ISSUE', 'CHEATING_REPORT', 'ORGANIZER_COMPLAINT'
					)),
					priority VARCHAR(16) NOT NULL CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
					status VARCHAR(16) NOT NULL CHECK (status IN ('OPEN', 'UNDER_REVIEW', 'RESOLVED', 'DISMISSED')),
					description TEXT NOT NULL,
					resolution TEXT,
					resolved_by UUID,
					resolved_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_disputes_blocking
					ON disputes(tournament_id, match_id)
					WHERE status IN ('OPEN', 'UNDER_REVIEW');
			`); err != nil {
				return fmt.Errorf("failed to create disputes table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping disputes table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS disputes;`); err != nil {
				return fmt.Errorf("failed to drop disputes table: %w", err)
			}
			return nil
		})
	})
}
