// Package migrations runs every module's schema migrations and River's in
// dependency order.
package migrations

import (
	"context"
	"fmt"
	"log/slog"

	disputemigrations "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories/migrations"
	ledgermigrations "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories/migrations"
	registrationmigrations "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories/migrations"
	settlementmigrations "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories/migrations"
	tournamentmigrations "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Module names one module's migration set.
type Module struct {
	Name       string
	Migrations *migrate.Migrations
}

// Modules lists module migrations in foreign key order: tournaments first,
// registrations before the settlement tables that reference them.
func Modules() []Module {
	return []Module{
		{"tournament", tournamentmigrations.Migrations},
		{"registration", registrationmigrations.Migrations},
		{"settlement", settlementmigrations.Migrations},
		{"dispute", disputemigrations.Migrations},
		{"ledger", ledgermigrations.Migrations},
	}
}

// Migrators returns one migrator per module, in Modules order. They share
// bun's migration tables.
func Migrators(db *bun.DB) []NamedMigrator {
	mods := Modules()
	out := make([]NamedMigrator, 0, len(mods))
	for _, m := range mods {
		out = append(out, NamedMigrator{Name: m.Name, Migrator: migrate.NewMigrator(db, m.Migrations)})
	}
	return out
}

// NamedMigrator pairs a migrator with its module.
type NamedMigrator struct {
	Name     string
	Migrator *migrate.Migrator
}

// Up creates the migration tables if needed and applies every pending
// module migration.
func Up(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	migrators := Migrators(db)
	if err := migrators[0].Migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	for _, m := range migrators {
		group, err := m.Migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", m.Name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No new migrations", attr.String("module", m.Name))
			continue
		}
		logger.InfoContext(ctx, "Applied migrations",
			attr.String("module", m.Name),
			attr.String("group", group.String()),
		)
	}
	return nil
}

// RiverUp applies River's queue schema over its own pgx pool.
func RiverUp(ctx context.Context, dsn string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN for River migrations: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
	if err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	logger.InfoContext(ctx, "River migrations applied", attr.Int("versions", len(res.Versions)))
	return nil
}
