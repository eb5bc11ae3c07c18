package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/Black-And-White-Club/tourney-settlement/app/migrations"
	"github.com/Black-And-White-Club/tourney-settlement/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// env carries the connection opened by the Before hook.
type env struct {
	dsn       string
	db        *bun.DB
	migrators []migrations.NamedMigrator
}

func main() {
	e := &env{}

	cliApp := &cli.App{
		Name:  "bun",
		Usage: "tourney-settlement database tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			e.dsn = cfg.Postgres.DSN
			pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
			e.db = bun.NewDB(pgdb, pgdialect.New())
			e.migrators = migrations.Migrators(e.db)
			return nil
		},
		After: func(c *cli.Context) error {
			if e.db != nil {
				return e.db.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			newMultiModuleDBCommand(e),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newMultiModuleDBCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return e.migrators[0].Migrator.Init(c.Context)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply module and River migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "skip-river", Usage: "leave the job queue schema alone"},
				},
				Action: func(c *cli.Context) error {
					logger := slog.Default()
					if err := migrations.Up(c.Context, e.db, logger); err != nil {
						return err
					}
					if c.Bool("skip-river") {
						return nil
					}
					return migrations.RiverUp(c.Context, e.dsn, logger)
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group of every module, dependents first",
				Action: func(c *cli.Context) error {
					for _, m := range slices.Backward(e.migrators) {
						group, err := m.Migrator.Rollback(c.Context)
						if err != nil {
							return fmt.Errorf("failed to roll back %s: %w", m.Name, err)
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", m.Name)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", m.Name, group)
						}
					}
					return nil
				},
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "<module> <name words...>",
				Action: func(c *cli.Context) error {
					m, err := lookup(e.migrators, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					mf, err := m.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration: %s (%s)\n", mf.Name, mf.Path)
					return nil
				},
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name words...>",
				Action: func(c *cli.Context) error {
					m, err := lookup(e.migrators, c.Args().First())
					if err != nil {
						return err
					}
					name := strings.Join(c.Args().Tail(), "_")
					files, err := m.CreateSQLMigrations(c.Context, name)
					if err != nil {
						return err
					}
					for _, mf := range files {
						fmt.Printf("Created migration: %s (%s)\n", mf.Name, mf.Path)
					}
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					for _, m := range e.migrators {
						ms, err := m.Migrator.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", m.Name)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				},
			},
		},
	}
}

func lookup(migrators []migrations.NamedMigrator, name string) (*migrate.Migrator, error) {
	for _, m := range migrators {
		if m.Name == name {
			return m.Migrator, nil
		}
	}
	return nil, fmt.Errorf("invalid module name: %q", name)
}
