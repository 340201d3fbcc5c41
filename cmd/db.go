package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hazelvane/beatmigrate/internal/repositories"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

func dbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database management",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the database and run pending migrations",
				Action: r.DBInit,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.DBRollback,
			},
			{
				Name:  "stats",
				Usage: "Show row counts for the core tables",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.DBStats,
			},
		},
	}
}

// DBInit creates the database file and applies pending migrations.
func (r *Runner) DBInit(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	r.logger.Info("database ready", "path", r.config.Database.Path)
	return nil
}

// DBRollback rolls back the most recently applied migration.
func (r *Runner) DBRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	return shared.RollbackMigration(db)
}

// DBStats prints row counts for the core tables.
func (r *Runner) DBStats(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := repositories.Stats(db)
	if err != nil {
		return err
	}

	return r.writeJSON(stats, cmd.Bool("pretty"))
}
