package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.cfg().Database
	r.logger.Info("initializing database", "driver", cfg.Driver)

	db, err := r.database(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	version, err := shared.MigrationVersion(ctx, db, cfg.Driver)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", cfg.Driver)
	return r.writePlain("✓ Database ready (schema version %d)\n", version)
}

// SetupConfig writes the bundled example configuration to disk.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = cmd.String("config")
	}
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return fmt.Errorf("%w: --output is required", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or WRAPPED_SPOTIFY_CLIENT_ID/SECRET)\n")
	r.writePlain("2. Run 'wrapped setup database'\n")
	return r.writePlain("3. Run 'wrapped serve' or 'wrapped login'\n")
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	driver := r.cfg().Database.Driver

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	if err := shared.RollbackMigration(ctx, db, driver, r.logger); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	version, err := shared.MigrationVersion(ctx, db, driver)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Rolled back to schema version %d\n", version)
}
