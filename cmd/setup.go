package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/repositories"
	"github.com/desertthunder/marquee/internal/shared"
)

// SetupDatabase creates the config file if needed, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	if r.config.Backend.Mode == shared.BackendREST {
		return fmt.Errorf("%w: the rest backend is migrated on the server", shared.ErrInvalidConfig)
	}

	db, dialect, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Info("running database migrations", "dialect", dialect)
	if err := repositories.RunMigrations(ctx, db, dialect); err != nil {
		return err
	}

	version, err := repositories.SchemaVersion(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for %v database", dialect)
	return r.writePlain("✓ Database ready (schema version %d)\n", version)
}

// openDatabase opens the sqlite or postgres database named by the config.
func (r *Runner) openDatabase() (*sql.DB, repositories.Dialect, error) {
	dialect, err := repositories.ParseDialect(r.config.Backend.Mode)
	if err != nil {
		return nil, dialect, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	var db *sql.DB
	switch dialect {
	case repositories.DialectPostgres:
		if r.config.Database.DSN == "" {
			return nil, dialect, fmt.Errorf("%w: database.dsn is required for the postgres backend", shared.ErrInvalidConfig)
		}
		r.logger.Debug("opening postgres database")
		db, err = shared.NewPostgresDatabase(r.config.Database.DSN)
	default:
		path := shared.ExpandPath(r.config.Database.Path)
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, dialect, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		r.logger.Debug("opening sqlite database", "path", path)
		db, err = shared.NewDatabase(path)
	}
	if err != nil {
		return nil, dialect, err
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, dialect, nil
}

// setupCommand handles setup operations
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
