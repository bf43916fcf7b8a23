package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ytsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// setupConfig loads path, writing the embedded template there first when the file is missing.
// Unlike a plain load, an invalid file is an error: setup is where the user fixes it.
func (r *Runner) setupConfig(path string) (*shared.Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		return config, false, err
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return nil, false, err
	}
	r.logger.Info("config file created", "path", path)
	return shared.DefaultConfig(), true, nil
}

// SetupDatabase prepares everything a first sync needs: config, schema, backup and token directories.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config, created, err := r.setupConfig(configPath)
	if err != nil {
		return fmt.Errorf("config %s: %w", configPath, err)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, dir := range []string{config.Sync.BackupDir, filepath.Dir(config.Credentials.YouTube.TokenPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if created {
		r.writePlain("✓ Config written: %s\n", configPath)
	}
	r.writePlain("✓ Database ready: %s (%d migrations applied)\n", config.Database.Path, len(applied))
	r.writePlain("✓ Backups will be written to %s\n", config.Sync.BackupDir)

	if !config.Credentials.YouTube.Configured() {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.youtube.client_id and client_secret in %s\n", configPath)
		r.writePlain("2. Run 'ytsort auth login'\n")
	}
	return nil
}
