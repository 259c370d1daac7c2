package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"leadcolor/internal/config"
	"leadcolor/internal/logger"
	"leadcolor/pkg/logging"
)

// Setup resolves the config file from the flag or CONFIG_FILE, loads it and
// builds the service logger.
func Setup(configFile, serviceName string) (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile == "" {
		earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
		return nil, nil, fmt.Errorf("config file is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	if named, ok := log.(*logger.SugaredLogger); ok {
		named.SetServiceName(serviceName)
	}
	return cfg, log, nil
}

// MigrateCommand builds the "migrate" subcommand with up and down actions.
func MigrateCommand(configFile *string, serviceName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	withDB := func(fn func(dc *DatabaseConnector, log logger.Logger) error) error {
		cfg, log, err := Setup(*configFile, serviceName)
		if err != nil {
			return err
		}
		defer log.Sync()
		return fn(NewDatabaseConnector(cfg, log), log)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(dc *DatabaseConnector, log logger.Logger) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				db, err := dc.InitPostgreSQL(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				return RunMigrations(db, log)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(dc *DatabaseConnector, log logger.Logger) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				db, err := dc.InitPostgreSQL(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				return RollbackMigrations(db, steps, log)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
