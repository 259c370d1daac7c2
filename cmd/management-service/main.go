package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	_ "leadcolor/cmd/management-service/docs"
	"leadcolor/pkg/bootstrap"
)

const serviceName = "management-service"

var configFile string

// @title           Leads Coloring Management API
// @version         1.0
// @description     REST API for managing lead coloring rules and resolving lead styles

// @BasePath  /api/v1
// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Management Service for lead coloring rules",
		Long:  "Management Service provides the REST API for coloring rules, lead styles and the audit trail",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(bootstrap.MigrateCommand(&configFile, serviceName))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the management service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap.Setup(configFile, serviceName)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			log.InfowCtx(ctx, "Starting Management Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			err = app.Run(ctx)
			if shutdownErr := app.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
				log.ErrorwCtx(ctx, "Shutdown failed", "error", shutdownErr)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}
