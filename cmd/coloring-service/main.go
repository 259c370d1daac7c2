package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"leadcolor/pkg/bootstrap"
)

const serviceName = "coloring-service"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Lead coloring worker",
		Long:  "Coloring Service answers rule management and lead styling requests from the broker",
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
		Short: "Start the coloring service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap.Setup(configFile, serviceName)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			log.InfowCtx(ctx, "Starting Coloring Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			err = app.Run(ctx)
			if shutdownErr := app.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
				log.ErrorwCtx(ctx, "Shutdown failed", "error", shutdownErr)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}
