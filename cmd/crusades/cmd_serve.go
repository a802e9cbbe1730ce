package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vvvdotnet/crusades/internal/app/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until SIGINT or SIGTERM.

SQL stores are migrated on startup.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
