package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Superego-Agent/superego-lgdemo-sub000/server"
	"github.com/Superego-Agent/superego-lgdemo-sub000/telemetry"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if app.cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer("superego", app.logger)
		if err != nil {
			return exitError(2, "initializing tracing: %v", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	port := app.cfg.Server.Port
	if flagPort, _ := cmd.Flags().GetInt("port"); flagPort != 0 {
		port = flagPort
	}

	srv := server.New(app.factory, app.registry,
		server.WithStore(app.store),
		server.WithLogger(app.logger),
		server.WithDefaultProvider(app.cfg.Providers.Default))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port)); err != nil {
		return exitError(1, "server error: %v", err)
	}
	return nil
}
