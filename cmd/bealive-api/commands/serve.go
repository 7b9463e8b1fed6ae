package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bealive/bealive-api/internal/app/runtime"
)

var (
	// Serve flags
	port    int
	backend string
)

// serveCmd starts the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API and block until SIGINT or SIGTERM, then drain in-flight
requests within the shutdown timeout.

Examples:
  bealive-api serve                      # settings from the environment
  bealive-api serve --backend memory     # local run without Supabase
  bealive-api serve --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&backend, "backend", "", "Storage backend: supabase, postgres or memory")
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if backend != "" {
		cfg.Database.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := runtime.NewApplication(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := app.Run(ctx)
	if err := app.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
