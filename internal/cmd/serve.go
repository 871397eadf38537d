package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triagekit/triagekit/internal/server"
	"github.com/triagekit/triagekit/internal/server/handlers"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server and the job worker pool.

Endpoints:
  POST /run-tests      trigger a test run
  GET  /jobs/{job_id}  job status, logs, and bugs
  GET  /bugs           all recorded bugs
  GET  /ws/{job_id}    realtime job updates over WebSocket

Example:
  triagekit serve --port 8000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrides := map[string]any{}
	if serveHost != "" {
		overrides["server"] = map[string]any{"host": serveHost}
	}
	if servePort != 0 {
		serverOverride, _ := overrides["server"].(map[string]any)
		if serverOverride == nil {
			serverOverride = map[string]any{}
		}
		serverOverride["port"] = servePort
		overrides["server"] = serverOverride
	}

	cfg, err := loadConfig(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to initialize service", err)
	}
	defer a.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.coord.Start(runCtx)

	api := handlers.NewAPI(a.coord, a.db, a.hub, a.log)
	srv := server.New(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Version: handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
	}, api, nil, a.log)

	srv.Health().RegisterChecker("store", handlers.CheckFunc(func(ctx context.Context) error {
		return a.db.PingContext(ctx)
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "HTTP server failed", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}

	if err := a.coord.Stop(); err != nil {
		a.log.Warn("worker pool shutdown", zap.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
