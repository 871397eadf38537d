package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/triagekit/triagekit/internal/config"
	"github.com/triagekit/triagekit/internal/observability"
	"github.com/triagekit/triagekit/pkg/artifact"
	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/coordinator"
	"github.com/triagekit/triagekit/pkg/dedup"
	"github.com/triagekit/triagekit/pkg/enrich"
	"github.com/triagekit/triagekit/pkg/notify"
	"github.com/triagekit/triagekit/pkg/runner"
	"github.com/triagekit/triagekit/pkg/submit"
)

// app bundles the assembled service components.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *sql.DB
	hub   *notify.Hub
	coord *coordinator.Coordinator
}

// loadConfig loads configuration and applies root-flag overrides.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	if rootLogLevel != "" {
		overrides = append(overrides, map[string]any{
			"logging": map[string]any{"level": rootLogLevel},
		})
	}
	return config.Load(ctx, overrides...)
}

// buildApp opens the store, runs migrations, and wires the coordinator
// pipeline from configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := observability.CLILogger

	db, err := bugstore.Open(ctx, bugstore.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := bugstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	suite := runner.DefaultSuite()
	if cfg.Runner.SuitePath != "" {
		suite, err = runner.LoadSuite(cfg.Runner.SuitePath)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load suite: %w", err)
		}
	}

	browser := runner.NewBrowser(runner.BrowserConfig{
		Timeout:   cfg.Runner.Timeout,
		Headless:  cfg.Runner.Headless,
		NoSandbox: cfg.Runner.NoSandbox,
		Suite:     suite,
	})

	enricher := enrich.NewAI(enrich.Config{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		MaxLogLines: cfg.AI.MaxLogLines,
	}, log)

	if !submit.Known(cfg.Submit.Provider) {
		_ = db.Close()
		return nil, fmt.Errorf("unknown submission provider %q", cfg.Submit.Provider)
	}
	gateways := submit.NewSelector(submit.Config{
		Provider:      cfg.Submit.Provider,
		BaseURL:       cfg.Submit.BaseURL,
		APIKey:        cfg.Submit.APIKey,
		CycleID:       cfg.Submit.CycleID,
		RatePerSecond: cfg.Submit.RatePerSecond,
		Burst:         cfg.Submit.Burst,
	}, log)

	artifacts, err := buildArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build artifact store: %w", err)
	}

	hub := notify.NewHub(log)
	coord := coordinator.New(coordinator.Deps{
		DB:        db,
		Runner:    browser,
		Detector:  dedup.New(db),
		Enricher:  enricher,
		Gateways:  gateways,
		Hub:       hub,
		Artifacts: artifacts,
		Log:       log,
	}, coordinator.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	})

	return &app{cfg: cfg, log: log, db: db, hub: hub, coord: coord}, nil
}

func buildArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "file":
		return artifact.NewFileStore(cfg.Dir)
	case "s3":
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

// openStore opens the configured store for read-only commands.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := bugstore.Open(ctx, bugstore.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := bugstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return db, nil
}

func (a *app) close() {
	_ = a.db.Close()
	_ = a.log.Sync()
}
