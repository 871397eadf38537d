package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/submit"
)

var (
	runProvider      string
	runCycleOverview string
	runInstructions  string
	runJSON          bool
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Run a test cycle against a URL and wait for the result",
	Long: `Run the full pipeline once against a single URL: execute the browser
suite, report bugs for failures, and print the finished job.

Example:
  triagekit run https://example.com
  triagekit run https://example.com --cycle-overview "Release 2.4 smoke" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Submission provider for this run (default from config)")
	runCmd.Flags().StringVar(&runCycleOverview, "cycle-overview", "", "Test cycle overview passed to enrichment")
	runCmd.Flags().StringVar(&runInstructions, "instructions", "", "Testing instructions passed to enrichment")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the finished job as JSON")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	if !submit.Known(runProvider) {
		return exitError(foundry.ExitInvalidArgument, "Unknown provider", fmt.Errorf("provider %q", runProvider))
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to initialize service", err)
	}
	defer a.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.coord.Start(runCtx)
	defer func() { _ = a.coord.Stop() }()

	provider := runProvider
	if provider == "" {
		provider = cfg.Submit.Provider
	}
	job, err := a.coord.Trigger(ctx, bugstore.JobParams{
		TestURL:             args[0],
		Provider:            provider,
		CycleOverview:       runCycleOverview,
		TestingInstructions: runInstructions,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to start job", err)
	}
	a.log.Info("job started", zap.String("job", job.ID))

	for !job.Status.Terminal() {
		time.Sleep(250 * time.Millisecond)
		job, err = bugstore.GetJob(ctx, a.db, job.ID)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to poll job", err)
		}
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to encode job", err)
		}
		return nil
	}

	printJob(a, job)

	if job.Status == bugstore.JobStatusError {
		return exitError(foundry.ExitExternalServiceUnavailable, "Job ended in ERROR", fmt.Errorf("job %s", job.ID))
	}
	return nil
}

func printJob(a *app, job *bugstore.Job) {
	a.log.Info("job finished",
		zap.String("job", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("bugs", len(job.Bugs)))
	for _, line := range job.Logs {
		a.log.Info(line)
	}
	for _, bug := range job.Bugs {
		a.log.Info("bug",
			zap.String("test", bug.TestName),
			zap.String("severity", string(bug.Severity)),
			zap.String("status", string(bug.Status)),
			zap.String("summary", bug.Summary))
	}
}
