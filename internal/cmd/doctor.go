package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triagekit/triagekit/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment and suggest fixes for common
issues.

Examples:
  triagekit doctor`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// browserBinaries are the executables the runner can drive, in preference
// order.
var browserBinaries = []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"}

func runDoctor(cmd *cobra.Command, args []string) {
	log := observability.CLILogger
	log.Info("=== triagekit doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	allChecks := true
	totalChecks := 5
	checkNum := 1

	// Check 1: Go runtime
	goVersion := runtime.Version()
	log.Info(fmt.Sprintf("[%d/%d] Checking Go runtime... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	// Check 2: browser binary
	var browser string
	for _, name := range browserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			browser = path
			break
		}
	}
	if browser != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking browser binary... ✅ %s", checkNum, totalChecks, browser),
			zap.String("browser", browser))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking browser binary... ⚠️  none found (install Chrome or Chromium)", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 3: store directory writable
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking configuration... ❌ %s", checkNum, totalChecks, err))
		allChecks = false
	} else {
		dir := filepath.Dir(cfg.Store.Path)
		if dir == "" || dir == "." {
			dir, _ = os.Getwd()
		}
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			log.Info(fmt.Sprintf("[%d/%d] Checking store directory... ✅ %s", checkNum, totalChecks, dir),
				zap.String("store_dir", dir))
		} else {
			log.Warn(fmt.Sprintf("[%d/%d] Checking store directory... ⚠️  %s does not exist yet (created on first run)", checkNum, totalChecks, dir))
		}
	}
	checkNum++

	// Check 4: AI enrichment
	if cfg != nil && cfg.AI.APIKey != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking AI enrichment... ✅ API key configured (model %s)", checkNum, totalChecks, cfg.AI.Model))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking AI enrichment... ⚠️  no API key (reports will be placeholders)", checkNum, totalChecks))
	}
	checkNum++

	// Check 5: environment
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	log.Info("")
	if allChecks {
		log.Info("All checks passed ✅")
	} else {
		log.Warn("Some checks need attention ⚠️")
	}
}
