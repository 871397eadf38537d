// Package cmd implements the triagekit command tree.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triagekit/triagekit/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "triagekit",
	Short: "Automated web test execution and bug triage",
	Long: `triagekit runs browser test suites against target URLs, turns failures
into structured bug reports, deduplicates them by fingerprint, and
forwards confirmed bugs to an external tracker.

Run 'triagekit serve' to start the HTTP API, or 'triagekit run' for a
one-shot execution against a single URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected at link time.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootLogLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// codedError carries a process exit code alongside the underlying error.
type codedError struct {
	code    int
	message string
	err     error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err)
	}
	return e.message
}

func (e *codedError) Unwrap() error { return e.err }

// exitError wraps an error with a message and exit code for Execute to
// act on.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, message: message, err: err}
}

// Execute runs the command tree and exits the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var coded *codedError
		if errors.As(err, &coded) {
			observability.CLILogger.Error(coded.message, zap.Error(coded.err))
			os.Exit(coded.code)
		}
		observability.CLILogger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
