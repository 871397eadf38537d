// Package observability owns logger construction for the CLI and server.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for command output. It defaults to
// a console logger so commands can log before configuration is loaded;
// InitCLILogger replaces it once the logging config is known.
var CLILogger = newConsoleLogger(zapcore.InfoLevel)

// Logging profiles.
const (
	ProfileStructured = "STRUCTURED"
	ProfileConsole    = "CONSOLE"
)

// NewLogger builds a zap logger for the given level and profile.
// STRUCTURED emits JSON for log pipelines; CONSOLE emits human-readable
// output for interactive use.
func NewLogger(level, profile string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	switch profile {
	case ProfileConsole, "":
		return newConsoleLogger(lvl), nil
	case ProfileStructured:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unknown logging profile %q", profile)
	}
}

// InitCLILogger swaps the process logger. Safe to call once at startup,
// before any concurrent use.
func InitCLILogger(level, profile string) error {
	logger, err := NewLogger(level, profile)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

func newConsoleLogger(lvl zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}
