package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)

		assert.Equal(t, "triagekit.db", cfg.Store.Path)

		assert.Equal(t, 5*time.Minute, cfg.Runner.Timeout)
		assert.True(t, cfg.Runner.Headless)

		assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
		assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
		assert.Equal(t, 50, cfg.AI.MaxLogLines)

		assert.Equal(t, "log", cfg.Submit.Provider)
		assert.Equal(t, 2.0, cfg.Submit.RatePerSecond)

		assert.Equal(t, "file", cfg.Artifacts.Backend)

		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 32, cfg.QueueSize)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "127.0.0.1",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Non-overridden values keep their defaults.
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 4, cfg.Workers)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("TRIAGEKIT_SERVER_PORT", "3000")
		t.Setenv("TRIAGEKIT_LOGGING_LEVEL", "warn")
		t.Setenv("TRIAGEKIT_WORKERS", "8")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 8, cfg.Workers)
	})

	t.Run("RuntimeBeatsEnv", func(t *testing.T) {
		t.Setenv("TRIAGEKIT_SERVER_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)

		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Load(cancelled)
		require.Error(t, err)
	})
}
