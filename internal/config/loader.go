package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// TRIAGEKIT_SERVER_PORT.
const EnvPrefix = "TRIAGEKIT"

// Load builds the effective configuration. Precedence, lowest to highest:
// built-in defaults, triagekit.yaml in the working directory, environment
// variables, then runtime overrides. A .env file in the working directory
// is read into the environment first.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("triagekit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, override := range overrides {
		for key, value := range override {
			applyOverride(v, key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// applyOverride flattens nested override maps into dotted viper keys.
func applyOverride(v *viper.Viper, key string, value any) {
	if nested, ok := value.(map[string]any); ok {
		for childKey, childValue := range nested {
			applyOverride(v, key+"."+childKey, childValue)
		}
		return
	}
	v.Set(key, value)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("store.path", "triagekit.db")

	v.SetDefault("runner.timeout", "5m")
	v.SetDefault("runner.headless", true)
	v.SetDefault("runner.no_sandbox", false)
	v.SetDefault("runner.suite_path", "")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_log_lines", 50)

	v.SetDefault("submit.provider", "log")
	v.SetDefault("submit.base_url", "")
	v.SetDefault("submit.api_key", "")
	v.SetDefault("submit.cycle_id", "")
	v.SetDefault("submit.rate_per_second", 2.0)
	v.SetDefault("submit.burst", 4)

	v.SetDefault("artifacts.backend", "file")
	v.SetDefault("artifacts.dir", "artifacts")

	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 32)
}
