// Package config loads service configuration from defaults, an optional
// config file, environment variables, and runtime overrides, in rising
// precedence.
package config

import "time"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	AI        AIConfig        `mapstructure:"ai"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`

	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RunnerConfig configures the browser runner.
type RunnerConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Headless  bool          `mapstructure:"headless"`
	NoSandbox bool          `mapstructure:"no_sandbox"`
	SuitePath string        `mapstructure:"suite_path"`
}

// AIConfig configures failure enrichment.
type AIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxLogLines int           `mapstructure:"max_log_lines"`
}

// SubmitConfig configures the bug submission gateway.
type SubmitConfig struct {
	Provider      string  `mapstructure:"provider"`
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	CycleID       string  `mapstructure:"cycle_id"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// ArtifactsConfig configures screenshot storage. Backend is "file", "s3",
// or "" to disable artifact capture.
type ArtifactsConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`

	S3Bucket          string `mapstructure:"s3_bucket"`
	S3Region          string `mapstructure:"s3_region"`
	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
	S3ForcePathStyle  bool   `mapstructure:"s3_force_path_style"`
}
