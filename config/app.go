package config

import (
	"fmt"
	"time"

	"github.com/skillsenselab/streamkit/observability"
	"github.com/skillsenselab/streamkit/resilience"
	"github.com/skillsenselab/streamkit/server"
)

// Config is the full application configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Pipeline      PipelineConfig       `yaml:"pipeline" mapstructure:"pipeline"`
	Files         FilesConfig          `yaml:"files" mapstructure:"files"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// PipelineConfig tunes run execution defaults.
type PipelineConfig struct {
	// DefaultChunkSize applies when a run omits params.chunkSize.
	DefaultChunkSize int `yaml:"default_chunk_size" mapstructure:"default_chunk_size"`
	// DefaultParallelism applies when a parallelMap omits params.parallelism.
	DefaultParallelism int `yaml:"default_parallelism" mapstructure:"default_parallelism"`
	// Retry governs transient retries in parallelMap sub-batches and file I/O.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig is the file-format form of a retry policy. Durations are
// plain millisecond integers so they survive YAML and env overrides.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffFactor    float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// ToRetry converts to the resilience form. Unset fields stay zero and pick
// up the resilience defaults at the point of use.
func (c RetryConfig) ToRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxBackoffMs) * time.Millisecond,
		BackoffFactor:  c.BackoffFactor,
		Jitter:         c.Jitter,
	}
}

// FilesConfig is the allow-list for file runs. Empty means file actions
// are refused.
type FilesConfig struct {
	Roots []string `yaml:"roots" mapstructure:"roots"`
}

// Load reads, defaults, and validates the application configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig("streamkit", &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields across every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "streamkit"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// ApplyDefaults fills unset pipeline fields.
func (c *PipelineConfig) ApplyDefaults() {
	if c.DefaultChunkSize == 0 {
		c.DefaultChunkSize = 100
	}
	if c.DefaultParallelism == 0 {
		c.DefaultParallelism = 4
	}
}

// Validate checks pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.DefaultChunkSize < 1 {
		return fmt.Errorf("pipeline.default_chunk_size must be at least 1 (got: %d)", c.DefaultChunkSize)
	}
	if c.DefaultParallelism < 1 {
		return fmt.Errorf("pipeline.default_parallelism must be at least 1 (got: %d)", c.DefaultParallelism)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("pipeline.retry.max_attempts must be non-negative (got: %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("pipeline.retry.jitter must be between 0 and 1 (got: %f)", c.Retry.Jitter)
	}
	return nil
}
