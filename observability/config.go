package observability

import (
	"context"
	"fmt"
	"time"
)

// Config is the observability section of the application configuration.
// Exporters stay disabled unless Enabled is set; the rest of the code then
// sees only no-op providers.
type Config struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint        string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure        bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate      float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	IntervalSeconds int     `yaml:"interval_seconds" mapstructure:"interval_seconds"`
}

// ApplyDefaults applies default values to observability configuration.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
		c.Insecure = true
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 15
	}
}

// Validate validates observability configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1 (got: %f)", c.SampleRate)
	}
	if c.IntervalSeconds < 0 {
		return fmt.Errorf("observability.interval_seconds must be non-negative (got: %d)", c.IntervalSeconds)
	}
	return nil
}

// ShutdownFunc flushes and stops the providers Init started.
type ShutdownFunc func(ctx context.Context) error

// Init initializes tracer and meter providers from config. When the section
// is disabled it returns a no-op shutdown and leaves the global providers
// untouched.
func Init(ctx context.Context, cfg Config, serviceName, serviceVersion, environment string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	mp, err := InitMeter(ctx, MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Interval:       time.Duration(cfg.IntervalSeconds) * time.Second,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		merr := mp.Shutdown(ctx)
		terr := tp.Shutdown(ctx)
		if merr != nil {
			return merr
		}
		return terr
	}, nil
}
