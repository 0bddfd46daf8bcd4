package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillsenselab/streamkit/config"
	"github.com/skillsenselab/streamkit/logger"
	"github.com/skillsenselab/streamkit/observability"
	"github.com/skillsenselab/streamkit/security"
	"github.com/skillsenselab/streamkit/server"
	"github.com/skillsenselab/streamkit/util"
	"github.com/skillsenselab/streamkit/version"
)

const serveLongDesc = `Run the streamkit HTTP server.

The server exposes the run endpoints:
  POST /v1/runs          Execute a run and return all chunks at once
  POST /v1/runs/stream   Execute a run and stream chunks as SSE events

File actions are refused unless file roots are configured, either in the
files.roots config section or with --root.`

type serveCommander struct {
	roots []string
}

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the streamkit HTTP server",
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringArrayVar(&cmder.roots, "root", nil, "Directory allowed for file runs (repeatable, overrides config)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)

	info := version.GetVersionInfo()
	shutdown, err := observability.Init(ctx, cfg.Observability, cfg.Name, info.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	runnerCfg := server.RunnerConfig{
		MaxConcurrentRuns:  cfg.Server.MaxConcurrentRuns,
		DefaultChunkSize:   cfg.Pipeline.DefaultChunkSize,
		DefaultParallelism: cfg.Pipeline.DefaultParallelism,
		Retry:              cfg.Pipeline.Retry.ToRetry(),
	}

	rootDirs := cfg.Files.Roots
	if len(c.roots) > 0 {
		rootDirs = c.roots
	}
	if len(rootDirs) > 0 {
		roots, err := security.NewRoots(rootDirs...)
		if err != nil {
			return fmt.Errorf("resolving file roots: %w", err)
		}
		runnerCfg.Roots = roots
	}

	metrics, err := observability.NewRunMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("creating run metrics: %w", err)
	}
	runnerCfg.Metrics = metrics

	log.Info("Configuration loaded", map[string]interface{}{
		"environment":   cfg.Environment,
		"version":       info.Version,
		"file_roots":    len(rootDirs),
		"auth_enabled":  cfg.Server.JWTSecret != "",
		"rate_limit":    cfg.Server.RateLimitPerMinute,
		"observability": cfg.Observability.Enabled,
	})
	if cfg.Server.JWTSecret != "" {
		log.Debug("Auth enabled", map[string]interface{}{
			"jwt_secret": util.MaskSecret(cfg.Server.JWTSecret, 4),
		})
	}

	srv := server.New(cfg.Server, log)
	srv.Setup(cfg.Name, server.NewRunner(runnerCfg, log))

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return srv.Stop(context.Background())
}
