package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/processing/costs"
	"proxyllm-hq/relay/pkg/processing/tokens"
	"proxyllm-hq/relay/pkg/providerfactory"
	"proxyllm-hq/relay/pkg/server"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
	"proxyllm-hq/relay/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	provider      string
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address, accepts OpenAI-compatible
chat completion requests, and routes them to the active backend.

Examples:
  # Start with default config
  relay run

  # Start with custom config
  relay run --config /etc/relay/config.yaml

  # Override listen address and startup provider
  relay run --listen 0.0.0.0:8080 --provider deepseek

  # Reload the provider set when the config file changes
  relay run --watch

  # Validate config without starting the server
  relay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&runFlags.provider, "provider", "p", "", "override startup provider")
	runCmd.Flags().BoolVarP(&runFlags.watch, "watch", "w", false, "reload the provider set on config file change")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.provider != "" {
		cfg.DefaultProvider = runFlags.provider
	}

	setupLogging(cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	slog.Info("initializing providers", "configured", len(cfg.Providers))
	built := providerfactory.Build(cfg)
	if len(built) == 0 {
		return fmt.Errorf("no providers could be initialized")
	}

	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New()
	}

	g, err := gateway.New(gateway.Options{
		Providers:       built,
		DefaultProvider: cfg.DefaultProvider,
		Estimator:       tokens.NewSimpleEstimator(&cfg.Tokens),
		Calculator:      costs.NewCalculator(cfg),
		Ledger:          usage.NewLedger(),
		Metrics:         m,
		UpstreamTimeout: cfg.Server.UpstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if runFlags.watch {
		go watchConfig(ctx, cfgFile, g)
	}

	srv := server.New(cfg, g, m, Version)
	return srv.Start(ctx)
}

// watchConfig rebuilds the provider set whenever the config file changes.
// Mid-flight requests keep the adapter snapshot they pinned at dispatch.
func watchConfig(ctx context.Context, path string, g *gateway.Gateway) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		slog.Error("config watcher failed to start", "error", err)
		return
	}

	err = watcher.Watch(ctx, func(cfg *config.Config) {
		built := providerfactory.Build(cfg)
		if len(built) == 0 {
			slog.Warn("config reload produced no providers, keeping current set")
			return
		}
		g.SetProviders(built)
		slog.Info("provider set reloaded", "providers", len(built))
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("config watcher stopped", "error", err)
	}
}
