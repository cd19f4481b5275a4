package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - OpenAI-compatible LLM gateway",
	Long: `Relay is an OpenAI-compatible gateway in front of heterogeneous LLM
backends (OpenAI-shape, Anthropic-shape, and OAuth-gated services).

It exposes a single /v1/chat/completions endpoint, switches the active
backend at runtime, tracks token usage and cost, and can carry traffic
over a WebSocket tunnel for hosts without direct network access.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration file, falling back to built-in
// defaults when the file does not exist and the path was not overridden.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
			slog.Info("no config file found, using defaults", "path", cfgFile)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the process-wide slog handler from config, with
// --verbose forcing debug level.
func setupLogging(cfg config.LoggingConfig) {
	logging.Setup(cfg, verbose)
}
