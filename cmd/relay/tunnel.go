package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"proxyllm-hq/relay/pkg/tunnel"
)

var tunnelFlags struct {
	url           string
	listenAddress string
}

var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Start the tunnel client",
	Long: `Start the tunnel client on a network-restricted host.

The client keeps a persistent WebSocket connection to the gateway's
bridge listener and exposes a local OpenAI-compatible HTTP endpoint.
Requests accepted while the socket is down are queued and flushed in
order after reconnection.

Examples:
  # Connect to a bridge and serve HTTP locally
  relay tunnel --url ws://gateway-host:8765 --listen 127.0.0.1:8000`,
	RunE: runTunnel,
}

func init() {
	rootCmd.AddCommand(tunnelCmd)

	tunnelCmd.Flags().StringVar(&tunnelFlags.url, "url", "", "bridge WebSocket URL")
	tunnelCmd.Flags().StringVarP(&tunnelFlags.listenAddress, "listen", "l", "", "local HTTP facade address")
}

func runTunnel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if tunnelFlags.url != "" {
		cfg.Tunnel.Client.URL = tunnelFlags.url
	}
	if tunnelFlags.listenAddress != "" {
		cfg.Tunnel.Client.ListenAddress = tunnelFlags.listenAddress
	}

	setupLogging(cfg.Telemetry.Logging)

	client := tunnel.NewClient(cfg.Tunnel.Client, nil)
	facade := tunnel.NewFacade(client)

	httpServer := &http.Server{
		Addr:    cfg.Tunnel.Client.ListenAddress,
		Handler: facade.Handler(),
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errChan := make(chan error, 2)

	go func() {
		slog.Info("starting tunnel facade",
			"address", cfg.Tunnel.Client.ListenAddress,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("facade error: %w", err)
		}
	}()

	go func() {
		slog.Info("connecting to bridge", "url", cfg.Tunnel.Client.URL)
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("tunnel error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		httpServer.Close()
		return err
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	return httpServer.Shutdown(context.Background())
}
