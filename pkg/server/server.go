// Package server wires the gateway's HTTP surface: routes, middleware
// chain, the optional tunnel bridge listener, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/proxy/handlers"
	"proxyllm-hq/relay/pkg/proxy/middleware"
	"proxyllm-hq/relay/pkg/telemetry/health"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
	"proxyllm-hq/relay/pkg/tunnel"
)

// Server is the gateway HTTP server.
type Server struct {
	config  *config.Config
	gateway *gateway.Gateway
	metrics *metrics.Metrics
	version string

	httpServer   *http.Server
	bridgeServer *http.Server

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates the gateway server. metrics may be nil when the metrics
// endpoint is disabled.
func New(cfg *config.Config, g *gateway.Gateway, m *metrics.Metrics, version string) *Server {
	return &Server{
		config:       cfg,
		gateway:      g,
		metrics:      m,
		version:      version,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP listener (and the tunnel bridge listener when
// enabled) and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 2)

	go func() {
		slog.Info("starting gateway server",
			"address", s.config.Server.ListenAddress,
			"default_provider", s.gateway.ActiveProvider(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if s.config.Tunnel.Bridge.Enabled {
		bridge := tunnel.NewBridge(s.gateway, s.metrics)
		s.bridgeServer = &http.Server{
			Addr:    s.config.Tunnel.Bridge.ListenAddress,
			Handler: bridge,
		}
		go func() {
			slog.Info("starting tunnel bridge",
				"address", s.config.Tunnel.Bridge.ListenAddress,
			)
			if err := s.bridgeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("tunnel bridge error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops both listeners and closes the provider
// adapters. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown",
			"timeout", s.config.Server.ShutdownTimeout.String(),
		)

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if s.bridgeServer != nil {
			if err := s.bridgeServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during bridge shutdown", "error", err)
			}
		}

		if err := s.gateway.Close(); err != nil {
			slog.Error("error closing providers", "error", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// Handler returns the full route table behind the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(s.gateway)
	adminHandler := handlers.NewAdminHandler(s.gateway)
	healthHandler := handlers.NewHealthHandler(s.gateway, s.version)

	checker := health.NewChecker()
	checker.Register("providers", func(ctx context.Context) error {
		if s.gateway.ActiveProvider() == "" {
			return errors.New("no active provider")
		}
		return nil
	})

	mux.Handle("/v1/chat/completions", chatHandler)
	mux.HandleFunc("/health", healthHandler.Health)
	mux.HandleFunc("/test", healthHandler.Test)
	mux.HandleFunc("/health/live", checker.LivenessHandler())
	mux.HandleFunc("/health/ready", checker.ReadinessHandler())
	mux.HandleFunc("/providers", adminHandler.Providers)
	mux.HandleFunc("/switch-provider/", adminHandler.SwitchProvider)
	mux.HandleFunc("/stats", adminHandler.Stats)
	mux.HandleFunc("/logs/requests", adminHandler.RequestLogs)
	mux.HandleFunc("/logs/responses", adminHandler.ResponseLogs)
	mux.HandleFunc("/logs/all", adminHandler.AllLogs)
	mux.HandleFunc("/", healthHandler.Root)

	if s.metrics != nil && s.config.Telemetry.Metrics.Enabled {
		path := s.config.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(s.config.Server.CORS)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning reports whether Start has been called and not yet shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	close(s.shutdownChan)
}
