package config

import "time"

// Default values applied to any field left unset in the YAML file.
const (
	DefaultListenAddress   = "0.0.0.0:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 180 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultUpstreamTimeout = 120 * time.Second

	DefaultProviderTimeout    = 120 * time.Second
	DefaultProviderMaxRetries = 3

	DefaultBridgeListenAddress  = "0.0.0.0:8765"
	DefaultTunnelURL            = "ws://localhost:8765"
	DefaultTunnelListenAddress  = "0.0.0.0:8000"
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultTunnelRequestTimeout = 30 * time.Second
	DefaultHealthCheckSchedule  = "@every 30s"

	DefaultCharsPerToken = 4.0
)

// ApplyDefaults fills in default values for any unset configuration fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.UpstreamTimeout == 0 {
		cfg.Server.UpstreamTimeout = DefaultUpstreamTimeout
	}

	applyCORSDefaults(&cfg.Server.CORS)

	for name, pc := range cfg.Providers {
		if pc.Type == "" {
			pc.Type = "openai"
		}
		if pc.Timeout == 0 {
			pc.Timeout = DefaultProviderTimeout
		}
		if pc.MaxRetries == 0 {
			pc.MaxRetries = DefaultProviderMaxRetries
		}
		if pc.DefaultModel == "" && len(pc.Models) > 0 {
			pc.DefaultModel = pc.Models[0].ID
		}
		for i := range pc.Models {
			if pc.Models[i].Name == "" {
				pc.Models[i].Name = pc.Models[i].ID
			}
		}
		cfg.Providers[name] = pc
	}

	if cfg.Tunnel.Bridge.ListenAddress == "" {
		cfg.Tunnel.Bridge.ListenAddress = DefaultBridgeListenAddress
	}
	if cfg.Tunnel.Client.URL == "" {
		cfg.Tunnel.Client.URL = DefaultTunnelURL
	}
	if cfg.Tunnel.Client.ListenAddress == "" {
		cfg.Tunnel.Client.ListenAddress = DefaultTunnelListenAddress
	}
	if cfg.Tunnel.Client.ReconnectInterval == 0 {
		cfg.Tunnel.Client.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.Tunnel.Client.MaxReconnectAttempts == 0 {
		cfg.Tunnel.Client.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.Tunnel.Client.RequestTimeout == 0 {
		cfg.Tunnel.Client.RequestTimeout = DefaultTunnelRequestTimeout
	}
	if cfg.Tunnel.Client.HealthCheckSchedule == "" {
		cfg.Tunnel.Client.HealthCheckSchedule = DefaultHealthCheckSchedule
	}

	if cfg.Tokens.CharsPerToken == nil {
		cfg.Tokens.CharsPerToken = map[string]float64{"default": DefaultCharsPerToken}
	}
	if _, ok := cfg.Tokens.CharsPerToken["default"]; !ok {
		cfg.Tokens.CharsPerToken["default"] = DefaultCharsPerToken
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
}

func applyCORSDefaults(c *CORSConfig) {
	if len(c.AllowedOrigins) == 0 {
		c.Enabled = true
		c.AllowedOrigins = []string{"*"}
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"*"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 3600
	}
}

// DefaultConfig returns a configuration equivalent to an empty YAML file
// with defaults applied, plus a local provider so the gateway is usable
// out of the box.
func DefaultConfig() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"local": {
				Type:    "openai",
				Enabled: true,
				BaseURL: "http://localhost:10003/v1",
				Models: []ModelConfig{
					{ID: "gpt-oss-120b", ContextWindow: 128000},
				},
			},
		},
		DefaultProvider: "local",
	}
	ApplyDefaults(cfg)
	return cfg
}
