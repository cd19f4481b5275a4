package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies defaults, then environment overrides, then validates.
//
// Environment variables follow the naming convention RELAY_SECTION_FIELD
// (e.g., RELAY_SERVER_LISTEN_ADDRESS) and always take precedence over the
// file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("RELAY_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("RELAY_SERVER_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.UpstreamTimeout = d
		}
	}
	if val := os.Getenv("RELAY_DEFAULT_PROVIDER"); val != "" {
		cfg.DefaultProvider = val
	}
	if val := os.Getenv("RELAY_TUNNEL_BRIDGE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Tunnel.Bridge.Enabled = b
		}
	}
	if val := os.Getenv("RELAY_TUNNEL_BRIDGE_LISTEN_ADDRESS"); val != "" {
		cfg.Tunnel.Bridge.ListenAddress = val
	}
	if val := os.Getenv("RELAY_TUNNEL_CLIENT_URL"); val != "" {
		cfg.Tunnel.Client.URL = val
	}
	if val := os.Getenv("RELAY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}

	// Per-provider API keys: RELAY_PROVIDER_<NAME>_API_KEY.
	for name, pc := range cfg.Providers {
		if val := os.Getenv("RELAY_PROVIDER_" + envKey(name) + "_API_KEY"); val != "" {
			pc.APIKey = val
			cfg.Providers[name] = pc
		}
	}
}

func envKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		case c == '-' || c == '.':
			out[i] = '_'
		default:
			out[i] = c
		}
	}
	return string(out)
}

// Validate checks the configuration for inconsistencies that would make
// the gateway misbehave at runtime.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if cfg.Server.UpstreamTimeout <= 0 {
		return fmt.Errorf("server.upstream_timeout must be positive")
	}
	if cfg.Server.WriteTimeout > 0 && cfg.Server.WriteTimeout < cfg.Server.UpstreamTimeout {
		return fmt.Errorf("server.write_timeout (%s) must not be shorter than server.upstream_timeout (%s)",
			cfg.Server.WriteTimeout, cfg.Server.UpstreamTimeout)
	}

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch pc.Type {
		case "openai", "anthropic", "gigachat":
		default:
			return fmt.Errorf("provider %q has unknown type %q", name, pc.Type)
		}
		for _, m := range pc.Models {
			if m.ID == "" {
				return fmt.Errorf("provider %q has a model with an empty id", name)
			}
			if m.Pricing.InputCacheHit < 0 || m.Pricing.InputCacheMiss < 0 || m.Pricing.Output < 0 {
				return fmt.Errorf("provider %q model %q has a negative price", name, m.ID)
			}
		}
	}

	if cfg.DefaultProvider != "" {
		if pc, ok := cfg.Providers[cfg.DefaultProvider]; !ok || !pc.Enabled {
			// Startup falls back to "local" or any enabled provider; a
			// misspelled default is still worth rejecting early.
			if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
				return fmt.Errorf("default_provider %q is not a configured provider", cfg.DefaultProvider)
			}
		}
	}

	if cfg.Tunnel.Client.MaxReconnectAttempts < 1 {
		return fmt.Errorf("tunnel.client.max_reconnect_attempts must be at least 1")
	}
	if cfg.Tunnel.Client.ReconnectInterval <= 0 {
		return fmt.Errorf("tunnel.client.reconnect_interval must be positive")
	}

	return nil
}
