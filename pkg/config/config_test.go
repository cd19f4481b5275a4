package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
server:
  listen_address: "127.0.0.1:9000"

default_provider: deepseek

providers:
  deepseek:
    type: openai
    enabled: true
    base_url: https://api.deepseek.com/v1
    api_key: sk-test
    models:
      - id: deepseek-chat
        pricing:
          input_cache_hit: 0.07
          input_cache_miss: 0.56
          output: 1.68
  claude:
    type: anthropic
    enabled: true
    base_url: https://api.anthropic.com
    api_key: sk-ant
    models:
      - id: claude-sonnet-4-20250514
`

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen_address = %q", cfg.Server.ListenAddress)
	}
	if cfg.DefaultProvider != "deepseek" {
		t.Errorf("default_provider = %q", cfg.DefaultProvider)
	}

	// Defaults fill what the file left out.
	if cfg.Server.UpstreamTimeout != DefaultUpstreamTimeout {
		t.Errorf("upstream_timeout = %s, want default", cfg.Server.UpstreamTimeout)
	}
	if cfg.Tunnel.Client.HealthCheckSchedule != DefaultHealthCheckSchedule {
		t.Errorf("health_check_schedule = %q, want default", cfg.Tunnel.Client.HealthCheckSchedule)
	}

	ds := cfg.Providers["deepseek"]
	if ds.DefaultModel != "deepseek-chat" {
		t.Errorf("default_model = %q, want first model", ds.DefaultModel)
	}
	if ds.Models[0].Pricing.Output != 1.68 {
		t.Errorf("pricing.output = %v", ds.Models[0].Pricing.Output)
	}
	if ds.Timeout != DefaultProviderTimeout {
		t.Errorf("provider timeout = %s, want default", ds.Timeout)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_SERVER_LISTEN_ADDRESS", "0.0.0.0:7777")
	t.Setenv("RELAY_DEFAULT_PROVIDER", "claude")
	t.Setenv("RELAY_PROVIDER_DEEPSEEK_API_KEY", "sk-from-env")
	t.Setenv("RELAY_SERVER_UPSTREAM_TIMEOUT", "90s")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("listen_address = %q, env override lost", cfg.Server.ListenAddress)
	}
	if cfg.DefaultProvider != "claude" {
		t.Errorf("default_provider = %q, env override lost", cfg.DefaultProvider)
	}
	if cfg.Providers["deepseek"].APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, env override lost", cfg.Providers["deepseek"].APIKey)
	}
	if cfg.Server.UpstreamTimeout != 90*time.Second {
		t.Errorf("upstream_timeout = %s", cfg.Server.UpstreamTimeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{
			"unknown provider type",
			func(cfg *Config) {
				pc := cfg.Providers["deepseek"]
				pc.Type = "grpc"
				cfg.Providers["deepseek"] = pc
			},
		},
		{
			"unknown default provider",
			func(cfg *Config) { cfg.DefaultProvider = "missing" },
		},
		{
			"negative price",
			func(cfg *Config) {
				pc := cfg.Providers["deepseek"]
				pc.Models[0].Pricing.Output = -1
				cfg.Providers["deepseek"] = pc
			},
		},
		{
			"write timeout shorter than upstream deadline",
			func(cfg *Config) { cfg.Server.WriteTimeout = time.Second },
		},
		{
			"model without id",
			func(cfg *Config) {
				pc := cfg.Providers["deepseek"]
				pc.Models = append(pc.Models, ModelConfig{})
				cfg.Providers["deepseek"] = pc
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, sampleConfig))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if _, ok := cfg.Providers["local"]; !ok {
		t.Error("default config has no local provider")
	}
}
