// Package providerfactory constructs provider adapters from configuration.
package providerfactory

import (
	"fmt"
	"log/slog"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/providers/anthropic"
	"proxyllm-hq/relay/pkg/providers/gigachat"
	"proxyllm-hq/relay/pkg/providers/openai"
)

// NewProvider creates a provider instance for one configured backend.
//
// Supported adapter families:
//   - "openai": OpenAI-compatible APIs (DeepSeek, OpenRouter, xAI, local
//     inference servers)
//   - "anthropic": Anthropic messages API (Anthropic, MiniMax)
//   - "gigachat": Sber GigaChat with its OAuth token exchange
func NewProvider(cfg providers.ProviderConfig) (providers.Provider, error) {
	if cfg.Type == "" {
		cfg.Type = "openai"
	}

	slog.Debug("creating provider",
		"name", cfg.Name,
		"type", cfg.Type,
		"base_url", cfg.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch cfg.Type {
	case "openai":
		provider, err = openai.NewProvider(cfg)
	case "anthropic":
		provider, err = anthropic.NewProvider(cfg)
	case "gigachat":
		provider, err = gigachat.NewProvider(cfg)
	default:
		return nil, &providers.ConfigError{
			Provider: cfg.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type %q (supported: openai, anthropic, gigachat)", cfg.Type),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", cfg.Name, err)
	}

	return provider, nil
}

// Build constructs adapters for every enabled provider in the
// configuration. Providers that fail to construct are skipped with a
// warning rather than failing startup, so a single misconfigured backend
// does not take down the rest.
func Build(cfg *config.Config) map[string]providers.Provider {
	built := make(map[string]providers.Provider, len(cfg.Providers))

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		provider, err := NewProvider(adapterConfig(name, pc))
		if err != nil {
			slog.Warn("skipping provider", "name", name, "error", err)
			continue
		}

		built[name] = provider
		slog.Info("provider ready", "name", name, "type", provider.Type())
	}

	return built
}

// adapterConfig converts a configuration entry into the adapter config.
func adapterConfig(name string, pc config.ProviderConfig) providers.ProviderConfig {
	models := make([]string, len(pc.Models))
	for i, m := range pc.Models {
		models[i] = m.ID
	}

	return providers.ProviderConfig{
		Name:                  name,
		Type:                  pc.Type,
		BaseURL:               pc.BaseURL,
		APIKey:                pc.APIKey,
		AuthURL:               pc.AuthURL,
		DefaultModel:          pc.DefaultModel,
		Models:                models,
		Timeout:               pc.Timeout,
		MaxRetries:            pc.MaxRetries,
		DisableStreamingUsage: pc.DisableStreamingUsage,
	}
}
