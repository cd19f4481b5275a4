package costs

import (
	"log/slog"

	"proxyllm-hq/relay/pkg/config"
)

// Calculator estimates request cost in dollars from token counts and the
// per-million-token rates in the pricing table.
//
// The input rate depends on whether the backend served the prompt from
// its prompt cache. Providers or models without a pricing entry cost
// 0.0 rather than failing the request: accounting is advisory, serving
// traffic is not.
type Calculator struct {
	pricing map[string]map[string]config.PricingConfig
}

// NewCalculator builds a calculator from the configured provider set.
func NewCalculator(cfg *config.Config) *Calculator {
	pricing := make(map[string]map[string]config.PricingConfig, len(cfg.Providers))

	for providerName, pc := range cfg.Providers {
		models := make(map[string]config.PricingConfig, len(pc.Models))
		for _, m := range pc.Models {
			models[m.ID] = m.Pricing
		}
		pricing[providerName] = models
	}

	return &Calculator{pricing: pricing}
}

// EstimateCost returns the dollar cost of a request.
//
//	cost = prompt * input_rate / 1e6 + completion * output_rate / 1e6
//
// where input_rate is the cache-hit or cache-miss rate.
func (c *Calculator) EstimateCost(provider, model string, promptTokens, completionTokens int, cacheHit bool) float64 {
	if !c.HasPricing(provider, model) {
		slog.Debug("no pricing entry, cost is zero",
			"provider", provider,
			"model", model,
		)
		return 0.0
	}

	rates := c.pricing[provider][model]
	inputRate := rates.InputCacheMiss
	if cacheHit {
		inputRate = rates.InputCacheHit
	}

	return float64(promptTokens)*inputRate/1e6 + float64(completionTokens)*rates.Output/1e6
}

// HasPricing reports whether a pricing entry exists for the model.
func (c *Calculator) HasPricing(provider, model string) bool {
	models, ok := c.pricing[provider]
	if !ok {
		return false
	}
	_, ok = models[model]
	return ok
}
