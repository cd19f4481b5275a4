package tokens

import (
	"strings"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/providers"
)

// SimpleEstimator implements character-based token estimation using
// model-specific characters-per-token ratios. Fast and within a few
// percent of real tokenizer output for ordinary text, which is all the
// usage ledger needs.
type SimpleEstimator struct {
	ratios map[string]float64
}

// NewSimpleEstimator creates an estimator from the tokens configuration.
func NewSimpleEstimator(cfg *config.TokensConfig) *SimpleEstimator {
	ratios := map[string]float64{"default": config.DefaultCharsPerToken}
	if cfg != nil {
		for k, v := range cfg.CharsPerToken {
			if v > 0 {
				ratios[k] = v
			}
		}
	}
	return &SimpleEstimator{ratios: ratios}
}

// EstimateText estimates tokens for a single text string. Non-empty text
// never estimates below one token.
func (e *SimpleEstimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}

	tokens := float64(len(text)) / e.charsPerToken(model)
	if tokens < 1.0 {
		return 1
	}
	return int(tokens + 0.5)
}

// EstimateMessages estimates prompt tokens for a conversation as the sum
// of per-message content estimates.
func (e *SimpleEstimator) EstimateMessages(messages []providers.Message, model string) int {
	total := 0
	for _, msg := range messages {
		total += e.EstimateText(msg.Content, model)
	}
	return total
}

// charsPerToken returns the ratio for a model: exact match first, then
// prefix match so "deepseek-chat-v2" picks up a "deepseek" entry, then
// the default.
func (e *SimpleEstimator) charsPerToken(model string) float64 {
	if ratio, ok := e.ratios[model]; ok {
		return ratio
	}

	for pattern, ratio := range e.ratios {
		if pattern != "default" && strings.HasPrefix(model, pattern) {
			return ratio
		}
	}

	return e.ratios["default"]
}
