package tokens

import "proxyllm-hq/relay/pkg/providers"

// Estimator estimates token counts for text and messages. The gateway uses
// it wherever a backend does not report usage: prompt accounting for
// streamed requests and completion accounting recomputed per delta.
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string, model string) int

	// EstimateMessages estimates prompt tokens for a conversation.
	EstimateMessages(messages []providers.Message, model string) int
}
