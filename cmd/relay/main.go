// Relay is an OpenAI-compatible gateway in front of heterogeneous LLM
// backends.
//
// It exposes one /v1/chat/completions surface and translates each request
// to the wire protocol of the active backend:
//   - OpenAI-shape backends (DeepSeek, local servers, OpenRouter, xAI)
//   - Anthropic-shape backends (Anthropic, MiniMax)
//   - OAuth-gated OpenAI-shape backends (GigaChat)
//
// Usage:
//
//	# Start the gateway with default configuration
//	relay run
//
//	# Start with a custom configuration file
//	relay run --config /path/to/config.yaml
//
//	# Start the tunnel client on a network-restricted host
//	relay tunnel --url ws://gateway-host:8765
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
