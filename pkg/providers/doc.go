// Package providers defines the backend adapter contract and the shared
// HTTP plumbing adapters build on.
//
// Three adapter families cover all configured backends:
//
//   - openai: backends speaking the OpenAI chat completions wire format
//     (DeepSeek, OpenRouter, xAI, local inference servers)
//   - anthropic: backends speaking the Anthropic messages wire format
//     (Anthropic, MiniMax)
//   - gigachat: Sber GigaChat, OpenAI-shaped completions behind an OAuth
//     token exchange
//
// Adapters normalize backend responses into CompletionResponse and
// StreamChunk values; the gateway owns re-encoding those to the client
// wire format.
package providers
