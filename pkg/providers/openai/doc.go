// Package openai implements the adapter for backends that speak the OpenAI
// chat completions wire format: DeepSeek, OpenRouter, xAI, and local
// inference servers. One adapter serves them all; only base URL, credential,
// and model list vary per provider.
package openai
