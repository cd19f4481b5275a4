// Package anthropic implements the adapter for backends speaking the
// Anthropic messages wire format, used by Anthropic and MiniMax.
//
// The format differs from OpenAI's in three ways the adapter absorbs:
// system prompts are a top-level field rather than a message, responses
// carry typed content blocks (text and thinking), and usage is reported
// as input_tokens/output_tokens.
package anthropic
