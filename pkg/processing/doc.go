// Package processing holds the usage accounting helpers the gateway
// applies to every completion.
//
//   - tokens: character-ratio token estimation used when a backend
//     reports no usage numbers
//   - costs: per-model cost calculation from configured pricing
package processing
