// Package costs estimates dollar cost per request from per-million-token
// pricing, with distinct input rates for prompt-cache hits and misses.
package costs
