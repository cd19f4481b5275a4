// Package tokens provides character-ratio token estimation for backends
// that do not report usage.
package tokens
