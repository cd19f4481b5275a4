// Package config provides YAML-based configuration for the relay gateway.
//
// Configuration is loaded once at process start and treated as a read-only
// snapshot. The provider enable/disable set may be re-read on an explicit
// reload (see Watcher); mid-flight requests always observe a consistent
// snapshot.
//
// The loading sequence is:
//
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply RELAY_* environment variable overrides
//  4. Validate the final configuration
package config
