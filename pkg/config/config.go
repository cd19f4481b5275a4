package config

import "time"

// Config is the root configuration structure for the relay gateway.
// It is supplied by the external configuration collaborator at process
// start and treated as a read-only snapshot by the gateway.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS settings.
	Server ServerConfig `yaml:"server"`

	// Providers contains configuration for all upstream LLM backends.
	// Keys are provider names (e.g., "deepseek", "local", "gigachat").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// DefaultProvider is the name of the provider selected at startup.
	// If it is not among the enabled providers, the gateway falls back
	// to "local" when configured, otherwise to any enabled provider.
	DefaultProvider string `yaml:"default_provider"`

	// Tunnel contains configuration for both halves of the WebSocket
	// tunnel bridge.
	Tunnel TunnelConfig `yaml:"tunnel"`

	// Tokens contains token estimation configuration.
	Tokens TokensConfig `yaml:"tokens"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the gateway HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "0.0.0.0:8000").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Must exceed UpstreamTimeout or streaming responses are cut
	// off mid-flight.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// UpstreamTimeout is the fixed per-request deadline for upstream
	// provider calls. A breach yields a 504, never a silent hang.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	// The gateway is called from arbitrary local tooling, so the default
	// permits all origins, methods, and headers.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. ["*"] allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed HTTP headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `yaml:"max_age"`
}

// ProviderConfig contains configuration for a single upstream backend.
type ProviderConfig struct {
	// Type selects the adapter family: "openai", "anthropic", "gigachat".
	// Empty Type defaults to "openai" (several backends share that
	// adapter with only base-url/model/credential substitution).
	Type string `yaml:"type"`

	// Enabled controls whether an adapter is constructed for this
	// provider at startup.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the API endpoint base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is the credential. For the gigachat type this is
	// "client_id:client_secret" and feeds the OAuth token exchange.
	APIKey string `yaml:"api_key"`

	// AuthURL is the OAuth token endpoint for the gigachat type.
	// Ignored by the other adapter families.
	AuthURL string `yaml:"auth_url"`

	// Models lists the models served by this provider. The first entry
	// is the default when DefaultModel is unset.
	Models []ModelConfig `yaml:"models"`

	// DefaultModel is the model used when the inbound request does not
	// name one the provider knows.
	DefaultModel string `yaml:"default_model"`

	// Timeout is the transport-level request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for transient
	// transport failures.
	MaxRetries int `yaml:"max_retries"`

	// DisableStreamingUsage marks backends whose mid-stream usage figures
	// are unreliable. The gateway then recomputes usage from accumulated
	// text and omits the backend numbers from streamed replies.
	// OpenRouter needs this.
	DisableStreamingUsage bool `yaml:"disable_streaming_usage"`
}

// ModelConfig describes one model and its pricing.
type ModelConfig struct {
	// ID is the model identifier sent on the wire.
	ID string `yaml:"id"`

	// Name is the human-readable model name. Falls back to ID.
	Name string `yaml:"name"`

	// ContextWindow is the model's context size in tokens.
	ContextWindow int `yaml:"context_window"`

	// Pricing holds per-million-token rates.
	Pricing PricingConfig `yaml:"pricing"`
}

// PricingConfig holds per-million-token rates. The cost estimator divides
// by 1,000,000 before multiplying by token counts.
type PricingConfig struct {
	// InputCacheHit is the input rate when the upstream served the
	// prompt from its prompt cache.
	InputCacheHit float64 `yaml:"input_cache_hit"`

	// InputCacheMiss is the input rate on a cache miss.
	InputCacheMiss float64 `yaml:"input_cache_miss"`

	// Output is the completion-token rate.
	Output float64 `yaml:"output"`
}

// TunnelConfig contains configuration for the tunnel bridge halves.
type TunnelConfig struct {
	// Bridge configures the server half (runs near the gateway).
	Bridge BridgeConfig `yaml:"bridge"`

	// Client configures the dialer half (runs on the restricted host).
	Client TunnelClientConfig `yaml:"client"`
}

// BridgeConfig configures the tunnel server half.
type BridgeConfig struct {
	// Enabled starts the bridge listener alongside the gateway.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the WebSocket listen address (e.g., "0.0.0.0:8765").
	ListenAddress string `yaml:"listen_address"`
}

// TunnelClientConfig configures the tunnel dialer half.
type TunnelClientConfig struct {
	// URL is the bridge WebSocket URL (e.g., "ws://host:8765").
	URL string `yaml:"url"`

	// ListenAddress is the local HTTP facade address.
	ListenAddress string `yaml:"listen_address"`

	// ReconnectInterval is the fixed delay between reconnect attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// MaxReconnectAttempts bounds consecutive failed reconnects.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// RequestTimeout is the deadline for one tunneled request/response
	// round trip.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// HealthCheckSchedule is a cron spec for the background bridge
	// health probe (e.g., "@every 30s").
	HealthCheckSchedule string `yaml:"health_check_schedule"`
}

// TokensConfig contains token estimation configuration.
type TokensConfig struct {
	// CharsPerToken maps a provider or model name to its
	// characters-per-token ratio. The "default" key is the fallback.
	CharsPerToken map[string]float64 `yaml:"chars_per_token"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled controls whether /metrics is registered.
	Enabled bool `yaml:"enabled"`

	// Path is the scrape path.
	Path string `yaml:"path"`
}
