package speech

import (
	"log/slog"
	"time"
)

// Config holds backend configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Credentials for cloud backends
	APIKey  string
	BaseURL string
	Model   string

	// Voice used when the caller passes a zero Voice
	Voice Voice

	// Request timeout for cloud synthesis
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Player plays synthesized audio for cloud backends
	Player Player

	Logger *slog.Logger
}

// Option configures a backend.
type Option func(*Config)

// WithAPIKey sets the API key for cloud backends.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the synthesis model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithVoice sets the default voice.
func WithVoice(v Voice) Option {
	return func(c *Config) { c.Voice = v }
}

// WithTimeout sets the synthesis request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retries for retryable API errors.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithPlayer sets the audio player used by cloud backends.
func WithPlayer(p Player) Option {
	return func(c *Config) { c.Player = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns defaults shared by all backends.
func DefaultConfig() *Config {
	return &Config{
		Voice:      DefaultVoice(),
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// voiceOr fills zero fields of v from the configured default.
func (c *Config) voiceOr(v Voice) Voice {
	if v.Name == "" {
		v.Name = c.Voice.Name
	}
	if v.Rate == 0 {
		v.Rate = c.Voice.Rate
	}
	return v
}
