package narration

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-guide/pkg/speech"
)

// Defaults for a narration channel.
const (
	DefaultCapacity         = 16
	DefaultSynthesisTimeout = 60 * time.Second
	DefaultGap              = 300 * time.Millisecond
)

// Config holds channel settings.
type Config struct {
	Capacity         int
	SynthesisTimeout time.Duration
	Gap              time.Duration
	Voice            speech.Voice
	Logger           *slog.Logger
}

// Option configures a Channel.
type Option func(*Config)

// DefaultConfig returns the canonical channel settings.
func DefaultConfig() Config {
	return Config{
		Capacity:         DefaultCapacity,
		SynthesisTimeout: DefaultSynthesisTimeout,
		Gap:              DefaultGap,
		Voice:            speech.DefaultVoice(),
		Logger:           slog.Default(),
	}
}

// WithCapacity bounds the queue.
func WithCapacity(n int) Option {
	return func(c *Config) { c.Capacity = n }
}

// WithSynthesisTimeout bounds a single utterance.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.SynthesisTimeout = d
		}
	}
}

// WithGap sets the pause between utterances. Zero disables it.
func WithGap(d time.Duration) Option {
	return func(c *Config) { c.Gap = d }
}

// WithVoice sets the voice passed to the synthesizer.
func WithVoice(v speech.Voice) Option {
	return func(c *Config) { c.Voice = v }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
