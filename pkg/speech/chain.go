package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Chain implements Synthesizer by trying backends in order.
// The first backend that speaks without error wins.
type Chain struct {
	backends []Synthesizer
	logger   *slog.Logger
}

// NewChain creates a chain. At least one backend is required.
func NewChain(logger *slog.Logger, backends ...Synthesizer) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackend
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{backends: backends, logger: logger.With("component", "speech.chain")}, nil
}

// Speak tries each backend until one succeeds.
// Cancellation is returned immediately rather than falling through.
func (c *Chain) Speak(ctx context.Context, text string, voice Voice) error {
	var errs []error

	for i, b := range c.backends {
		err := b.Speak(ctx, text, voice)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback backend succeeded", "backend", b.Name(), "chars", len(text))
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		errs = append(errs, err)
		c.logger.Warn("backend failed, trying next", "backend", b.Name(), "error", err)
	}

	return &ChainError{Errors: errs}
}

// Name lists the chained backends.
func (c *Chain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// ChainError aggregates failures from every backend in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("speech chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("speech chain: all %d backends failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

var _ Synthesizer = (*Chain)(nil)
