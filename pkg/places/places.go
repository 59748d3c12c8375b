// Package places turns coordinates into speakable place names and free-text
// queries into coordinates.
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-guide/pkg/direction"
)

var (
	// ErrNotFound is returned when a lookup has no usable result.
	ErrNotFound = errors.New("places: not found")

	// ErrNoResolver is returned by NewChain without resolvers.
	ErrNoResolver = errors.New("places: no resolver")
)

// Resolver names a point.
type Resolver interface {
	PlaceName(ctx context.Context, p direction.Point) (string, error)
}

// Geocoder finds the position of a free-text place query.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Place, error)
}

// Place is a geocoded location.
type Place struct {
	Name     string          `json:"name"`
	Position direction.Point `json:"position"`
}

// Chain tries resolvers in order and returns the first name found.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain creates a resolver chain.
func NewChain(logger *slog.Logger, resolvers ...Resolver) (*Chain, error) {
	if len(resolvers) == 0 {
		return nil, ErrNoResolver
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{resolvers: resolvers, logger: logger.With("component", "places.chain")}, nil
}

// PlaceName implements Resolver.
func (c *Chain) PlaceName(ctx context.Context, p direction.Point) (string, error) {
	var errs []error
	for i, r := range c.resolvers {
		name, err := r.PlaceName(ctx, p)
		if err == nil && name != "" {
			return name, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil {
			err = ErrNotFound
		}
		c.logger.Debug("resolver failed, trying next", "index", i, "error", err)
		errs = append(errs, err)
	}
	return "", fmt.Errorf("places: all %d resolvers failed: %w", len(c.resolvers), errors.Join(errs...))
}

// Geocode implements Geocoder using every chained resolver that also geocodes.
func (c *Chain) Geocode(ctx context.Context, query string) (Place, error) {
	var errs []error
	for _, r := range c.resolvers {
		g, ok := r.(Geocoder)
		if !ok {
			continue
		}
		place, err := g.Geocode(ctx, query)
		if err == nil {
			return place, nil
		}
		if ctx.Err() != nil {
			return Place{}, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Place{}, fmt.Errorf("%w: no geocoder configured", ErrNotFound)
	}
	return Place{}, fmt.Errorf("places: geocode %q: %w", query, errors.Join(errs...))
}

// Fallback never fails: when the wrapped resolver errors it returns the
// coordinate description of the point.
type Fallback struct {
	Resolver Resolver
}

// PlaceName implements Resolver.
func (f Fallback) PlaceName(ctx context.Context, p direction.Point) (string, error) {
	if f.Resolver != nil {
		if name, err := f.Resolver.PlaceName(ctx, p); err == nil && name != "" {
			return name, nil
		}
	}
	return direction.Describe(p), nil
}

var (
	_ Resolver = (*Chain)(nil)
	_ Geocoder = (*Chain)(nil)
	_ Resolver = Fallback{}
)
