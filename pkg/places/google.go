package places

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// GoogleMaps resolves places with the Google Maps Geocoding API.
type GoogleMaps struct {
	client *maps.Client
	logger *slog.Logger
}

// GoogleOption configures a GoogleMaps resolver.
type GoogleOption func(*googleConfig)

type googleConfig struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// WithGoogleBaseURL points the client at another endpoint, for tests.
func WithGoogleBaseURL(url string) GoogleOption {
	return func(c *googleConfig) { c.baseURL = url }
}

// WithGoogleHTTPClient sets the HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(c *googleConfig) { c.httpClient = hc }
}

// WithGoogleLogger sets the logger.
func WithGoogleLogger(l *slog.Logger) GoogleOption {
	return func(c *googleConfig) { c.logger = l }
}

// NewGoogleMaps creates a resolver authenticated with apiKey.
func NewGoogleMaps(apiKey string, opts ...GoogleOption) (*GoogleMaps, error) {
	cfg := googleConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(cfg.httpClient))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("places: google maps client: %w", err)
	}
	return &GoogleMaps{client: client, logger: cfg.logger.With("component", "places.google")}, nil
}

// PlaceName returns the street name at p, falling back to the first result's
// formatted address.
func (g *GoogleMaps) PlaceName(ctx context.Context, p direction.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("places: reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNotFound
	}

	name := streetName(results[0])
	if name == "" {
		name = firstPart(results[0].FormattedAddress)
	}
	if name == "" {
		return "", ErrNotFound
	}
	g.logger.Debug("resolved", "position", p.String(), "name", name)
	return name, nil
}

// Geocode returns the first match for query.
func (g *GoogleMaps) Geocode(ctx context.Context, query string) (Place, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		return Place{}, fmt.Errorf("places: geocode: %w", err)
	}
	if len(results) == 0 {
		return Place{}, ErrNotFound
	}
	loc := results[0].Geometry.Location
	return Place{
		Name:     results[0].FormattedAddress,
		Position: direction.Point{Lat: loc.Lat, Lng: loc.Lng},
	}, nil
}

// streetName prefers the "route" component, prefixed by the street number
// when one is present.
func streetName(r maps.GeocodingResult) string {
	var number, route string
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "route":
				route = comp.LongName
			case "street_number":
				number = comp.LongName
			}
		}
	}
	if route == "" {
		return ""
	}
	if number != "" {
		return number + " " + route
	}
	return route
}

// firstPart returns the text before the first comma.
func firstPart(s string) string {
	head, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(head)
}

var (
	_ Resolver = (*GoogleMaps)(nil)
	_ Geocoder = (*GoogleMaps)(nil)
)
