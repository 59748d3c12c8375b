package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-guide/internal/httpc"
	"github.com/teslashibe/go-guide/pkg/direction"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim resolves places through an OpenStreetMap Nominatim server.
type Nominatim struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewNominatim creates a resolver. Empty baseURL uses DefaultNominatimURL.
func NewNominatim(baseURL string, timeout time.Duration, logger *slog.Logger) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Nominatim{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.New(timeout),
		logger:  logger.With("component", "places.nominatim"),
	}
}

type nominatimAddress struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Quarter       string `json:"quarter"`
	District      string `json:"district"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
}

type nominatimResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

// PlaceName returns up to two of road, neighbourhood, and city, or the
// first part of the display name.
func (n *Nominatim) PlaceName(ctx context.Context, p direction.Point) (string, error) {
	q := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(p.Lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(p.Lng, 'f', 6, 64)},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}

	var res nominatimResult
	if err := n.get(ctx, "/reverse", q, &res); err != nil {
		return "", err
	}

	if name := res.Address.describe(); name != "" {
		n.logger.Debug("resolved", "position", p.String(), "name", name)
		return name, nil
	}
	if name := firstPart(res.DisplayName); name != "" {
		return name, nil
	}
	return "", ErrNotFound
}

// Geocode searches for query and returns the best match.
func (n *Nominatim) Geocode(ctx context.Context, query string) (Place, error) {
	q := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {"1"},
	}

	var res []nominatimResult
	if err := n.get(ctx, "/search", q, &res); err != nil {
		return Place{}, err
	}
	if len(res) == 0 {
		return Place{}, ErrNotFound
	}

	lat, err1 := strconv.ParseFloat(res[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(res[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return Place{}, fmt.Errorf("places: nominatim returned bad coordinates %q,%q", res[0].Lat, res[0].Lon)
	}
	return Place{Name: res[0].DisplayName, Position: direction.Point{Lat: lat, Lng: lng}}, nil
}

func (n *Nominatim) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("places: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("places: nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places: nominatim status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("places: decode nominatim response: %w", err)
	}
	return nil
}

func (a nominatimAddress) describe() string {
	var parts []string

	switch {
	case a.HouseNumber != "" && a.Road != "":
		parts = append(parts, a.HouseNumber+" "+a.Road)
	case a.Road != "":
		parts = append(parts, a.Road)
	}
	if area := firstNonEmpty(a.Neighbourhood, a.Suburb, a.Quarter, a.District); area != "" {
		parts = append(parts, area)
	}
	if city := firstNonEmpty(a.City, a.Town, a.Village); city != "" {
		parts = append(parts, city)
	}

	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	_ Resolver = (*Nominatim)(nil)
	_ Geocoder = (*Nominatim)(nil)
)
