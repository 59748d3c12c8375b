package guide

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-guide/internal/config"
	"github.com/teslashibe/go-guide/internal/httpc"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/firebase"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/places"
	"github.com/teslashibe/go-guide/pkg/session"
	"github.com/teslashibe/go-guide/pkg/sim"
	"github.com/teslashibe/go-guide/pkg/speech"
	"github.com/teslashibe/go-guide/pkg/vision"
)

// SimStart is where the simulated robot begins.
var SimStart = direction.Point{Lat: 7.2936, Lng: 80.6428}

// Simulated robot motion per command.
const (
	simStep = 2.0
	simTurn = 15.0
)

// newSynthesizer builds the speech backend. auto chains the system command,
// the cloud backend when a key is set, and finally simulated pacing.
func newSynthesizer(sc config.SpeechConfig, nc config.NarrationConfig, logger *slog.Logger) (speech.Synthesizer, error) {
	voice := speech.Voice{Name: nc.Voice, Rate: nc.Rate}
	simulated := speech.NewSimulated(sc.PerCharacter, logger)

	system := func() (speech.Synthesizer, error) {
		return speech.NewSystem(speech.WithVoice(voice), speech.WithLogger(logger))
	}
	cloud := func() (speech.Synthesizer, error) {
		player, err := speech.DefaultPlayer()
		if err != nil {
			return nil, err
		}
		return speech.NewCloud(
			speech.WithAPIKey(sc.OpenAIKey),
			speech.WithModel(sc.OpenAIModel),
			speech.WithTimeout(sc.Timeout),
			speech.WithPlayer(player),
			speech.WithLogger(logger),
		)
	}

	switch strings.ToLower(sc.Backend) {
	case config.BackendSimulated:
		return simulated, nil
	case config.BackendSystem:
		return system()
	case config.BackendCloud:
		return cloud()
	}

	var backends []speech.Synthesizer
	if s, err := system(); err == nil {
		backends = append(backends, s)
	} else {
		logger.Info("system speech unavailable", "error", err)
	}
	if sc.OpenAIKey != "" {
		if s, err := cloud(); err == nil {
			backends = append(backends, s)
		} else {
			logger.Info("cloud speech unavailable", "error", err)
		}
	}
	backends = append(backends, simulated)
	if len(backends) == 1 {
		return simulated, nil
	}
	return speech.NewChain(logger, backends...)
}

// newPlaceNamer chains Google Maps and Nominatim behind a cache, falling
// back to the coordinate description. The geocoder is nil when no lookup
// backend is configured.
func newPlaceNamer(pc config.PlacesConfig, logger *slog.Logger) (guidance.PlaceNamer, places.Geocoder, error) {
	var resolvers []places.Resolver
	if pc.GoogleMapsKey != "" {
		g, err := places.NewGoogleMaps(pc.GoogleMapsKey,
			places.WithGoogleHTTPClient(httpc.New(pc.Timeout)),
			places.WithGoogleLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		resolvers = append(resolvers, g)
	}
	if pc.NominatimURL != "" {
		resolvers = append(resolvers, places.NewNominatim(pc.NominatimURL, pc.Timeout, logger))
	}
	if len(resolvers) == 0 {
		return places.Fallback{}, nil, nil
	}

	chain, err := places.NewChain(logger, resolvers...)
	if err != nil {
		return nil, nil, err
	}
	cache := places.NewCache(chain, pc.CacheTTL, pc.CacheCell, pc.CacheEntries)
	return places.Fallback{Resolver: cache}, cache, nil
}

// newVision returns nil parts for whatever is not configured.
func newVision(vc config.VisionConfig, logger *slog.Logger) (vision.Provider, vision.Describer) {
	var (
		camera    vision.Provider
		describer vision.Describer
	)
	if vc.CameraURL != "" {
		camera = vision.NewHTTPCamera(vc.CameraURL, vc.Timeout)
	}
	if vc.GeminiKey != "" {
		g, err := vision.NewGemini(vc.GeminiKey, vc.Timeout,
			vision.WithModel(vc.Model),
			vision.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("vision disabled", "error", err)
		} else {
			describer = g
		}
	}
	return camera, describer
}

// newRobotIO selects the robot transport. A firebase source without a URL
// leaves robot sessions disabled.
func (a *App) newRobotIO(ctx context.Context) (session.RobotIO, error) {
	cfg := a.config
	switch cfg.Robot.Source {
	case config.SourceSim:
		r := sim.NewRobot(SimStart, 0, simStep, simTurn)
		return session.RobotIO{Position: r, Heading: r, Sink: r}, nil

	case config.SourceLink:
		d := a.robots.Device(cfg.Robot.ID)
		return session.RobotIO{Position: d, Heading: d, Sink: d}, nil

	default:
		if cfg.Firebase.URL == "" {
			a.logger.Warn("firebase url not set, robot navigation disabled")
			return session.RobotIO{}, nil
		}
		c, err := firebase.New(ctx, cfg.Firebase.Config, a.logger)
		if err != nil {
			return session.RobotIO{}, err
		}
		d := firebase.NewDevice(c, cfg.Firebase.Paths)
		return session.RobotIO{Position: d, Heading: d, Sink: d}, nil
	}
}
