// Package config loads go-guide settings from a YAML file, a .env file and
// the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/firebase"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/narration"
	"github.com/teslashibe/go-guide/pkg/speech"
)

// Config is the complete server configuration.
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Log        LogConfig                `yaml:"log"`
	Guidance   guidance.Config          `yaml:"guidance"`
	Pedestrian control.PedestrianConfig `yaml:"pedestrian"`
	Robot      RobotConfig              `yaml:"robot"`
	Narration  NarrationConfig          `yaml:"narration"`
	Speech     SpeechConfig             `yaml:"speech"`
	Places     PlacesConfig             `yaml:"places"`
	Vision     VisionConfig             `yaml:"vision"`
	Firebase   FirebaseConfig           `yaml:"firebase"`
	Database   DatabaseConfig           `yaml:"database"`
	Route      RouteConfig              `yaml:"route"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	CORSOrigins string `yaml:"cors_origins"`

	// JWTSecret enables HS256 bearer auth on the API when set.
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Robot position, heading and command transports.
const (
	SourceFirebase = "firebase"
	SourceLink     = "link"
	SourceSim      = "sim"
)

type RobotConfig struct {
	control.RobotConfig `yaml:",inline"`

	// Source selects where fixes come from and commands go.
	Source string `yaml:"source"`

	// ID addresses the robot on the websocket link.
	ID string `yaml:"id"`

	// MaxFixAge is how long a link report stays usable.
	MaxFixAge time.Duration `yaml:"max_fix_age"`
}

type NarrationConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Capacity         int           `yaml:"capacity"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`
	Gap              time.Duration `yaml:"gap"`
	Voice            string        `yaml:"voice"`
	Rate             int           `yaml:"rate"`
}

// Speech backends.
const (
	BackendAuto      = "auto"
	BackendSystem    = "system"
	BackendCloud     = "cloud"
	BackendSimulated = "simulated"
)

type SpeechConfig struct {
	Backend      string        `yaml:"backend"`
	OpenAIKey    string        `yaml:"openai_key"`
	OpenAIModel  string        `yaml:"openai_model"`
	Timeout      time.Duration `yaml:"timeout"`
	PerCharacter time.Duration `yaml:"per_character"`
}

type PlacesConfig struct {
	GoogleMapsKey string        `yaml:"google_maps_key"`
	NominatimURL  string        `yaml:"nominatim_url"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheCell     float64       `yaml:"cache_cell_degrees"`
	CacheEntries  int           `yaml:"cache_entries"`
}

type VisionConfig struct {
	GeminiKey string        `yaml:"gemini_key"`
	Model     string        `yaml:"model"`
	CameraURL string        `yaml:"camera_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type FirebaseConfig struct {
	firebase.Config `yaml:",inline"`
	Paths           firebase.Paths `yaml:"paths"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RouteConfig struct {
	// SampleInstructions is how many canned steps a route gets when the
	// client supplies none.
	SampleInstructions int `yaml:"sample_instructions"`
}

// Default returns the canonical settings.
func Default() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8000", CORSOrigins: "*"},
		Log:        LogConfig{Level: "info"},
		Guidance:   guidance.DefaultConfig(),
		Pedestrian: control.DefaultPedestrianConfig(),
		Robot: RobotConfig{
			RobotConfig: control.DefaultRobotConfig(),
			Source:      SourceFirebase,
			ID:          "esp32",
			MaxFixAge:   10 * time.Second,
		},
		Narration: NarrationConfig{
			Enabled:          true,
			Capacity:         narration.DefaultCapacity,
			SynthesisTimeout: narration.DefaultSynthesisTimeout,
			Gap:              narration.DefaultGap,
			Voice:            speech.DefaultVoice().Name,
			Rate:             speech.DefaultVoice().Rate,
		},
		Speech: SpeechConfig{
			Backend:      BackendAuto,
			OpenAIModel:  "tts-1",
			Timeout:      30 * time.Second,
			PerCharacter: speech.PerCharacter,
		},
		Places: PlacesConfig{
			NominatimURL: "https://nominatim.openstreetmap.org",
			Timeout:      5 * time.Second,
			CacheTTL:     10 * time.Minute,
			CacheCell:    0.0002,
			CacheEntries: 512,
		},
		Vision: VisionConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 15 * time.Second,
		},
		Firebase: FirebaseConfig{
			Config: firebase.Config{Timeout: 5 * time.Second},
			Paths:  firebase.DefaultPaths(),
		},
		Route: RouteConfig{SampleInstructions: 5},
	}
}

// Load reads path (optional), then envFile (optional, missing is fine),
// then the environment, and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		// existing environment variables win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, &Error{Field: key, Msg: err.Error()})
				return
			}
			*dst = d
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, &Error{Field: key, Msg: err.Error()})
				return
			}
			*dst = b
		}
	}

	str(&c.Server.Addr, "GUIDE_ADDR")
	str(&c.Server.CORSOrigins, "GUIDE_CORS_ORIGINS")
	str(&c.Server.JWTSecret, "JWT_SECRET")
	str(&c.Log.Level, "GUIDE_LOG_LEVEL")
	if v, ok := lookup("GO_ENV"); ok && v == "production" {
		c.Log.JSON = true
	}

	str(&c.Robot.Source, "GUIDE_ROBOT_SOURCE")
	str(&c.Robot.ID, "GUIDE_ROBOT_ID")
	dur(&c.Robot.Period, "GUIDE_ROBOT_PERIOD")
	dur(&c.Pedestrian.Period, "GUIDE_PEDESTRIAN_PERIOD")

	boolean(&c.Narration.Enabled, "GUIDE_NARRATION")
	str(&c.Narration.Voice, "GUIDE_VOICE")
	str(&c.Speech.Backend, "GUIDE_SPEECH_BACKEND")
	str(&c.Speech.OpenAIKey, "OPENAI_API_KEY")

	str(&c.Places.GoogleMapsKey, "GOOGLE_MAPS_API_KEY")
	str(&c.Places.NominatimURL, "GUIDE_NOMINATIM_URL")

	str(&c.Vision.GeminiKey, "GEMINI_API_KEY", "VITE_GEMINI_API_KEY")
	str(&c.Vision.CameraURL, "GUIDE_CAMERA_URL")
	if c.Vision.CameraURL == "" {
		if ip, ok := lookup("ESP32_CAM_IP"); ok && ip != "" {
			c.Vision.CameraURL = "http://" + ip + "/capture"
		}
	}

	str(&c.Firebase.URL, "FIREBASE_URL")
	str(&c.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")
	str(&c.Firebase.Secret, "FIREBASE_SECRET")

	str(&c.Database.URL, "DATABASE_URL")

	return errors.Join(errs...)
}

// Error reports an invalid setting.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Validate checks the whole configuration and reports every problem.
func (c Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &Error{Field: field, Msg: fmt.Sprintf(format, args...)})
	}

	if c.Server.Addr == "" {
		add("server.addr", "is required")
	}
	if err := c.Guidance.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Pedestrian.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Robot.RobotConfig.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Robot.Source {
	case SourceFirebase, SourceLink, SourceSim:
	default:
		add("robot.source", "must be firebase, link or sim, got %q", c.Robot.Source)
	}
	switch strings.ToLower(c.Speech.Backend) {
	case BackendAuto, BackendSystem, BackendCloud, BackendSimulated:
	default:
		add("speech.backend", "must be auto, system, cloud or simulated, got %q", c.Speech.Backend)
	}
	if strings.ToLower(c.Speech.Backend) == BackendCloud && c.Speech.OpenAIKey == "" {
		add("speech.openai_key", "is required for the cloud backend")
	}

	if c.Narration.Capacity < 1 {
		add("narration.capacity", "must be at least 1, got %d", c.Narration.Capacity)
	}
	if c.Narration.SynthesisTimeout <= 0 {
		add("narration.synthesis_timeout", "must be positive")
	}
	if c.Route.SampleInstructions < 0 || c.Route.SampleInstructions > 10 {
		add("route.sample_instructions", "must be in [0,10], got %d", c.Route.SampleInstructions)
	}
	return errors.Join(errs...)
}
