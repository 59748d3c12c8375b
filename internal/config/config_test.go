package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Guidance.WaypointRadius != 20 || cfg.Guidance.OffRouteDistance != 50 {
		t.Errorf("guidance thresholds = %+v", cfg.Guidance)
	}
	if cfg.Robot.ArrivalRadius != 5 || cfg.Robot.HeadingTolerance != 15 || cfg.Robot.Period != 2*time.Second {
		t.Errorf("robot = %+v", cfg.Robot)
	}
	if cfg.Pedestrian.Period != 8*time.Second || cfg.Narration.SynthesisTimeout != 60*time.Second {
		t.Errorf("pedestrian %v, synthesis timeout %v", cfg.Pedestrian.Period, cfg.Narration.SynthesisTimeout)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.yaml")
	yml := `
server:
  addr: ":9000"
guidance:
  waypoint_radius: 15
robot:
  source: link
  period: 3s
  heading_tolerance: 20
narration:
  gap: 0s
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("GOOGLE_MAPS_API_KEY=from-file\nGUIDE_ADDR=:7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GUIDE_ADDR", ":8080")
	t.Setenv("GUIDE_ROBOT_PERIOD", "4s")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	os.Unsetenv("GOOGLE_MAPS_API_KEY")

	cfg, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, environment must win", cfg.Server.Addr)
	}
	if cfg.Places.GoogleMapsKey != "from-file" {
		t.Errorf("maps key = %q, want value from .env", cfg.Places.GoogleMapsKey)
	}
	if cfg.Guidance.WaypointRadius != 15 || cfg.Guidance.OffRouteDistance != 50 {
		t.Errorf("guidance = %+v, want file value over defaults", cfg.Guidance)
	}
	if cfg.Robot.Source != SourceLink || cfg.Robot.Period != 4*time.Second || cfg.Robot.HeadingTolerance != 20 {
		t.Errorf("robot = %+v", cfg.Robot)
	}
	if cfg.Robot.ArrivalRadius != 5 {
		t.Errorf("arrival radius = %v, default must survive", cfg.Robot.ArrivalRadius)
	}
	if cfg.Narration.Gap != 0 {
		t.Errorf("gap = %v", cfg.Narration.Gap)
	}
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VITE_GEMINI_API_KEY": "g",
		"ESP32_CAM_IP":        "10.0.0.9",
		"GO_ENV":              "production",
		"GUIDE_NARRATION":     "false",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Vision.GeminiKey != "g" {
		t.Errorf("gemini key = %q", cfg.Vision.GeminiKey)
	}
	if cfg.Vision.CameraURL != "http://10.0.0.9/capture" {
		t.Errorf("camera url = %q", cfg.Vision.CameraURL)
	}
	if !cfg.Log.JSON || cfg.Narration.Enabled {
		t.Errorf("json %v narration %v", cfg.Log.JSON, cfg.Narration.Enabled)
	}

	env["GUIDE_ROBOT_PERIOD"] = "soon"
	var cerr *Error
	if err := cfg.applyEnv(lookup); !errors.As(err, &cerr) || cerr.Field != "GUIDE_ROBOT_PERIOD" {
		t.Errorf("expected config error for bad duration, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Robot.Source = "carrier-pigeon"
	cfg.Speech.Backend = BackendCloud
	cfg.Narration.Capacity = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	for _, field := range []string{"robot.source", "speech.openai_key", "narration.capacity"} {
		if !containsField(err, field) {
			t.Errorf("missing error for %s in %v", field, err)
		}
	}
}

func containsField(err error, field string) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	for _, e := range joined.Unwrap() {
		var cerr *Error
		if errors.As(e, &cerr) && cerr.Field == field {
			return true
		}
	}
	return false
}
