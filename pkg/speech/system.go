package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const backendSystem = "system"

// System speaks through the operating system's speech command.
type System struct {
	binary string
	config *Config
	logger *slog.Logger

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewSystem picks say on macOS and espeak-ng (or espeak) elsewhere.
// It returns ErrNoBackend when none of them is on PATH.
func NewSystem(opts ...Option) (*System, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	candidates := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return newSystem(path, cfg), nil
		}
	}
	return nil, wrap(backendSystem, fmt.Errorf("%w: none of %s found", ErrNoBackend, strings.Join(candidates, ", ")))
}

func newSystem(binary string, cfg *Config) *System {
	return &System{
		binary:  binary,
		config:  cfg,
		logger:  cfg.Logger.With("component", "speech.system", "binary", binary),
		command: exec.CommandContext,
	}
}

// Speak runs the speech command and waits for it to exit.
// Cancelling ctx kills the process.
func (s *System) Speak(ctx context.Context, text string, voice Voice) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	voice = s.config.voiceOr(voice)

	args := s.args(text, voice)
	s.logger.Debug("speaking", "chars", len(text), "voice", voice.Name, "rate", voice.Rate)

	out, err := s.command(ctx, s.binary, args...).CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return wrap(backendSystem, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}
	return nil
}

// args builds command-line arguments for the detected binary.
func (s *System) args(text string, voice Voice) []string {
	var args []string
	if strings.HasSuffix(s.binary, "say") {
		if voice.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(voice.Rate))
		}
		if voice.Name != "" {
			args = append(args, "-v", voice.Name)
		}
	} else {
		if voice.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(voice.Rate))
		}
		// espeak voices are language codes; macOS voice names would be rejected.
		if voice.Name != "" && voice.Name != DefaultVoice().Name {
			args = append(args, "-v", voice.Name)
		}
	}
	return append(args, "--", text)
}

// Name implements Synthesizer.
func (s *System) Name() string { return backendSystem }

var _ Synthesizer = (*System)(nil)
