package speech

import (
	"context"
	"log/slog"
	"time"
)

const backendSimulated = "simulated"

// PerCharacter approximates how long one character takes to speak.
const PerCharacter = 80 * time.Millisecond

// Simulated logs each utterance and blocks for about as long as speaking it
// aloud would take. It keeps pacing realistic on hosts without audio.
type Simulated struct {
	perChar time.Duration
	logger  *slog.Logger
}

// NewSimulated creates a Simulated backend. perChar <= 0 uses PerCharacter.
func NewSimulated(perChar time.Duration, logger *slog.Logger) *Simulated {
	if perChar <= 0 {
		perChar = PerCharacter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{perChar: perChar, logger: logger.With("component", "speech.simulated")}
}

// Speak logs text and waits len(text)*perChar or until ctx is done.
func (s *Simulated) Speak(ctx context.Context, text string, voice Voice) error {
	s.logger.Info("🔊 speaking", "text", text, "voice", voice.Name)

	t := time.NewTimer(time.Duration(len(text)) * s.perChar)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Name implements Synthesizer.
func (s *Simulated) Name() string { return backendSimulated }

var _ Synthesizer = (*Simulated)(nil)
