// Package speech turns narration text into audible speech.
//
// Every backend implements Synthesizer, whose Speak call blocks until the
// utterance has finished playing. Backends must return promptly once ctx is
// done; the narration channel relies on that to abort a stuck utterance.
//
// Available backends:
//   - System: the OS speech command (say on macOS, espeak-ng elsewhere)
//   - Cloud: OpenAI text-to-speech piped into a local audio player
//   - Simulated: logs the text and waits roughly as long as speaking would take
//
// Backends can be stacked with NewChain so a missing binary or an API outage
// falls through to the next one.
package speech

import "context"

// Synthesizer speaks text and returns when playback completes.
type Synthesizer interface {
	// Speak blocks until the text has been spoken, ctx is done, or an error occurs.
	// It must return promptly once ctx is cancelled; callers give up on a
	// backend that does not.
	Speak(ctx context.Context, text string, voice Voice) error

	// Name identifies the backend in logs.
	Name() string
}

// Voice carries per-utterance voice parameters.
// Zero fields mean "backend default".
type Voice struct {
	// Name is the backend voice identifier (e.g. "Alex" for say, "en" for espeak-ng,
	// "shimmer" for OpenAI).
	Name string

	// Rate is the speaking rate in words per minute.
	Rate int
}

// DefaultVoice returns the voice used for navigation narration.
func DefaultVoice() Voice {
	return Voice{Name: "Alex", Rate: 200}
}
