package speech

import (
	"context"
	"sync"
	"time"
)

// Mock implements Synthesizer for testing.
type Mock struct {
	// SpeakFunc is called when Speak is invoked. If nil, Speak returns nil
	// after Latency (or when ctx is done).
	SpeakFunc func(ctx context.Context, text string, voice Voice) error

	// Latency simulates playback time when SpeakFunc is nil.
	Latency time.Duration

	mu     sync.Mutex
	calls  []MockCall
	active int
	peak   int
}

// MockCall records one Speak invocation.
type MockCall struct {
	Text  string
	Voice Voice
	Time  time.Time
}

// NewMock creates a mock that succeeds instantly.
func NewMock() *Mock {
	return &Mock{}
}

// Speak records the call and runs SpeakFunc.
func (m *Mock) Speak(ctx context.Context, text string, voice Voice) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Voice: voice, Time: time.Now()})
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text, voice)
	}
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Latency):
		return nil
	}
}

// Name implements Synthesizer.
func (m *Mock) Name() string { return "mock" }

// Calls returns a copy of recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Texts returns the spoken texts in call order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Text
	}
	return out
}

// PeakConcurrency returns the most Speak calls ever in flight at once.
func (m *Mock) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.peak = 0
}

var _ Synthesizer = (*Mock)(nil)
