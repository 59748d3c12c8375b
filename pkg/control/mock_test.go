package control

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
)

// mockSource serves a settable position and heading; nil means no fix.
type mockSource struct {
	mu      sync.Mutex
	pos     *direction.Point
	heading *float64
	err     error
}

func (m *mockSource) set(p direction.Point, heading float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = &p
	m.heading = &heading
}

func (m *mockSource) Position(context.Context) (direction.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return direction.Point{}, m.err
	}
	if m.pos == nil {
		return direction.Point{}, ErrNoFix
	}
	return *m.pos, nil
}

func (m *mockSource) Heading(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heading == nil {
		return 0, ErrNoFix
	}
	return *m.heading, nil
}

// mockSink records published commands.
type mockSink struct {
	mu   sync.Mutex
	cmds []direction.Command
	err  error
}

func (m *mockSink) Publish(_ context.Context, cmd direction.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmds = append(m.cmds, cmd)
	return m.err
}

func (m *mockSink) commands() []direction.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]direction.Command, len(m.cmds))
	copy(out, m.cmds)
	return out
}

// scriptedGuide returns queued announcements, one per tick.
type scriptedGuide struct {
	mu     sync.Mutex
	script []guidance.Announcement
	ticks  int
}

func (g *scriptedGuide) Tick(context.Context, direction.Point, time.Time) (guidance.Announcement, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ticks++
	if len(g.script) == 0 {
		return guidance.Announcement{}, false
	}
	a := g.script[0]
	g.script = g.script[1:]
	return a, true
}

// mockNarrator records enqueued text; errs are returned in order.
type mockNarrator struct {
	mu      sync.Mutex
	texts   []string
	pending int
	errs    []error
}

func (m *mockNarrator) Enqueue(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockNarrator) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *mockNarrator) enqueued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

var (
	_ PositionSource = (*mockSource)(nil)
	_ HeadingSource  = (*mockSource)(nil)
	_ CommandSink    = (*mockSink)(nil)
	_ Guide          = (*scriptedGuide)(nil)
	_ Narrator       = (*mockNarrator)(nil)
)
