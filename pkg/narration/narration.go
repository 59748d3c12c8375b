// Package narration serializes speech output.
//
// A Channel owns a bounded FIFO of utterances and a single consumer that
// speaks them one at a time through a speech.Synthesizer. Any number of
// goroutines may Enqueue or Clear concurrently; only Run speaks.
package narration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-guide/pkg/speech"
)

// abandonGrace bounds the wait for a cancelled synthesis to return.
const abandonGrace = 2 * time.Second

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("narration: queue full")

	// ErrSynthesisTimeout is logged when an utterance exceeds the synthesis timeout.
	ErrSynthesisTimeout = errors.New("narration: synthesis timeout")
)

// Utterance is one queued piece of narration.
type Utterance struct {
	Text       string    `json:"text"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Stats counts channel activity since creation.
type Stats struct {
	Enqueued uint64 `json:"enqueued"`
	Spoken   uint64 `json:"spoken"`
	Failed   uint64 `json:"failed"`
	TimedOut uint64 `json:"timed_out"`
	Dropped  uint64 `json:"dropped"`
	Cleared  uint64 `json:"cleared"`

	// Abandoned counts syntheses still running after cancellation and grace.
	Abandoned uint64 `json:"abandoned"`
}

// Channel is a single-consumer narration queue.
type Channel struct {
	synth  speech.Synthesizer
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	queue    []Utterance
	inFlight *Utterance
	enabled  bool

	wake chan struct{}

	enqueued atomic.Uint64
	spoken   atomic.Uint64
	failed   atomic.Uint64
	timedOut atomic.Uint64
	dropped  atomic.Uint64
	cleared  atomic.Uint64

	abandoned atomic.Uint64

	// OnSpoken is called from the consumer after each utterance finishes,
	// with the error from synthesis (nil on success). Set before Run.
	OnSpoken func(u Utterance, err error)
}

// New creates an enabled channel. Call Run to start speaking.
func New(synth speech.Synthesizer, opts ...Option) *Channel {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}

	return &Channel{
		synth:   synth,
		config:  cfg,
		logger:  cfg.Logger.With("component", "narration"),
		queue:   make([]Utterance, 0, cfg.Capacity),
		enabled: true,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends text to the queue. It never blocks.
// Blank text and a disabled channel are silent no-ops.
func (c *Channel) Enqueue(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return nil
	}
	if len(c.queue) >= c.config.Capacity {
		c.mu.Unlock()
		c.dropped.Add(1)
		return ErrQueueFull
	}
	c.queue = append(c.queue, Utterance{Text: text, EnqueuedAt: time.Now()})
	c.mu.Unlock()

	c.enqueued.Add(1)
	c.signal()
	return nil
}

// Clear discards every queued utterance that has not started and returns
// how many were dropped. The in-flight utterance keeps playing.
func (c *Channel) Clear() int {
	c.mu.Lock()
	n := len(c.queue)
	c.queue = c.queue[:0]
	c.mu.Unlock()

	if n > 0 {
		c.cleared.Add(uint64(n))
		c.logger.Debug("cleared queue", "dropped", n)
	}
	return n
}

// SetEnabled turns narration on or off. Disabling does not clear the queue.
func (c *Channel) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// Enabled reports whether Enqueue accepts text.
func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Pending returns the number of queued, not yet started utterances.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Speaking reports whether an utterance is in flight.
func (c *Channel) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight != nil
}

// Current returns the in-flight utterance, if any.
func (c *Channel) Current() (Utterance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil {
		return Utterance{}, false
	}
	return *c.inFlight, true
}

// Stats returns activity counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Enqueued: c.enqueued.Load(),
		Spoken:   c.spoken.Load(),
		Failed:   c.failed.Load(),
		TimedOut: c.timedOut.Load(),
		Dropped:  c.dropped.Load(),
		Cleared:  c.cleared.Load(),

		Abandoned: c.abandoned.Load(),
	}
}

// settle cancels a synthesis and waits briefly for the backend to return.
func (c *Channel) settle(cancel context.CancelFunc, done <-chan error) {
	cancel()
	t := time.NewTimer(abandonGrace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		c.abandoned.Add(1)
		c.logger.Warn("backend ignored cancellation, abandoning", "backend", c.synth.Name(), "grace", abandonGrace)
	}
}

func (c *Channel) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done. It must be called from exactly one
// goroutine. An utterance already in flight when ctx ends is aborted through
// its context.
func (c *Channel) Run(ctx context.Context) {
	c.logger.Info("narration consumer started", "backend", c.synth.Name(), "capacity", c.config.Capacity)
	defer c.logger.Info("narration consumer stopped")

	for {
		u, ok := c.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		c.speak(ctx, u)

		c.mu.Lock()
		c.inFlight = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if c.config.Gap > 0 {
			t := time.NewTimer(c.config.Gap)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// next pops the head of the queue and marks it in flight.
func (c *Channel) next() (Utterance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Utterance{}, false
	}
	u := c.queue[0]
	c.queue = c.queue[1:]
	c.inFlight = &u
	return u, true
}

// speak runs one synthesis bounded by the synthesis timeout. On timeout or
// shutdown the synthesis context is cancelled and the consumer waits up to
// abandonGrace for the backend to return, so utterances never overlap unless
// a backend ignores cancellation.
func (c *Channel) speak(ctx context.Context, u Utterance) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.synth.Speak(sctx, u.Text, c.config.Voice) }()

	timer := time.NewTimer(c.config.SynthesisTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = ErrSynthesisTimeout
		c.timedOut.Add(1)
		c.logger.Warn("synthesis timed out, advancing",
			"timeout", c.config.SynthesisTimeout,
			"chars", len(u.Text),
		)
		c.settle(cancel, done)
	case <-ctx.Done():
		err = ctx.Err()
		c.settle(cancel, done)
	}

	switch {
	case err == nil:
		c.spoken.Add(1)
		c.logger.Debug("spoke", "text", u.Text, "queued_for", time.Since(u.EnqueuedAt))
	case errors.Is(err, ErrSynthesisTimeout), ctx.Err() != nil:
	default:
		c.failed.Add(1)
		c.logger.Warn("synthesis failed", "error", err, "text", u.Text)
	}

	if c.OnSpoken != nil {
		c.OnSpoken(u, err)
	}
}
