package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// stopper carries the cooperative stop flag shared by both loops.
type stopper struct {
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	running atomic.Bool
}

func newStopper() stopper {
	return stopper{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stop asks the loop to exit. It returns immediately; a tick in progress
// finishes first. Safe to call more than once.
func (s *stopper) Stop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.stop)
	})
}

// Done is closed when Run returns.
func (s *stopper) Done() <-chan struct{} { return s.done }

// Running reports whether Run is executing.
func (s *stopper) Running() bool { return s.running.Load() }

// exit marks the loop finished. Run methods defer it first so Done closes
// only after all other cleanup.
func (s *stopper) exit() {
	s.running.Store(false)
	close(s.done)
}

// run drives tick immediately and then once per period until tick returns
// false, Stop is called, or ctx ends. The stop flag is checked before every
// tick so a stop requested mid-period never lets another tick start.
func (s *stopper) run(ctx context.Context, period time.Duration, tick func(context.Context) bool) {
	s.running.Store(true)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return
		}
		if !tick(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}
