package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/narration"
)

// PedestrianLoop polls a position source, ticks the guidance engine, and
// queues each announcement for narration.
type PedestrianLoop struct {
	stopper

	source   PositionSource
	guide    Guide
	narrator Narrator
	config   PedestrianConfig
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	retry   *guidance.Announcement
	lastFix *direction.Point
	stats   LoopStats

	// OnAnnouncement is called for every announcement the engine produces,
	// with the enqueue result. Set before Run.
	OnAnnouncement func(a guidance.Announcement, err error)
}

// LoopStats counts loop activity.
type LoopStats struct {
	Ticks   uint64 `json:"ticks"`
	Skipped uint64 `json:"skipped"`
	Spoken  uint64 `json:"spoken"`
	Dropped uint64 `json:"dropped"`
	Retried uint64 `json:"retried"`
	Errors  uint64 `json:"errors"`
}

// NewPedestrianLoop creates a loop. A nil logger uses slog.Default.
func NewPedestrianLoop(src PositionSource, guide Guide, narrator Narrator, cfg PedestrianConfig, logger *slog.Logger) (*PedestrianLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PedestrianLoop{
		stopper:  newStopper(),
		source:   src,
		guide:    guide,
		narrator: narrator,
		config:   cfg,
		logger:   logger.With("component", "control.pedestrian"),
		now:      time.Now,
	}, nil
}

// Run ticks until Stop, ctx cancellation, or arrival. Call it once.
func (l *PedestrianLoop) Run(ctx context.Context) {
	defer l.exit()
	l.logger.Info("pedestrian loop started", "period", l.config.Period)
	l.run(ctx, l.config.Period, l.tick)
	l.logger.Info("pedestrian loop stopped")
}

// Stats returns loop counters.
func (l *PedestrianLoop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// LastFix returns the last position read from the source.
func (l *PedestrianLoop) LastFix() (direction.Point, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastFix == nil {
		return direction.Point{}, false
	}
	return *l.lastFix, true
}

func (l *PedestrianLoop) tick(ctx context.Context) bool {
	l.count(func(s *LoopStats) { s.Ticks++ })

	// A turn instruction refused last period gets exactly one more try.
	if r := l.takeRetry(); r != nil {
		l.count(func(s *LoopStats) { s.Retried++ })
		if err := l.enqueue(*r); err != nil {
			l.logger.Warn("dropping instruction after retry", "text", r.Text, "error", err)
			l.count(func(s *LoopStats) { s.Dropped++ })
		}
	}

	cctx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
	pos, err := l.source.Position(cctx)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrNoFix) {
			l.count(func(s *LoopStats) { s.Errors++ })
			l.logger.Debug("position unavailable", "error", err)
		}
		l.count(func(s *LoopStats) { s.Skipped++ })
		return true
	}

	l.mu.Lock()
	l.lastFix = &pos
	l.mu.Unlock()

	ann, ok := l.guide.Tick(ctx, pos, l.now())
	if !ok {
		return true
	}

	err = l.enqueue(ann)
	if err != nil {
		if ann.Droppable() {
			l.count(func(s *LoopStats) { s.Dropped++ })
			l.logger.Debug("dropping progress update", "error", err)
		} else {
			l.setRetry(ann)
		}
	}
	if l.OnAnnouncement != nil {
		l.OnAnnouncement(ann, err)
	}

	return ann.Kind != guidance.KindArrived
}

// enqueue applies soft backpressure before handing text to the narrator.
// The arrival message is exempt: the loop ends after it and never retries.
func (l *PedestrianLoop) enqueue(a guidance.Announcement) error {
	if a.Kind != guidance.KindArrived && l.narrator.Pending() >= l.config.MaxPending {
		return narration.ErrQueueFull
	}
	if err := l.narrator.Enqueue(a.Text); err != nil {
		return err
	}
	l.count(func(s *LoopStats) { s.Spoken++ })
	return nil
}

func (l *PedestrianLoop) takeRetry() *guidance.Announcement {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.retry
	l.retry = nil
	return r
}

func (l *PedestrianLoop) setRetry(a guidance.Announcement) {
	l.mu.Lock()
	l.retry = &a
	l.mu.Unlock()
}

func (l *PedestrianLoop) count(f func(*LoopStats)) {
	l.mu.Lock()
	f(&l.stats)
	l.mu.Unlock()
}
