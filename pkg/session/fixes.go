package session

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
)

// FixStore holds the latest pushed position. It is the pedestrian loop's
// PositionSource.
type FixStore struct {
	mu sync.RWMutex
	p  *direction.Point
	at time.Time
}

// NewFixStore returns an empty store.
func NewFixStore() *FixStore { return &FixStore{} }

// Set records p as the latest fix.
func (f *FixStore) Set(p direction.Point, at time.Time) {
	f.mu.Lock()
	f.p = &p
	f.at = at
	f.mu.Unlock()
}

// Last returns the latest fix and when it arrived.
func (f *FixStore) Last() (direction.Point, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.p == nil {
		return direction.Point{}, time.Time{}, false
	}
	return *f.p, f.at, true
}

// Position implements control.PositionSource.
func (f *FixStore) Position(context.Context) (direction.Point, error) {
	p, _, ok := f.Last()
	if !ok {
		return direction.Point{}, control.ErrNoFix
	}
	return p, nil
}

var _ control.PositionSource = (*FixStore)(nil)
