package triplog_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/triplog"
)

func TestMemory(t *testing.T) {
	m := triplog.NewMemory()
	ctx := t.Context()
	id := uuid.New()
	other := uuid.New()
	now := time.Now()
	p := direction.Point{Lat: 7.29, Lng: 80.64}

	if err := m.Begin(ctx, triplog.Trip{ID: id, Mode: triplog.ModeRobot, Destination: p, StartedAt: now}); err != nil {
		t.Fatal(err)
	}
	_ = m.Log(ctx, triplog.Entry{TripID: id, Kind: triplog.KindFix, At: now, Position: &p})
	_ = m.Log(ctx, triplog.Entry{TripID: id, Kind: triplog.KindCommand, At: now, Text: "left"})
	_ = m.Log(ctx, triplog.Entry{TripID: other, Kind: triplog.KindCommand, At: now, Text: "right"})

	if got := m.Entries(id, triplog.KindCommand); len(got) != 1 || got[0].Text != "left" {
		t.Errorf("commands = %+v", got)
	}
	if m.Outcome(id) != "" {
		t.Error("open trip should have no outcome")
	}
	_ = m.End(ctx, id, "arrived", now)
	if m.Outcome(id) != "arrived" {
		t.Errorf("outcome = %q", m.Outcome(id))
	}
	if trips := m.Trips(); len(trips) != 1 || trips[0].Mode != triplog.ModeRobot {
		t.Errorf("trips = %+v", trips)
	}
}

func TestMemory_Recent(t *testing.T) {
	m := triplog.NewMemory()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		ids = append(ids, id)
		_ = m.Begin(ctx, triplog.Trip{ID: id, Mode: triplog.ModePedestrian, Waypoints: i + 1, StartedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	_ = m.Log(ctx, triplog.Entry{TripID: ids[0], Kind: triplog.KindUtterance, Text: "Head north."})
	_ = m.Log(ctx, triplog.Entry{TripID: ids[0], Kind: triplog.KindUtterance, Text: "Turn left."})
	_ = m.End(ctx, ids[0], "arrived", base.Add(10*time.Minute))
	_ = m.End(ctx, ids[0], "stopped", base.Add(11*time.Minute))

	t.Run("newest first", func(t *testing.T) {
		got, err := m.Recent(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0].ID != ids[2] || got[2].ID != ids[0] {
			t.Fatalf("order = %+v", got)
		}
		if got[0].EndedAt != nil || got[0].Outcome != nil {
			t.Errorf("open trip has an end: %+v", got[0])
		}
		first := got[2]
		if first.Entries != 2 || first.Outcome == nil || *first.Outcome != "arrived" {
			t.Errorf("first trip = %+v", first)
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, _ := m.Recent(ctx, 1)
		if len(got) != 1 || got[0].ID != ids[2] {
			t.Errorf("limited = %+v", got)
		}
	})
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := triplog.Open(t.Context(), "", nil); !errors.Is(err, triplog.ErrNoDSN) {
		t.Errorf("expected ErrNoDSN, got %v", err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("GUIDE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GUIDE_TEST_DATABASE_URL not set")
	}
	ctx := t.Context()
	pg, err := triplog.Open(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pg.Close()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := direction.Point{Lat: 7.29, Lng: 80.64}
	if err := pg.Begin(ctx, triplog.Trip{ID: id, Mode: triplog.ModePedestrian, Destination: p, Waypoints: 3, StartedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := pg.Log(ctx, triplog.Entry{TripID: id, Kind: triplog.KindFix, At: now, Position: &p}); err != nil {
		t.Fatal(err)
	}
	if err := pg.Log(ctx, triplog.Entry{TripID: id, Kind: triplog.KindUtterance, At: now, Text: "Head north."}); err != nil {
		t.Fatal(err)
	}
	if err := pg.End(ctx, id, "stopped", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	trips, err := pg.Recent(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range trips {
		if tr.ID != id {
			continue
		}
		if tr.Entries != 2 || tr.Outcome == nil || *tr.Outcome != "stopped" {
			t.Errorf("summary = %+v", tr)
		}
		return
	}
	t.Errorf("trip %s not listed", id)
}
