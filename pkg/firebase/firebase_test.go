package firebase_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/firebase"
)

// fakeDB is an in-memory stand-in for the database REST surface.
type fakeDB struct {
	mu     sync.Mutex
	values map[string]string
	puts   []string
	auth   []string
}

func newFakeDB() *fakeDB { return &fakeDB{values: make(map[string]string)} }

func (f *fakeDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.URL.Query().Get("auth"))

	switch r.Method {
	case http.MethodGet:
		v, ok := f.values[r.URL.Path]
		if !ok {
			v = "null"
		}
		_, _ = io.WriteString(w, v)
	case http.MethodPut:
		if r.URL.Path == "/denied.json" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Permission denied"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.values[r.URL.Path] = string(body)
		f.puts = append(f.puts, r.URL.Path)
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T, db *fakeDB, secret string) *firebase.Client {
	t.Helper()
	srv := httptest.NewServer(db)
	t.Cleanup(srv.Close)
	c, err := firebase.New(t.Context(), firebase.Config{URL: srv.URL + "/", Secret: secret}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := firebase.New(t.Context(), firebase.Config{}, nil); !errors.Is(err, firebase.ErrNoURL) {
		t.Errorf("expected ErrNoURL, got %v", err)
	}
}

func TestClient_GetPut(t *testing.T) {
	db := newFakeDB()
	c := newClient(t, db, "s3cret")

	if err := c.Put(t.Context(), "/a/b", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got map[string]int
	if err := c.Get(t.Context(), "a/b", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["x"] != 1 {
		t.Errorf("got %v", got)
	}
	if err := c.Get(t.Context(), "missing", &got); !errors.Is(err, firebase.ErrNull) {
		t.Errorf("expected ErrNull, got %v", err)
	}

	for _, a := range db.auth {
		if a != "s3cret" {
			t.Errorf("auth param = %q", a)
		}
	}
}

func TestClient_StatusError(t *testing.T) {
	c := newClient(t, newFakeDB(), "")
	err := c.Put(t.Context(), "denied", true)
	var se *firebase.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Message != "Permission denied" {
		t.Errorf("unexpected error: %+v", se)
	}
}

func TestDevice(t *testing.T) {
	db := newFakeDB()
	dev := firebase.NewDevice(newClient(t, db, ""), firebase.Paths{})

	t.Run("no fix when empty", func(t *testing.T) {
		if _, err := dev.Position(t.Context()); !errors.Is(err, control.ErrNoFix) {
			t.Errorf("position: expected ErrNoFix, got %v", err)
		}
		if _, err := dev.Heading(t.Context()); !errors.Is(err, control.ErrNoFix) {
			t.Errorf("heading: expected ErrNoFix, got %v", err)
		}
	})

	t.Run("partial gps is no fix", func(t *testing.T) {
		db.mu.Lock()
		db.values["/devices/esp32A/gps.json"] = `{"lat": 7.29}`
		db.mu.Unlock()
		if _, err := dev.Position(t.Context()); !errors.Is(err, control.ErrNoFix) {
			t.Errorf("expected ErrNoFix, got %v", err)
		}
	})

	t.Run("reads gps and heading", func(t *testing.T) {
		db.mu.Lock()
		db.values["/devices/esp32A/gps.json"] = `{"lat": 7.2936, "lng": "80.6428", "sats": 9}`
		db.values["/devices/esp32B/heading.json"] = `123.5`
		db.mu.Unlock()

		p, err := dev.Position(t.Context())
		if err != nil {
			t.Fatalf("position: %v", err)
		}
		if p != (direction.Point{Lat: 7.2936, Lng: 80.6428}) {
			t.Errorf("position = %v", p)
		}
		h, err := dev.Heading(t.Context())
		if err != nil || h != 123.5 {
			t.Errorf("heading = %v, %v", h, err)
		}
	})

	t.Run("publishes direction", func(t *testing.T) {
		if err := dev.Publish(t.Context(), direction.Left); err != nil {
			t.Fatalf("publish: %v", err)
		}
		db.mu.Lock()
		raw := db.values["/devices/esp32B/navigation_direction.json"]
		db.mu.Unlock()

		var rec firebase.DirectionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if rec.Direction != "left" || rec.Timestamp <= 0 {
			t.Errorf("record = %+v", rec)
		}
	})
}
