package hub_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-guide/pkg/hub"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	h := hub.New("status", nil)
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/status", h.Handler())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.Publish(hub.EventUtterance, map[string]string{"text": "Head north."}); err != nil {
		t.Fatal(err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev hub.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != hub.EventUtterance || string(ev.Data) != `{"text":"Head north."}` {
		t.Errorf("unexpected event %s", data)
	}

	ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHub_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	h := hub.New("status", nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	waitFor(t, h.IsRunning)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if h.IsRunning() {
		t.Error("hub should report stopped")
	}
	if c := hub.NewClient(h, nil); c != nil {
		t.Error("NewClient on a stopped hub should return nil")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := hub.New("idle", nil)
	for i := 0; i < 300; i++ {
		h.Broadcast([]byte(`{}`))
	}
	if h.Dropped() != 300-256 {
		t.Errorf("dropped = %d, want %d", h.Dropped(), 300-256)
	}
}
