package narration_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-guide/pkg/narration"
	"github.com/teslashibe/go-guide/pkg/speech"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func start(t *testing.T, ch *narration.Channel) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// gate blocks each Speak until released.
type gate struct {
	mu      sync.Mutex
	release chan struct{}
}

func newGate() *gate { return &gate{release: make(chan struct{})} }

func (g *gate) speak(ctx context.Context, _ string, _ speech.Voice) error {
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.release)
}

func TestChannel_FIFOAndSerial(t *testing.T) {
	mock := speech.NewMock()
	mock.Latency = 5 * time.Millisecond
	ch := narration.New(mock, narration.WithGap(0))
	start(t, ch)

	want := []string{"one", "two", "three", "four"}
	for _, text := range want {
		if err := ch.Enqueue(text); err != nil {
			t.Fatalf("Enqueue(%q): %v", text, err)
		}
	}

	waitFor(t, "all spoken", func() bool { return ch.Stats().Spoken == uint64(len(want)) })

	if got := mock.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken order %v, want %v", got, want)
	}
	if peak := mock.PeakConcurrency(); peak != 1 {
		t.Errorf("peak concurrency %d, want 1", peak)
	}
}

func TestChannel_QueueFull(t *testing.T) {
	g := newGate()
	mock := speech.NewMock()
	mock.SpeakFunc = g.speak
	ch := narration.New(mock, narration.WithCapacity(2), narration.WithGap(0))
	start(t, ch)
	defer g.open()

	if err := ch.Enqueue("in flight"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "first utterance in flight", ch.Speaking)

	if err := ch.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := ch.Enqueue("b"); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}
	if err := ch.Enqueue("c"); !errors.Is(err, narration.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if ch.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", ch.Stats().Dropped)
	}
}

func TestChannel_ClearKeepsInFlight(t *testing.T) {
	g := newGate()
	mock := speech.NewMock()
	mock.SpeakFunc = g.speak
	ch := narration.New(mock, narration.WithGap(0))
	start(t, ch)

	ch.Enqueue("playing")
	waitFor(t, "first utterance in flight", ch.Speaking)
	ch.Enqueue("queued 1")
	ch.Enqueue("queued 2")

	if n := ch.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if ch.Pending() != 0 {
		t.Errorf("pending = %d after clear", ch.Pending())
	}
	if u, ok := ch.Current(); !ok || u.Text != "playing" {
		t.Errorf("in-flight utterance lost: %+v %v", u, ok)
	}

	ch.Enqueue("after clear")
	g.open()

	waitFor(t, "two spoken", func() bool { return ch.Stats().Spoken == 2 })
	if got := mock.Texts(); !reflect.DeepEqual(got, []string{"playing", "after clear"}) {
		t.Errorf("spoken %v", got)
	}
}

func TestChannel_Disabled(t *testing.T) {
	mock := speech.NewMock()
	ch := narration.New(mock)

	ch.SetEnabled(false)
	if err := ch.Enqueue("ignored"); err != nil {
		t.Errorf("disabled Enqueue returned %v", err)
	}
	if ch.Pending() != 0 {
		t.Error("disabled channel must not queue")
	}

	ch.SetEnabled(true)
	if err := ch.Enqueue("   "); err != nil || ch.Pending() != 0 {
		t.Errorf("blank text should be ignored, pending=%d err=%v", ch.Pending(), err)
	}
}

func TestChannel_SynthesisTimeoutAdvances(t *testing.T) {
	mock := speech.NewMock()
	mock.SpeakFunc = func(ctx context.Context, text string, _ speech.Voice) error {
		if text == "stuck" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	var mu sync.Mutex
	var results []error
	ch := narration.New(mock,
		narration.WithSynthesisTimeout(20*time.Millisecond),
		narration.WithGap(0),
	)
	ch.OnSpoken = func(u narration.Utterance, err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	}
	start(t, ch)

	ch.Enqueue("stuck")
	ch.Enqueue("next")

	waitFor(t, "both callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	})

	stats := ch.Stats()
	if stats.TimedOut != 1 {
		t.Errorf("timed out = %d, want 1", stats.TimedOut)
	}

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(results[0], narration.ErrSynthesisTimeout) || results[1] != nil {
		t.Errorf("unexpected results %v", results)
	}
}

func TestChannel_TimeoutWaitsForSlowCancel(t *testing.T) {
	var (
		mu       sync.Mutex
		finished []string
	)
	mock := speech.NewMock()
	mock.SpeakFunc = func(ctx context.Context, text string, _ speech.Voice) error {
		defer func() {
			mu.Lock()
			finished = append(finished, text)
			mu.Unlock()
		}()
		if text == "slow" {
			// notices cancellation late
			<-ctx.Done()
			time.Sleep(100 * time.Millisecond)
			return ctx.Err()
		}
		return nil
	}

	ch := narration.New(mock,
		narration.WithSynthesisTimeout(20*time.Millisecond),
		narration.WithGap(0),
	)
	start(t, ch)

	ch.Enqueue("slow")
	ch.Enqueue("next")

	waitFor(t, "both utterances", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 2
	})

	if peak := mock.PeakConcurrency(); peak != 1 {
		t.Errorf("utterances overlapped: peak = %d", peak)
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(finished, []string{"slow", "next"}) {
		t.Errorf("finished = %v", finished)
	}
	if st := ch.Stats(); st.TimedOut != 1 || st.Abandoned != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestChannel_FailureDoesNotStopConsumer(t *testing.T) {
	mock := speech.NewMock()
	mock.SpeakFunc = func(_ context.Context, text string, _ speech.Voice) error {
		if text == "bad" {
			return errors.New("device busy")
		}
		return nil
	}
	ch := narration.New(mock, narration.WithGap(0))
	start(t, ch)

	ch.Enqueue("bad")
	ch.Enqueue("good")

	waitFor(t, "good spoken", func() bool { return ch.Stats().Spoken == 1 })
	if ch.Stats().Failed != 1 {
		t.Errorf("failed = %d, want 1", ch.Stats().Failed)
	}
}
