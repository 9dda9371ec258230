package observability

import (
	"sync"
	"testing"
	"time"
)

func TestEmitDeliversToSinks(t *testing.T) {
	var mu sync.Mutex
	var received []Event
	sink := SinkFunc(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	h := New(16, sink)
	h.Emit(NewRequestEvent("GET", "/x", "1.2.3.4", 200, time.Millisecond, "HIT", "human", false))
	h.Emit(NewRenderEvent("http://origin/x", 120, 200, 3, 10, nil))
	h.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d events, want 2", len(received))
	}
	if received[0].Kind() != "request" {
		t.Errorf("first event kind = %q, want request", received[0].Kind())
	}
	if received[1].Kind() != "render" {
		t.Errorf("second event kind = %q, want render", received[1].Kind())
	}
}

func TestEmitNeverBlocksOnFullChannel(t *testing.T) {
	// A slow sink keeps the drain loop from ever catching up, so
	// rapid-fire Emit calls must exercise the drop-oldest path.
	slow := SinkFunc(func(Event) { time.Sleep(20 * time.Millisecond) })
	h := New(1, slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			h.Emit(NewCacheEvent("/k", true, false))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked under channel pressure")
	}
	h.Close()

	if h.Dropped() == 0 {
		t.Error("expected some events to be dropped once the buffer filled")
	}
}
