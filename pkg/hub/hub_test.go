package hub

import (
	"testing"
	"time"
)

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := New("test")
	go h.Run()

	healthy := &Client{hub: h, send: make(chan []byte, 8)}
	// An unbuffered channel with no reader models a stuck subscriber.
	slow := &Client{hub: h, send: make(chan []byte)}
	h.register <- healthy
	h.register <- slow
	waitForCount(t, h, 2)

	// Hammer the read path while broadcasts mutate the client set.
	counting := make(chan struct{})
	go func() {
		defer close(counting)
		for i := 0; i < 200; i++ {
			h.ClientCount()
		}
	}()

	h.Publish(NewExchange("s1", "fifty tees", "coming right up"))

	// The healthy subscriber gets the frame; the stuck one is dropped.
	select {
	case data := <-healthy.send:
		if len(data) == 0 {
			t.Error("empty broadcast frame")
		}
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber never received the broadcast")
	}
	waitForCount(t, h, 1)

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("dropped subscriber's channel not closed")
		}
	case <-time.After(time.Second):
		t.Fatal("dropped subscriber's channel still open")
	}

	<-counting
}

func TestHubUnregister(t *testing.T) {
	h := New("test")
	go h.Run()

	client := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- client
	waitForCount(t, h, 1)

	h.unregister <- client
	waitForCount(t, h, 0)

	if _, ok := <-client.send; ok {
		t.Error("unregistered client's channel not closed")
	}

	// Unregistering twice must not close the channel again.
	h.unregister <- client
	waitForCount(t, h, 0)
}

func TestHubPublishDropsWhenQueueFull(t *testing.T) {
	h := New("test")
	// Run is intentionally not started; fill the queue to the brim.
	for i := 0; i < cap(h.broadcast); i++ {
		h.Publish(NewMetrics(map[string]int{"i": i}))
	}
	// One more must drop instead of blocking the caller.
	done := make(chan struct{})
	go func() {
		h.Publish(NewMetrics(nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full broadcast queue")
	}
}
