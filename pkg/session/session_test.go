package session

import (
	"sync"
	"testing"
	"time"
)

// fakeConn records writes and closes for verification.
type fakeConn struct {
	mu     sync.Mutex
	writes []interface{}
	closes int
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func TestAudioBuffer(t *testing.T) {
	t.Run("accumulates in order", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		s.AppendAudio([]byte{1, 2})
		s.AppendAudio([]byte{3})
		s.AppendAudio([]byte{4, 5})

		got := s.DrainAudio()
		want := []byte{1, 2, 3, 4, 5}
		if string(got) != string(want) {
			t.Errorf("DrainAudio() = %v, want %v", got, want)
		}
		if s.AudioChunks() != 0 {
			t.Errorf("buffer not cleared after drain: %d chunks", s.AudioChunks())
		}
	})

	t.Run("evicts oldest at capacity", func(t *testing.T) {
		s := New(&fakeConn{}, 3)
		for i := byte(0); i < 5; i++ {
			s.AppendAudio([]byte{i})
		}

		if got := s.AudioChunks(); got != 3 {
			t.Fatalf("AudioChunks() = %d, want 3", got)
		}
		got := s.DrainAudio()
		want := []byte{2, 3, 4}
		if string(got) != string(want) {
			t.Errorf("DrainAudio() = %v, want newest chunks %v", got, want)
		}
	})

	t.Run("copies the chunk", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		chunk := []byte{1, 2, 3}
		s.AppendAudio(chunk)
		chunk[0] = 99

		if got := s.DrainAudio(); got[0] != 1 {
			t.Errorf("buffered audio aliases caller slice: got %v", got)
		}
	})

	t.Run("drops audio while processing", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		if !s.BeginProcessing() {
			t.Fatal("BeginProcessing() = false on idle session")
		}
		s.AppendAudio([]byte{1})
		if got := s.AudioChunks(); got != 0 {
			t.Errorf("audio buffered during processing: %d chunks", got)
		}
		s.EndProcessing()
		s.AppendAudio([]byte{2})
		if got := s.AudioChunks(); got != 1 {
			t.Errorf("audio rejected after processing ended: %d chunks", got)
		}
	})

	t.Run("drain of empty buffer returns nil", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		if got := s.DrainAudio(); got != nil {
			t.Errorf("DrainAudio() = %v, want nil", got)
		}
	})
}

func TestProcessingSlot(t *testing.T) {
	s := New(&fakeConn{}, 10)

	if !s.BeginProcessing() {
		t.Fatal("first BeginProcessing() = false")
	}
	if s.BeginProcessing() {
		t.Error("second BeginProcessing() = true, want mutual exclusion")
	}
	s.EndProcessing()
	if !s.BeginProcessing() {
		t.Error("BeginProcessing() after release = false")
	}
}

func TestIdleTimer(t *testing.T) {
	t.Run("fires after the deadline", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		fired := make(chan struct{})
		s.ArmIdle(20*time.Millisecond, func() { close(fired) })

		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("idle timer never fired")
		}
	})

	t.Run("rearm resets the deadline", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		var mu sync.Mutex
		fired := 0
		onExpire := func() {
			mu.Lock()
			fired++
			mu.Unlock()
		}

		s.ArmIdle(50*time.Millisecond, onExpire)
		time.Sleep(25 * time.Millisecond)
		s.ArmIdle(50*time.Millisecond, onExpire)
		time.Sleep(35 * time.Millisecond)

		mu.Lock()
		got := fired
		mu.Unlock()
		if got != 0 {
			t.Errorf("timer fired %d time(s) before the rearmed deadline", got)
		}
	})

	t.Run("close cancels the timer", func(t *testing.T) {
		s := New(&fakeConn{}, 10)
		s.ArmIdle(20*time.Millisecond, func() {
			t.Error("idle timer fired after Close")
		})
		s.Close()
		time.Sleep(40 * time.Millisecond)
	})
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	s := New(conn, 10)
	s.AppendAudio([]byte{1})

	s.Close()
	s.Close()
	s.Close()

	if got := conn.closeCount(); got != 1 {
		t.Errorf("transport closed %d times, want exactly once", got)
	}
	if s.AudioChunks() != 0 {
		t.Error("audio buffer survived Close")
	}
	if err := s.SendJSON(map[string]string{"type": "test"}); err != ErrClosed {
		t.Errorf("SendJSON after Close = %v, want ErrClosed", err)
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := New(&fakeConn{}, 10)
	b := New(&fakeConn{}, 10)

	st.Add(a)
	st.Add(b)
	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}

	got, ok := st.Get(a.ID)
	if !ok || got != a {
		t.Errorf("Get(%q) = %v, %v", a.ID, got, ok)
	}

	st.Remove(a.ID)
	if _, ok := st.Get(a.ID); ok {
		t.Error("session still present after Remove")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}

	snap := st.Snapshot()
	if len(snap) != 1 || snap[0].ID != b.ID {
		t.Errorf("Snapshot() = %+v, want one entry for %s", snap, b.ID)
	}
}
