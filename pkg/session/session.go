// Package session tracks per-connection state for the voice pipeline: the
// bounded audio buffer, the recording and processing flags, and the idle
// timer that reclaims abandoned connections.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/printworks/voicedesk/internal/log"
)

// DefaultMaxAudioChunks bounds the audio buffer per session. When full,
// the oldest chunk is evicted so the newest audio always survives.
const DefaultMaxAudioChunks = 1000

// ErrClosed is returned when writing to a session whose transport is gone.
var ErrClosed = errors.New("session: closed")

// Conn is the transport a session writes to. Satisfied by
// *websocket.Conn from gofiber/websocket.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is the state for one connected client.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn    Conn
	writeMu sync.Mutex
	logger  *slog.Logger

	mu           sync.Mutex
	audio        [][]byte
	audioBytes   int
	maxChunks    int
	recording    bool
	processing   bool
	dropped      int
	lastActivity time.Time

	idleMu    sync.Mutex
	idleTimer *time.Timer

	closeOnce sync.Once
	closed    bool
}

// New creates a session wrapping the given transport. maxChunks <= 0 uses
// DefaultMaxAudioChunks.
func New(conn Conn, maxChunks int) *Session {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxAudioChunks
	}
	id := uuid.NewString()
	return &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		conn:         conn,
		logger:       log.With("component", "session", "session_id", id),
		maxChunks:    maxChunks,
		lastActivity: time.Now(),
	}
}

// SendJSON writes a JSON frame to the client. Concurrent writers are
// serialized; websocket connections do not tolerate interleaved writes.
func (s *Session) SendJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.conn.WriteJSON(v)
}

// AppendAudio stores one audio chunk. Chunks arriving while a turn is
// being processed are dropped. When the buffer is full the oldest chunk is
// evicted to make room.
func (s *Session) AppendAudio(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()

	if s.processing {
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			s.logger.Warn("dropping audio received during processing", "dropped", s.dropped)
		}
		return
	}

	if len(s.audio) >= s.maxChunks {
		s.audioBytes -= len(s.audio[0])
		s.audio = s.audio[1:]
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	s.audioBytes += len(buf)
}

// DrainAudio returns the buffered audio as a single byte slice in arrival
// order and clears the buffer.
func (s *Session) DrainAudio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.audio) == 0 {
		return nil
	}
	out := make([]byte, 0, s.audioBytes)
	for _, chunk := range s.audio {
		out = append(out, chunk...)
	}
	s.audio = nil
	s.audioBytes = 0
	return out
}

// ClearAudio discards all buffered audio.
func (s *Session) ClearAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = nil
	s.audioBytes = 0
}

// AudioChunks reports how many chunks are buffered.
func (s *Session) AudioChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// SetRecording flips the recording flag.
func (s *Session) SetRecording(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = on
	s.lastActivity = time.Now()
}

// Recording reports whether the client is currently streaming audio.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// BeginProcessing claims the single processing slot. It returns false when
// a turn is already in flight, which callers must treat as "ignore this
// request", not an error.
func (s *Session) BeginProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	s.lastActivity = time.Now()
	return true
}

// EndProcessing releases the processing slot.
func (s *Session) EndProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.dropped = 0
	s.lastActivity = time.Now()
}

// Processing reports whether a turn is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// LastActivity returns the time of the most recent client interaction.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ArmIdle (re)starts the idle timer. When the timer fires without another
// ArmIdle call, onExpire runs once. Arming with d <= 0 only cancels.
func (s *Session) ArmIdle(d time.Duration, onExpire func()) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if d <= 0 || onExpire == nil {
		return
	}
	s.idleTimer = time.AfterFunc(d, onExpire)
}

// Close tears the session down exactly once: the idle timer is stopped,
// the buffer dropped, and the transport closed. Safe to call multiple
// times and from the idle timer itself.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.ArmIdle(0, nil)

		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()

		s.ClearAudio()
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("transport close", "error", err)
		}
		s.logger.Info("session closed")
	})
}
