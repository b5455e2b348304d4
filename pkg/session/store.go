package session

import (
	"sync"
	"time"
)

// Store is a concurrency-safe registry of live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Add registers a session.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Remove unregisters a session by ID. It does not close the session.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Len reports how many sessions are live.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Info is a read-only snapshot of one session for the dashboard.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Recording    bool      `json:"recording"`
	Processing   bool      `json:"processing"`
	AudioChunks  int       `json:"audio_chunks"`
}

// Snapshot returns dashboard info for every live session.
func (st *Store) Snapshot() []Info {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Info, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, Info{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity(),
			Recording:    s.Recording(),
			Processing:   s.Processing(),
			AudioChunks:  s.AudioChunks(),
		})
	}
	return out
}
