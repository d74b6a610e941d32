package session

import (
	"sync"

	"github.com/google/uuid"
)

// Exchange is one completed user/assistant turn pair.
type Exchange struct {
	User      string
	Assistant string
}

// session holds a bounded rolling window of exchanges. The mutex serializes
// turns on a single conversation; distinct sessions proceed independently.
type session struct {
	mu      sync.Mutex
	turns   []Exchange
	maxSize int
}

func (s *session) append(e Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, e)
	if len(s.turns) > s.maxSize {
		s.turns = s.turns[len(s.turns)-s.maxSize:]
	}
}

func (s *session) history() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.turns))
	copy(out, s.turns)
	return out
}

// Store keeps per-conversation histories in memory, keyed by opaque ids.
// Nothing survives a process restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int
}

// NewStore caps every session at the most recent maxTurns exchanges.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = 2
	}
	return &Store{sessions: make(map[string]*session), maxTurns: maxTurns}
}

// GetOrCreate returns id if that session exists, otherwise registers it (or
// mints a fresh uuid when id is empty).
func (s *Store) GetOrCreate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &session{maxSize: s.maxTurns}
	}
	return id
}

// Append records one completed turn pair, evicting the oldest pair once the
// cap is exceeded.
func (s *Store) Append(id, userMsg, assistantMsg string) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		id = s.GetOrCreate(id)
		s.mu.RLock()
		sess = s.sessions[id]
		s.mu.RUnlock()
	}
	sess.append(Exchange{User: userMsg, Assistant: assistantMsg})
}

// History returns the retained exchanges, oldest first.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return sess.history()
}

// Reset forgets a session. Unknown ids are a no-op.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
