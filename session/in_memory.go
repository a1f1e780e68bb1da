package session

import (
	"sync"
	"time"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// InMemoryStore is a volatile Store implementation keeping sessions and
// checkpoints in process local maps. It is safe for concurrent access and
// best suited for tests or ephemeral demo servers. Each returned session is
// cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	checkpoints map[string]*Checkpoint
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string]*Session),
		checkpoints: make(map[string]*Checkpoint),
	}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).Clone(), nil
}

// AppendMessages adds messages to an existing or newly created session.
func (s *InMemoryStore) AppendMessages(sessionID string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sessionID)
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = time.Now()
	return nil
}

// SaveCheckpoint snapshots the given messages and returns the new id.
func (s *InMemoryStore) SaveCheckpoint(sessionID string, msgs []core.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &Checkpoint{
		ID:        core.NewID(),
		SessionID: sessionID,
		Messages:  append([]core.Message(nil), msgs...),
		CreatedAt: time.Now(),
	}
	s.checkpoints[cp.ID] = cp
	return cp.ID, nil
}

// GetCheckpoint returns a previously saved checkpoint.
func (s *InMemoryStore) GetCheckpoint(checkpointID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cp
	clone.Messages = append([]core.Message(nil), cp.Messages...)
	return &clone, nil
}

// getOrCreateLocked allocates and stores a new session if missing; caller
// must already hold the write lock.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *Session {
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	now := time.Now()
	sess := &Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	s.sessions[sessionID] = sess
	return sess
}
