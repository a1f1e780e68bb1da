package session

import (
	"errors"
	"time"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// ErrNotFound is returned when a session or checkpoint id is unknown.
var ErrNotFound = errors.New("session: not found")

// Session is a durable conversation thread. Runs started with a session id
// load its messages as their initial state and append what they produce.
type Session struct {
	ID        string         `json:"id"`
	Messages  []core.Message `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep enough copy that callers cannot mutate store state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append([]core.Message(nil), s.Messages...)
	return &cp
}

// Checkpoint is an immutable snapshot of a thread taken when a branch run
// ended. Its id is the one surfaced on the run's terminal event.
type Checkpoint struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Messages  []core.Message `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists sessions and checkpoints. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns an existing session or lazily creates an empty one.
	Get(sessionID string) (*Session, error)

	// AppendMessages adds messages to a session, creating it if needed.
	AppendMessages(sessionID string, msgs ...core.Message) error

	// SaveCheckpoint snapshots the given messages under a fresh checkpoint
	// id and returns that id.
	SaveCheckpoint(sessionID string, msgs []core.Message) (string, error)

	// GetCheckpoint returns a previously saved checkpoint.
	GetCheckpoint(checkpointID string) (*Checkpoint, error)
}
