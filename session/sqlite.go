package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	messages BLOB NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	messages BLOB NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_session
ON checkpoints(session_id);`

// SQLiteStoreConfig configures the SQLite session store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists sessions and checkpoints in SQLite. Message history
// is stored as a JSON blob per session; sessions are small conversation
// threads, so read-modify-write on append is acceptable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed session store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("session sqlite store: dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("session sqlite store open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session sqlite store pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session sqlite store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get returns an existing session or lazily creates an empty one.
func (s *SQLiteStore) Get(sessionID string) (*Session, error) {
	row := s.db.QueryRow(
		"SELECT messages, created_at, updated_at FROM sessions WHERE id = ?", sessionID)

	var blob []byte
	var createdAt, updatedAt string
	err := row.Scan(&blob, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.create(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session sqlite store get: %w", err)
	}

	sess := &Session{ID: sessionID}
	if err := json.Unmarshal(blob, &sess.Messages); err != nil {
		return nil, fmt.Errorf("session sqlite store decode %s: %w", sessionID, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return sess, nil
}

// AppendMessages adds messages to a session, creating it if needed.
func (s *SQLiteStore) AppendMessages(sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msgs...)

	blob, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("session sqlite store encode %s: %w", sessionID, err)
	}
	_, err = s.db.Exec(
		"UPDATE sessions SET messages = ?, updated_at = ? WHERE id = ?",
		blob, time.Now().UTC().Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return fmt.Errorf("session sqlite store append %s: %w", sessionID, err)
	}
	return nil
}

// SaveCheckpoint snapshots the given messages under a fresh id.
func (s *SQLiteStore) SaveCheckpoint(sessionID string, msgs []core.Message) (string, error) {
	blob, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("session sqlite store encode checkpoint: %w", err)
	}
	id := core.NewID()
	_, err = s.db.Exec(
		"INSERT INTO checkpoints (id, session_id, messages, created_at) VALUES (?, ?, ?, ?)",
		id, sessionID, blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("session sqlite store save checkpoint: %w", err)
	}
	return id, nil
}

// GetCheckpoint returns a previously saved checkpoint.
func (s *SQLiteStore) GetCheckpoint(checkpointID string) (*Checkpoint, error) {
	row := s.db.QueryRow(
		"SELECT session_id, messages, created_at FROM checkpoints WHERE id = ?", checkpointID)

	cp := &Checkpoint{ID: checkpointID}
	var blob []byte
	var createdAt string
	err := row.Scan(&cp.SessionID, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session sqlite store get checkpoint: %w", err)
	}
	if err := json.Unmarshal(blob, &cp.Messages); err != nil {
		return nil, fmt.Errorf("session sqlite store decode checkpoint %s: %w", checkpointID, err)
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return cp, nil
}

func (s *SQLiteStore) create(sessionID string) (*Session, error) {
	now := time.Now()
	ts := now.UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, messages, created_at, updated_at) VALUES (?, ?, ?, ?)",
		sessionID, []byte("[]"), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("session sqlite store create %s: %w", sessionID, err)
	}
	return &Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
}
