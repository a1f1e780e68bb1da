// Package session persists conversation history and checkpoints. A Session
// is the durable thread a run appends to; a Checkpoint is an immutable
// snapshot of the thread at the moment a branch run ended, identified by the
// id surfaced on the run's terminal event.
//
// Two backends are provided: a volatile in-memory store for tests and demo
// servers, and a SQLite-backed store for single-node persistence. Additional
// backends can be added without changing callers; only the wiring layer
// decides which implementation to instantiate.
package session
