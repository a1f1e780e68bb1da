// Package runner drives a single pipeline branch from its initial messages
// to a terminal event. It owns the per-branch loop: ask the router which
// stage comes next, execute it, feed the raw events through the translator,
// and deliver the resulting protocol events on one ordered channel.
//
// The runner guarantees the stream contract callers rely on: exactly one
// run_start first, exactly one end last, and any failure surfaced as an
// error event followed by end rather than a silently closed channel. Panics
// inside stage execution are recovered and reported the same way.
package runner
