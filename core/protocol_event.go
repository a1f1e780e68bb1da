package core

import "github.com/google/uuid"

// ProtocolEventType discriminates the client-visible event variants.
type ProtocolEventType string

const (
	// EventRunStart opens a branch's stream; always its first event.
	EventRunStart ProtocolEventType = "run_start"
	// EventChunk carries the full current text snapshot for (node, branch).
	// Clients replace, not append, displayed text per key.
	EventChunk ProtocolEventType = "chunk"
	// EventToolCallChunk forwards an unreassembled tool call fragment.
	EventToolCallChunk ProtocolEventType = "tool_call_chunk"
	// EventToolResult reports a completed tool invocation.
	EventToolResult ProtocolEventType = "tool_result"
	// EventError reports a recovered failure; always followed by EventEnd.
	EventError ProtocolEventType = "error"
	// EventEnd closes a branch's stream; always its last event.
	EventEnd ProtocolEventType = "end"
)

// ProtocolEvent is the external unit of the streaming protocol. Events are
// transient: ordering within one branch is the order of emission and must be
// preserved by the transport; no ordering is guaranteed across branches.
// Every event is independently JSON-serializable so any server-push
// transport can frame it without batching.
type ProtocolEvent struct {
	Type     ProtocolEventType `json:"type"`
	Node     string            `json:"node,omitempty"`
	BranchID string            `json:"branch_id,omitempty"`

	// run_start payload.
	Messages []Message  `json:"messages,omitempty"`
	Config   *RunConfig `json:"config,omitempty"`

	// chunk payload: the entire current text for (node, branch).
	Text string `json:"text,omitempty"`

	// tool_call_chunk payload.
	ToolCallID   string `json:"tool_call_id,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ArgumentText string `json:"argument_text,omitempty"`

	// tool_result payload.
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`

	// error payload.
	ErrorMessage string `json:"error_message,omitempty"`

	// end payload.
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// DedupKey identifies the text snapshot slot a chunk event updates. The
// translator never emits two consecutive chunks with identical text for the
// same key.
type DedupKey struct {
	Node     string
	BranchID string
}

// NewID generates a unique identifier for runs, checkpoints and tool calls.
func NewID() string { return uuid.NewString() }
