package core

import "context"

// RawEventKind discriminates the low-level execution events produced by a
// stage executor.
type RawEventKind string

const (
	// RawTextIncrement carries the stage's accumulated text snapshot.
	RawTextIncrement RawEventKind = "text_increment"
	// RawToolCallFragment carries a partial tool call exactly as streamed by
	// the provider; fragments are never reassembled server-side.
	RawToolCallFragment RawEventKind = "tool_call_fragment"
	// RawToolResult carries the outcome of one tool invocation.
	RawToolResult RawEventKind = "tool_result"
	// RawStageBoundary marks entry into a stage, or — when Messages is
	// non-empty — the stage's completion. The terminal boundary event of an
	// Execute call carries the stage's newly produced messages.
	RawStageBoundary RawEventKind = "stage_boundary"
)

// ToolCallFragment is a partial tool call streamed by a model provider. Any
// subset of the fields may be present in a given fragment.
type ToolCallFragment struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult is the raw outcome of a tool invocation prior to protocol
// formatting.
type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// RawEvent is the unit emitted by a StageExecutor. RawEvents are consumed
// once by the event translator and never persisted.
type RawEvent struct {
	// Stage names the stage this event belongs to; it becomes the node label
	// on derived protocol events.
	Stage string
	Kind  RawEventKind
	// Text is the full accumulated snapshot for text_increment events, not a
	// delta.
	Text     string
	Fragment *ToolCallFragment
	Result   *ToolResult
	// Messages carries the stage's newly produced messages on the terminal
	// stage_boundary event.
	Messages []Message
}

// NewStageEnterEvent marks entry into a stage.
func NewStageEnterEvent(stage string) RawEvent {
	return RawEvent{Stage: stage, Kind: RawStageBoundary}
}

// NewStageCompleteEvent marks stage completion carrying the produced messages.
func NewStageCompleteEvent(stage string, msgs ...Message) RawEvent {
	return RawEvent{Stage: stage, Kind: RawStageBoundary, Messages: msgs}
}

// NewTextIncrementEvent carries the stage's current full text snapshot.
func NewTextIncrementEvent(stage, snapshot string) RawEvent {
	return RawEvent{Stage: stage, Kind: RawTextIncrement, Text: snapshot}
}

// NewToolCallFragmentEvent forwards a partial tool call.
func NewToolCallFragmentEvent(stage string, frag ToolCallFragment) RawEvent {
	return RawEvent{Stage: stage, Kind: RawToolCallFragment, Fragment: &frag}
}

// NewToolResultEvent reports a completed tool invocation.
func NewToolResultEvent(stage string, res ToolResult) RawEvent {
	return RawEvent{Stage: stage, Kind: RawToolResult, Result: &res}
}

// IsTerminal reports whether this is the final event of an Execute call.
func (e RawEvent) IsTerminal() bool {
	return e.Kind == RawStageBoundary && len(e.Messages) > 0
}

// StageExecutor runs a single stage against accumulated conversation state.
//
// Execute returns a raw event channel and a terminal error channel, both
// closed when the invocation completes or the context is cancelled. The
// final raw event is a stage_boundary carrying the stage's newly produced
// messages; an error on the error channel means the stage failed and no
// terminal boundary event should be expected. Implementations must respect
// context cancellation at their await points.
type StageExecutor interface {
	Execute(ctx context.Context, stage string, state []Message, cfg RunConfig) (<-chan RawEvent, <-chan error)
}
