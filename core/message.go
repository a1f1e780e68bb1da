package core

// MessageKind discriminates the closed set of conversation message variants.
type MessageKind string

const (
	// KindHuman is a user-authored message.
	KindHuman MessageKind = "human"
	// KindAI is a model-authored message, possibly carrying tool calls.
	KindAI MessageKind = "ai"
	// KindTool is the recorded outcome of a single tool invocation.
	KindTool MessageKind = "tool"
	// KindSystem is an instruction-level message never shown to end users.
	KindSystem MessageKind = "system"
)

// ToolCall describes a pending tool invocation requested by an ai message.
// Arguments is the serialized (JSON) argument payload exactly as produced by
// the model provider.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is the immutable unit of conversation state. A run's state is the
// ordered sequence of all messages since its start, including prior history
// when continuing a thread. Messages are append-only within a run; none of
// the fields may be mutated after construction.
type Message struct {
	Kind MessageKind `json:"kind"`
	// Content is the textual payload. For tool messages it is the formatted
	// tool output; formatting is part of the routing contract for the
	// decision tool.
	Content string `json:"content"`
	// OriginNode names the stage that produced the message. Empty for
	// human/system messages supplied by the caller.
	OriginNode string `json:"origin_node,omitempty"`
	// ToolCalls lists pending invocations on ai messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID back-references the invocation a tool message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// IsError marks a tool message whose invocation failed.
	IsError bool `json:"is_error,omitempty"`
}

// NewHumanMessage creates a user-authored text message.
func NewHumanMessage(content string) Message {
	return Message{Kind: KindHuman, Content: content}
}

// NewSystemMessage creates an instruction message.
func NewSystemMessage(content string) Message {
	return Message{Kind: KindSystem, Content: content}
}

// NewAIMessage creates a model-authored message attributed to the producing
// stage. Tool calls, if any, are attached in provider order.
func NewAIMessage(node, content string, calls ...ToolCall) Message {
	return Message{Kind: KindAI, Content: content, OriginNode: node, ToolCalls: calls}
}

// NewToolMessage records the outcome of the invocation identified by callID.
func NewToolMessage(node, callID, content string, isErr bool) Message {
	return Message{Kind: KindTool, Content: content, OriginNode: node, ToolCallID: callID, IsError: isErr}
}

// PendingToolCalls returns the tool calls carried by an ai message, in order.
// Non-ai messages have none.
func (m Message) PendingToolCalls() []ToolCall {
	if m.Kind != KindAI {
		return nil
	}
	return m.ToolCalls
}

// HasPendingToolCalls reports whether the message requests at least one tool
// invocation.
func (m Message) HasPendingToolCalls() bool { return len(m.PendingToolCalls()) > 0 }

// AnswersCall reports whether a tool message answers the given call id.
func (m Message) AnswersCall(callID string) bool {
	return m.Kind == KindTool && callID != "" && m.ToolCallID == callID
}

// IssuingCall locates, searching backwards through history, the ai message
// and tool call that a tool message answers. It returns the issuing message,
// the matched call and true on success. The second return is the zero
// ToolCall when not found.
func IssuingCall(history []Message, toolMsg Message) (Message, ToolCall, bool) {
	if toolMsg.Kind != KindTool || toolMsg.ToolCallID == "" {
		return Message{}, ToolCall{}, false
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind != KindAI {
			continue
		}
		for _, tc := range history[i].ToolCalls {
			if tc.ID == toolMsg.ToolCallID {
				return history[i], tc, true
			}
		}
	}
	return Message{}, ToolCall{}, false
}
