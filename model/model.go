// Package model defines the provider-polymorphic interface for language
// model backends. The pipeline depends only on "a stage produces messages
// given state and config"; which provider served the request is an adapter
// concern (see the anthropic and openai subpackages).
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by a stage.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial responses carry either a text delta or an unreassembled tool call
// fragment; the final response carries the complete assistant message with
// any assembled tool calls.
type Response struct {
	Partial       bool                   `json:"partial"`
	TextDelta     string                 `json:"text_delta,omitempty"`
	ToolCallDelta *core.ToolCallFragment `json:"tool_call_delta,omitempty"`
	Message       *core.Message          `json:"message,omitempty"`
	FinishReason  string                 `json:"finish_reason,omitempty"` // "stop", "tool_calls", ...
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "openai", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Both
// channels are closed when the call completes or the context is cancelled;
// the error channel is buffered size 1 and carries at most one terminal
// error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockReply scripts a canned completion for MockModel.
type MockReply struct {
	Text      string
	ToolCalls []core.ToolCall
	Err       error
}

// MockModel is a lightweight in-memory Model useful for tests and the mock
// provider. Replies are keyed by the last human message's text and consumed
// in registration order, with the final reply for a prompt repeating on
// later calls; unknown prompts get an echo response.
type MockModel struct {
	info    Info
	mu      sync.Mutex
	replies map[string][]MockReply
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:    Info{Name: name, Provider: "mock", SupportsTools: true},
		replies: make(map[string][]MockReply),
	}
}

// AddReply registers the next canned reply for an input prompt.
func (m *MockModel) AddReply(prompt string, reply MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[prompt] = append(m.replies[prompt], reply)
}

// nextReply consumes the reply queue for a prompt, keeping the last entry.
func (m *MockModel) nextReply(prompt string) (MockReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.replies[prompt]
	if len(queue) == 0 {
		return MockReply{}, false
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.replies[prompt] = queue[1:]
	}
	return reply, true
}

// Generate implements Model; when streaming it emits word-level text deltas
// and split tool call fragments before the final message.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		prompt := lastHumanText(req.Messages)
		reply, ok := m.nextReply(prompt)
		if !ok {
			reply = MockReply{Text: fmt.Sprintf("Mock response to: %s", prompt)}
		}
		if reply.Err != nil {
			errCh <- reply.Err
			return
		}

		if req.Stream {
			if !m.streamReply(ctx, reply, out, errCh) {
				return
			}
		}

		finishReason := "stop"
		if len(reply.ToolCalls) > 0 {
			finishReason = "tool_calls"
		}
		msg := core.Message{Kind: core.KindAI, Content: reply.Text, ToolCalls: reply.ToolCalls}
		out <- Response{Message: &msg, FinishReason: finishReason}
	}()

	return out, errCh
}

// streamReply emits partial responses; it returns false when cancelled.
func (m *MockModel) streamReply(ctx context.Context, reply MockReply, out chan<- Response, errCh chan<- error) bool {
	words := strings.SplitAfter(reply.Text, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return false
		case out <- Response{Partial: true, TextDelta: w}:
		}
	}
	for _, tc := range reply.ToolCalls {
		// Two fragments per call: header (id, name) then the argument body,
		// mirroring how providers stream tool calls.
		frags := []core.ToolCallFragment{
			{ID: tc.ID, Name: tc.Name},
			{Arguments: tc.Arguments},
		}
		for _, f := range frags {
			frag := f
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case out <- Response{Partial: true, ToolCallDelta: &frag}:
			}
		}
	}
	return true
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// lastHumanText returns the text of the most recent human message.
func lastHumanText(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == core.KindHuman {
			return msgs[i].Content
		}
	}
	return ""
}
