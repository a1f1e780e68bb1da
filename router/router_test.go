package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

func gateDecisionCall(id string) core.ToolCall {
	return core.ToolCall{ID: id, Name: core.DecisionToolName, Arguments: `{"allow":true}`}
}

func TestRouter_InitialState(t *testing.T) {
	assert.Equal(t, StateGate, New(core.RunConfig{}).State())
	assert.Equal(t, StateRespond, New(core.RunConfig{SkipGate: true}).State())
}

func TestRouter_GateWithoutToolCalls_GoesStraightToRespond(t *testing.T) {
	r := New(core.RunConfig{})
	history := []core.Message{
		core.NewHumanMessage("hi"),
		core.NewAIMessage(core.StageGate, "no objection"),
	}

	next, err := r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateRespond, next)

	// Responder answers without tools; run ends after exactly two visits.
	history = append(history, core.NewAIMessage(core.StageRespond, "answer"))
	next, err = r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, next)
}

func TestRouter_GateDecisionAllowed(t *testing.T) {
	r := New(core.RunConfig{})
	history := []core.Message{
		core.NewHumanMessage("hi"),
		core.NewAIMessage(core.StageGate, "", gateDecisionCall("c1")),
	}

	next, err := r.Next(history)
	require.NoError(t, err)
	require.Equal(t, StateToolExec, next)

	history = append(history, core.NewToolMessage(core.StageTools, "c1", "✅ Superego allowed the prompt.", false))
	next, err = r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateRespond, next)

	history = append(history, core.NewAIMessage(core.StageRespond, "answer"))
	next, err = r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, next)
}

func TestRouter_GateDecisionBlocked(t *testing.T) {
	r := New(core.RunConfig{})
	history := []core.Message{
		core.NewHumanMessage("hi"),
		core.NewAIMessage(core.StageGate, "", gateDecisionCall("c1")),
	}

	_, err := r.Next(history)
	require.NoError(t, err)

	history = append(history, core.NewToolMessage(core.StageTools, "c1", "❌ Superego blocked the prompt.", false))
	next, err := r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, next, "blocked prompt must never reach the responder")
}

func TestRouter_NonDecisionGateTool_ReturnsToRespond(t *testing.T) {
	r := New(core.RunConfig{})
	history := []core.Message{
		core.NewAIMessage(core.StageGate, "", core.ToolCall{ID: "c1", Name: "lookup"}),
	}
	_, err := r.Next(history)
	require.NoError(t, err)

	history = append(history, core.NewToolMessage(core.StageTools, "c1", "result", false))
	next, err := r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateRespond, next)
}

func TestRouter_ResponderToolLoop(t *testing.T) {
	r := New(core.RunConfig{SkipGate: true})
	history := []core.Message{
		core.NewAIMessage(core.StageRespond, "", core.ToolCall{ID: "c2", Name: "calculator", Arguments: `{"expression":"2+2"}`}),
	}

	next, err := r.Next(history)
	require.NoError(t, err)
	require.Equal(t, StateToolExec, next)

	// Responder-issued decision-named calls still have no gate semantics.
	history = append(history, core.NewToolMessage(core.StageTools, "c2", "tool failed: division by zero", true))
	next, err = r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateRespond, next, "erroring tool results route identically to successful ones")
}

func TestRouter_ResponderDecisionCall_HasNoGateSemantics(t *testing.T) {
	r := New(core.RunConfig{SkipGate: true})
	history := []core.Message{
		core.NewAIMessage(core.StageRespond, "", core.ToolCall{ID: "c3", Name: core.DecisionToolName}),
	}
	_, err := r.Next(history)
	require.NoError(t, err)

	history = append(history, core.NewToolMessage(core.StageTools, "c3", "❌ Superego blocked the prompt.", false))
	next, err := r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateRespond, next)
}

func TestRouter_MalformedAttribution_TerminatesDefensively(t *testing.T) {
	r := New(core.RunConfig{})
	history := []core.Message{
		core.NewAIMessage(core.StageGate, "", gateDecisionCall("c1")),
	}
	_, err := r.Next(history)
	require.NoError(t, err)

	// Tool message referencing a call id that appears nowhere in history.
	history = append(history, core.NewToolMessage(core.StageTools, "unknown", "?", false))
	next, err := r.Next(history)
	assert.True(t, errors.Is(err, ErrAmbiguousRouting))
	assert.Equal(t, StateTerminated, next)
}

func TestRouter_EmptyHistory(t *testing.T) {
	r := New(core.RunConfig{})
	next, err := r.Next(nil)
	assert.True(t, errors.Is(err, ErrAmbiguousRouting))
	assert.Equal(t, StateTerminated, next)
}

func TestRouter_TerminatedIsSticky(t *testing.T) {
	r := New(core.RunConfig{SkipGate: true})
	history := []core.Message{core.NewAIMessage(core.StageRespond, "done")}
	next, err := r.Next(history)
	require.NoError(t, err)
	require.Equal(t, StateTerminated, next)

	next, err = r.Next(history)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, next)
}
