package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

func TestTranslator_StartOnce(t *testing.T) {
	tr := New("b1")
	initial := []core.Message{core.NewHumanMessage("hi")}
	cfg := core.RunConfig{BranchID: "b1", Provider: "mock"}

	ev := tr.Start(initial, cfg)
	require.NotNil(t, ev)
	assert.Equal(t, core.EventRunStart, ev.Type)
	assert.Equal(t, "b1", ev.BranchID)
	assert.Equal(t, initial, ev.Messages)
	require.NotNil(t, ev.Config)
	assert.Equal(t, "mock", ev.Config.Provider)

	assert.Nil(t, tr.Start(initial, cfg), "second run_start must be suppressed")
}

func TestTranslator_StageBoundaryUpdatesNodeSilently(t *testing.T) {
	tr := New("")
	assert.Nil(t, tr.Translate(core.NewStageEnterEvent(core.StageGate)))
	assert.Equal(t, core.StageGate, tr.Node())

	assert.Nil(t, tr.Translate(core.NewStageCompleteEvent(core.StageGate, core.NewAIMessage(core.StageGate, "ok"))))
}

func TestTranslator_ChunkDedup(t *testing.T) {
	tr := New("b1")
	tr.Translate(core.NewStageEnterEvent(core.StageGate))

	first := tr.Translate(core.NewTextIncrementEvent(core.StageGate, "Hel"))
	require.NotNil(t, first)
	assert.Equal(t, core.EventChunk, first.Type)
	assert.Equal(t, "Hel", first.Text)

	// Identical consecutive snapshot for the same key is suppressed.
	assert.Nil(t, tr.Translate(core.NewTextIncrementEvent(core.StageGate, "Hel")))

	second := tr.Translate(core.NewTextIncrementEvent(core.StageGate, "Hello"))
	require.NotNil(t, second)
	assert.Equal(t, "Hello", second.Text, "chunks carry the full snapshot, not the delta")

	// A different node is a different dedup key.
	other := tr.Translate(core.NewTextIncrementEvent(core.StageRespond, "Hello"))
	require.NotNil(t, other)
	assert.Equal(t, core.StageRespond, other.Node)
}

func TestTranslator_EmptyTextSuppressed(t *testing.T) {
	tr := New("")
	assert.Nil(t, tr.Translate(core.NewTextIncrementEvent(core.StageGate, "")))
}

func TestTranslator_ToolCallFragmentForwardedUnreassembled(t *testing.T) {
	tr := New("b2")
	tr.Translate(core.NewStageEnterEvent(core.StageGate))

	frag := tr.Translate(core.NewToolCallFragmentEvent(core.StageGate, core.ToolCallFragment{
		ID:        "c1",
		Name:      core.DecisionToolName,
		Arguments: `{"allo`,
	}))
	require.NotNil(t, frag)
	assert.Equal(t, core.EventToolCallChunk, frag.Type)
	assert.Equal(t, "c1", frag.ToolCallID)
	assert.Equal(t, `{"allo`, frag.ArgumentText, "fragments are never accumulated server-side")

	// Fragments carrying only an arguments tail still forward immediately.
	tail := tr.Translate(core.NewToolCallFragmentEvent(core.StageGate, core.ToolCallFragment{Arguments: `w":true}`}))
	require.NotNil(t, tail)
	assert.Empty(t, tail.ToolCallID)
}

func TestTranslator_ToolResult(t *testing.T) {
	tr := New("b1")
	tr.Translate(core.NewStageEnterEvent(core.StageTools))

	res := tr.Translate(core.NewToolResultEvent(core.StageTools, core.ToolResult{
		CallID:  "c9",
		Name:    "calculator",
		Content: "tool failed: division by zero",
		IsError: true,
	}))
	require.NotNil(t, res)
	assert.Equal(t, core.EventToolResult, res.Type)
	assert.Equal(t, "c9", res.ToolCallID)
	assert.True(t, res.IsError)
}

func TestTranslator_EndCarriesLastNodeAndCheckpoint(t *testing.T) {
	tr := New("b1")
	tr.Translate(core.NewStageEnterEvent(core.StageRespond))

	end := tr.End("ckpt-42")
	require.NotNil(t, end)
	assert.Equal(t, core.EventEnd, end.Type)
	assert.Equal(t, core.StageRespond, end.Node)
	assert.Equal(t, "ckpt-42", end.CheckpointID)

	assert.Nil(t, tr.End("ckpt-42"), "second end must be suppressed")
	assert.Nil(t, tr.Fail(errors.New("late")), "fail after end must be suppressed")
}

func TestTranslator_FailBeforeAnyStage(t *testing.T) {
	tr := New("b1")
	seq := tr.Fail(errors.New("no executor configured"))
	require.Len(t, seq, 2)
	assert.Equal(t, core.EventError, seq[0].Type)
	assert.Equal(t, core.NodeSetup, seq[0].Node)
	assert.Equal(t, "no executor configured", seq[0].ErrorMessage)
	assert.Equal(t, core.EventEnd, seq[1].Type)
	assert.Equal(t, core.NodeError, seq[1].Node)
}

func TestTranslator_FailMidRun(t *testing.T) {
	tr := New("")
	tr.Translate(core.NewStageEnterEvent(core.StageGate))

	seq := tr.Fail(errors.New("provider exploded"))
	require.Len(t, seq, 2)
	assert.Equal(t, core.StageGate, seq[0].Node)
	assert.Nil(t, tr.End(""), "end after fail must be suppressed")
}
