package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

func TestRenderer_PrintsSnapshotSuffixes(t *testing.T) {
	var buf strings.Builder
	r := newRenderer(&buf)

	r.render(core.ProtocolEvent{Type: core.EventRunStart})
	r.render(core.ProtocolEvent{Type: core.EventChunk, Node: core.StageRespond, Text: "Hello"})
	r.render(core.ProtocolEvent{Type: core.EventChunk, Node: core.StageRespond, Text: "Hello there"})
	r.render(core.ProtocolEvent{Type: core.EventEnd, Node: core.StageRespond, CheckpointID: "cp-1"})

	out := buf.String()
	// Growing snapshots must print once, not repeat the prefix.
	assert.Equal(t, 1, strings.Count(out, "Hello"))
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "cp-1")
}

func TestRenderer_SeparatesNodes(t *testing.T) {
	var buf strings.Builder
	r := newRenderer(&buf)

	r.render(core.ProtocolEvent{Type: core.EventChunk, Node: core.StageGate, BranchID: "a", Text: "checking"})
	r.render(core.ProtocolEvent{Type: core.EventChunk, Node: core.StageRespond, BranchID: "a", Text: "answer"})

	out := buf.String()
	assert.Contains(t, out, "[a/"+core.StageGate+"]")
	assert.Contains(t, out, "[a/"+core.StageRespond+"]")
	// Switching nodes must not mix streams on one line.
	gateLine := out[:strings.Index(out, "\n")]
	assert.NotContains(t, gateLine, "answer")
}

func TestRenderer_ToolCallAndResult(t *testing.T) {
	var buf strings.Builder
	r := newRenderer(&buf)

	r.render(core.ProtocolEvent{Type: core.EventToolCallChunk, Node: core.StageRespond, ToolName: "calculator"})
	r.render(core.ProtocolEvent{Type: core.EventToolCallChunk, Node: core.StageRespond, ArgumentText: `{"expression":"2+2"}`})
	r.render(core.ProtocolEvent{Type: core.EventToolResult, Node: core.StageTools, ToolName: "calculator", Content: "4"})

	out := buf.String()
	assert.Contains(t, out, "-> calculator")
	assert.Contains(t, out, `{"expression":"2+2"}`)
	assert.Contains(t, out, "<- calculator [ok]: 4")
}
