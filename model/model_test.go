package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

func collect(t *testing.T, out <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var responses []Response
	var err error
	for out != nil || errCh != nil {
		select {
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			responses = append(responses, r)
		case e, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			err = e
		}
	}
	return responses, err
}

func TestMockModel_EchoesUnknownPrompts(t *testing.T) {
	m := NewMockModel("test")

	out, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewHumanMessage("hello")},
	})
	responses, err := collect(t, out, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	final := responses[0]
	require.NotNil(t, final.Message)
	assert.Contains(t, final.Message.Content, "hello")
	assert.Equal(t, "stop", final.FinishReason)
}

func TestMockModel_ReplyQueue(t *testing.T) {
	m := NewMockModel("test")
	m.AddReply("hi", MockReply{Text: "first"})
	m.AddReply("hi", MockReply{Text: "second"})

	msgs := []core.Message{core.NewHumanMessage("hi")}
	want := []string{"first", "second", "second"} // last reply is sticky
	for i, expected := range want {
		out, errCh := m.Generate(context.Background(), Request{Messages: msgs})
		responses, err := collect(t, out, errCh)
		require.NoError(t, err, "call %d", i)
		require.Len(t, responses, 1, "call %d", i)
		assert.Equal(t, expected, responses[0].Message.Content, "call %d", i)
	}
}

func TestMockModel_StreamingDeltasAndFragments(t *testing.T) {
	m := NewMockModel("test")
	m.AddReply("compute", MockReply{
		Text: "let me check",
		ToolCalls: []core.ToolCall{
			{ID: "call_1", Name: "calculator", Arguments: `{"expression":"2+2"}`},
		},
	})

	out, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewHumanMessage("compute")},
		Stream:   true,
	})
	responses, err := collect(t, out, errCh)
	require.NoError(t, err)

	var text strings.Builder
	var fragments []core.ToolCallFragment
	var final *Response
	for i := range responses {
		r := responses[i]
		switch {
		case r.Partial && r.TextDelta != "":
			text.WriteString(r.TextDelta)
		case r.Partial && r.ToolCallDelta != nil:
			fragments = append(fragments, *r.ToolCallDelta)
		case !r.Partial:
			require.Nil(t, final, "exactly one final response expected")
			final = &r
		}
	}

	assert.Equal(t, "let me check", text.String())
	require.Len(t, fragments, 2)
	assert.Equal(t, "calculator", fragments[0].Name)
	assert.Equal(t, `{"expression":"2+2"}`, fragments[1].Arguments)

	require.NotNil(t, final)
	assert.Equal(t, "tool_calls", final.FinishReason)
	require.Len(t, final.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", final.Message.ToolCalls[0].ID)
}

func TestMockModel_ScriptedError(t *testing.T) {
	m := NewMockModel("test")
	m.AddReply("boom", MockReply{Err: assert.AnError})

	out, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewHumanMessage("boom")},
	})
	responses, err := collect(t, out, errCh)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, responses)
}

func TestLastHumanText(t *testing.T) {
	msgs := []core.Message{
		core.NewSystemMessage("rules"),
		core.NewHumanMessage("first"),
		core.NewAIMessage(core.StageRespond, "reply"),
		core.NewHumanMessage("second"),
		core.NewAIMessage(core.StageRespond, "another"),
	}
	assert.Equal(t, "second", lastHumanText(msgs))
	assert.Equal(t, "", lastHumanText(nil))
}
