package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/model"
	"github.com/Superego-Agent/superego-lgdemo-sub000/session"
	"github.com/Superego-Agent/superego-lgdemo-sub000/stage"
	"github.com/Superego-Agent/superego-lgdemo-sub000/tool"
)

// scriptedExecutor replays canned raw event sequences per stage, or fails
// outright.
type scriptedExecutor struct {
	events map[string][]core.RawEvent
	errs   map[string]error
	panics map[string]bool
}

func (s *scriptedExecutor) Execute(ctx context.Context, st string, state []core.Message, cfg core.RunConfig) (<-chan core.RawEvent, <-chan error) {
	if s.panics[st] {
		// Panic on the caller's goroutine, as a buggy in-process executor
		// would.
		panic("scripted panic in " + st)
	}
	out := make(chan core.RawEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		if err := s.errs[st]; err != nil {
			errCh <- err
			return
		}
		for _, ev := range s.events[st] {
			out <- ev
		}
	}()
	return out, errCh
}

func gatedMock() *stage.Executor {
	mock := model.NewMockModel("mock")
	// First call answers the gate, second answers as the responder.
	mock.AddReply("what is 2+2?", model.MockReply{
		Text: "Reviewing. ",
		ToolCalls: []core.ToolCall{
			{ID: "d1", Name: core.DecisionToolName, Arguments: `{"allow": true}`},
		},
	})
	mock.AddReply("what is 2+2?", model.MockReply{Text: "2+2 equals 4."})
	resolve := func(core.RunConfig) (model.Model, error) { return mock, nil }
	return stage.New(resolve, tool.NewRegistry(tool.NewCalculatorTool()))
}

func collect(t *testing.T, ch <-chan core.ProtocolEvent) []core.ProtocolEvent {
	t.Helper()
	var out []core.ProtocolEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestRunGatedAllowedToCompletion(t *testing.T) {
	store := session.NewInMemoryStore()
	r := New(gatedMock(), core.RunConfig{Provider: "mock"},
		WithSession(store, "s1"))

	initial := []core.Message{core.NewHumanMessage("what is 2+2?")}
	events := collect(t, r.Run(context.Background(), initial))
	require.NotEmpty(t, events)

	first, last := events[0], events[len(events)-1]
	assert.Equal(t, core.EventRunStart, first.Type)
	require.NotNil(t, first.Config)
	assert.Equal(t, initial, first.Messages)
	assert.Equal(t, core.EventEnd, last.Type)
	assert.NotEmpty(t, last.CheckpointID)

	counts := map[core.ProtocolEventType]int{}
	for _, ev := range events {
		counts[ev.Type]++
	}
	assert.Equal(t, 1, counts[core.EventRunStart])
	assert.Equal(t, 1, counts[core.EventEnd])
	assert.Zero(t, counts[core.EventError])
	assert.Positive(t, counts[core.EventChunk])
	assert.Positive(t, counts[core.EventToolCallChunk])
	assert.Positive(t, counts[core.EventToolResult])

	// The gate's allow decision must have routed into the responder.
	sawResponder := false
	for _, ev := range events {
		if ev.Node == core.StageRespond {
			sawResponder = true
		}
	}
	assert.True(t, sawResponder)

	// Session got the produced thread and the checkpoint resolves.
	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Messages)
	cp, err := store.GetCheckpoint(last.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, "s1", cp.SessionID)
	assert.Equal(t, core.KindHuman, cp.Messages[0].Kind)
}

func TestRunBlockedEndsWithoutResponder(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.AddReply("forbidden", model.MockReply{
		ToolCalls: []core.ToolCall{
			{ID: "d1", Name: core.DecisionToolName, Arguments: `{"allow": false}`},
		},
	})
	resolve := func(core.RunConfig) (model.Model, error) { return mock, nil }
	exec := stage.New(resolve, nil)
	r := New(exec, core.RunConfig{Provider: "mock"})

	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("forbidden")}))
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventEnd, events[len(events)-1].Type)

	for _, ev := range events {
		assert.NotEqual(t, core.StageRespond, ev.Node)
		assert.NotEqual(t, core.EventError, ev.Type)
	}
}

func TestRunSkipGateGoesStraightToResponder(t *testing.T) {
	r := New(gatedMock(), core.RunConfig{Provider: "mock", SkipGate: true})
	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("what is 2+2?")}))

	for _, ev := range events {
		assert.NotEqual(t, core.StageGate, ev.Node)
	}
	assert.Equal(t, core.EventEnd, events[len(events)-1].Type)
}

func TestStageErrorBecomesErrorThenEnd(t *testing.T) {
	exec := &scriptedExecutor{errs: map[string]error{core.StageGate: errors.New("model unavailable")}}
	r := New(exec, core.RunConfig{})

	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("hi")}))
	require.Len(t, events, 3)
	assert.Equal(t, core.EventRunStart, events[0].Type)
	assert.Equal(t, core.EventError, events[1].Type)
	assert.Contains(t, events[1].ErrorMessage, "model unavailable")
	assert.Equal(t, core.EventEnd, events[2].Type)
	assert.Equal(t, core.NodeError, events[2].Node)
}

func TestSetupFailureIsAttributedToSetupNode(t *testing.T) {
	exec := &scriptedExecutor{errs: map[string]error{core.StageGate: errors.New("boom")}}
	r := New(exec, core.RunConfig{})

	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("hi")}))
	// No stage boundary ever arrived, so the error is pinned to "setup".
	require.Len(t, events, 3)
	assert.Equal(t, core.NodeSetup, events[1].Node)
}

func TestPanicIsRecoveredAsErrorThenEnd(t *testing.T) {
	exec := &scriptedExecutor{panics: map[string]bool{core.StageGate: true}}
	r := New(exec, core.RunConfig{})

	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("hi")}))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.EventEnd, last.Type)

	sawError := false
	for _, ev := range events {
		if ev.Type == core.EventError {
			sawError = true
			assert.Contains(t, ev.ErrorMessage, "panic")
		}
	}
	assert.True(t, sawError)
}

func TestTransitionBoundStopsRunawayLoops(t *testing.T) {
	// Responder forever issues another calculator call; the bound must trip.
	loop := &scriptedExecutor{events: map[string][]core.RawEvent{
		core.StageRespond: {core.NewStageCompleteEvent(core.StageRespond,
			core.NewAIMessage(core.StageRespond, "", core.ToolCall{ID: "c1", Name: "calculator", Arguments: `{}`}))},
		core.StageTools: {core.NewStageCompleteEvent(core.StageTools,
			core.NewToolMessage(core.StageTools, "c1", "4", false))},
	}}
	r := New(loop, core.RunConfig{SkipGate: true}, WithMaxStageTransitions(6))

	events := collect(t, r.Run(context.Background(),
		[]core.Message{core.NewHumanMessage("hi")}))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.EventEnd, last.Type)

	sawBoundError := false
	for _, ev := range events {
		if ev.Type == core.EventError {
			sawBoundError = true
			assert.Contains(t, ev.ErrorMessage, "stage transitions")
		}
	}
	assert.True(t, sawBoundError)
}

func TestCancelledRunClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(gatedMock(), core.RunConfig{Provider: "mock"})

	ch := r.Run(ctx, []core.Message{core.NewHumanMessage("what is 2+2?")})
	for range ch {
	}
	// Reaching here means the channel closed despite cancellation.
}
