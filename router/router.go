// Package router implements the stage-routing state machine that decides,
// after each stage's output, which stage runs next.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// State is a pipeline routing state.
type State string

const (
	// StateGate runs the policy gate stage next.
	StateGate State = "gate"
	// StateToolExec executes the pending tool calls next.
	StateToolExec State = "tool_exec"
	// StateRespond runs the responder stage next.
	StateRespond State = "respond"
	// StateTerminated ends the run.
	StateTerminated State = "terminated"
)

// allowMarker is the substring of the decision tool's formatted output that
// signals an allow outcome. Routing is string containment over the tool's
// output text, not boolean parsing of the raw invocation argument: the
// decision tool's output phrasing is part of the routing contract and must
// stay in sync with tool.FormatDecision.
const allowMarker = "allowed"

// ErrAmbiguousRouting is returned when the router cannot classify the
// triggering message, e.g. a tool message whose issuing call cannot be
// located in history. The router terminates defensively in that case.
var ErrAmbiguousRouting = errors.New("ambiguous routing")

// Router drives one branch's control flow. Each branch owns a fresh Router;
// no state is shared across branches. A Router is not safe for concurrent
// use.
type Router struct {
	state State
}

// New creates a router in its initial state: the gate stage, or the
// responder directly when the branch is configured to skip the gate.
func New(cfg core.RunConfig) *Router {
	if cfg.SkipGate {
		return &Router{state: StateRespond}
	}
	return &Router{state: StateGate}
}

// State returns the current routing state.
func (r *Router) State() State { return r.state }

// Stage maps the current state to the stage name handed to the executor.
// It panics on terminal states; callers must check State first.
func (r *Router) Stage() string {
	switch r.state {
	case StateGate:
		return core.StageGate
	case StateToolExec:
		return core.StageTools
	case StateRespond:
		return core.StageRespond
	default:
		panic(fmt.Sprintf("router: no stage for state %q", r.state))
	}
}

// Next advances the state machine given the full message history after the
// stage that just ran. On ErrAmbiguousRouting the router has already moved
// to StateTerminated; the caller surfaces the error as a stage failure.
func (r *Router) Next(history []core.Message) (State, error) {
	if len(history) == 0 {
		prev := r.state
		r.state = StateTerminated
		return r.state, fmt.Errorf("%w: empty history after %s", ErrAmbiguousRouting, prev)
	}
	last := history[len(history)-1]

	switch r.state {
	case StateGate:
		// Any pending tool call routes through execution, regardless of
		// which tool. A plain response means the gate raised no objection.
		if last.HasPendingToolCalls() {
			r.state = StateToolExec
		} else {
			r.state = StateRespond
		}

	case StateToolExec:
		next, err := r.afterToolExec(history, last)
		if err != nil {
			r.state = StateTerminated
			return r.state, err
		}
		r.state = next

	case StateRespond:
		if last.HasPendingToolCalls() {
			r.state = StateToolExec
		} else {
			r.state = StateTerminated
		}

	case StateTerminated:
		// Terminal; repeated calls stay terminated.

	default:
		prev := r.state
		r.state = StateTerminated
		return r.state, fmt.Errorf("%w: unknown state %q", ErrAmbiguousRouting, prev)
	}

	return r.state, nil
}

// afterToolExec classifies the tool message that ended the tool_exec state.
// Only gate-issued decision tool calls carry allow/block semantics; any tool
// result issued by the responder unconditionally returns control to the
// responder. Erroring tool results route identically to successful ones.
func (r *Router) afterToolExec(history []core.Message, last core.Message) (State, error) {
	if last.Kind != core.KindTool {
		return "", fmt.Errorf("%w: expected tool message after tool_exec, got %s", ErrAmbiguousRouting, last.Kind)
	}

	issuer, call, ok := core.IssuingCall(history, last)
	if !ok {
		return "", fmt.Errorf("%w: no issuing call for tool_call_id %q", ErrAmbiguousRouting, last.ToolCallID)
	}

	if issuer.OriginNode != core.StageGate || call.Name != core.DecisionToolName {
		return StateRespond, nil
	}

	if strings.Contains(last.Content, allowMarker) {
		return StateRespond, nil
	}
	return StateTerminated, nil
}
