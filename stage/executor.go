// Package stage implements the model-backed stage executor. It turns the
// abstract stage names the router emits (gate, responder, tool execution)
// into model calls and tool invocations, streaming raw events as they
// happen.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/logging"
	"github.com/Superego-Agent/superego-lgdemo-sub000/model"
	"github.com/Superego-Agent/superego-lgdemo-sub000/tool"
)

// Default stage instructions. The gate prompt is completed with the resolved
// constitution text from the branch config at execution time.
const (
	defaultGateInstructions = `You are a screening agent. Evaluate the user's latest request against the policy below and decide whether the inner agent may answer it. You may think out loud briefly, but you MUST finish by calling the superego_decision tool exactly once with your verdict.`

	defaultResponderInstructions = `You are a helpful assistant. Answer the user's request directly. Use the available tools when they help; otherwise answer from your own knowledge.`
)

// ModelResolver selects a model backend for a branch configuration. The
// executor never instantiates providers itself; credentials and client
// wiring stay with the caller.
type ModelResolver func(cfg core.RunConfig) (model.Model, error)

// Options configure the stage executor.
type Options struct {
	GateInstructions      string
	ResponderInstructions string
	Logger                logging.Logger
}

// Executor implements core.StageExecutor over the model and tool packages.
// The gate stage exposes only the decision tool; the responder stage exposes
// the domain tools from the registry.
type Executor struct {
	resolve        ModelResolver
	decisionTool   tool.Tool
	responderTools *tool.Registry
	opts           Options
}

// New creates a stage executor. The registry holds the tools offered to the
// responder; the decision tool is managed internally and never offered to
// the responder.
func New(resolve ModelResolver, responderTools *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		GateInstructions:      defaultGateInstructions,
		ResponderInstructions: defaultResponderInstructions,
		Logger:                logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if responderTools == nil {
		responderTools = tool.NewRegistry()
	}
	return &Executor{
		resolve:        resolve,
		decisionTool:   tool.NewDecisionTool(),
		responderTools: responderTools,
		opts:           opts,
	}
}

// WithLogger sets the logger used for stage level diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithGateInstructions overrides the gate's base system prompt.
func WithGateInstructions(s string) func(o *Options) {
	return func(o *Options) { o.GateInstructions = s }
}

// WithResponderInstructions overrides the responder's system prompt.
func WithResponderInstructions(s string) func(o *Options) {
	return func(o *Options) { o.ResponderInstructions = s }
}

// Execute implements core.StageExecutor.
func (e *Executor) Execute(ctx context.Context, stage string, state []core.Message, cfg core.RunConfig) (<-chan core.RawEvent, <-chan error) {
	out := make(chan core.RawEvent, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		defer func() {
			// A panicking tool or provider must fail the stage, not the
			// process.
			if rec := recover(); rec != nil {
				e.opts.Logger.Error("stage panicked", "stage", stage, "panic", rec)
				errCh <- fmt.Errorf("%s stage panicked: %v", stage, rec)
			}
		}()
		var err error
		switch stage {
		case core.StageGate:
			err = e.runModelStage(ctx, stage, state, cfg, out)
		case core.StageRespond:
			err = e.runModelStage(ctx, stage, state, cfg, out)
		case core.StageTools:
			err = e.runToolStage(ctx, state, out)
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}
		if err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

// instructionsFor builds the system prompt for a model-backed stage.
func (e *Executor) instructionsFor(stage string, cfg core.RunConfig) string {
	if stage == core.StageGate {
		if cfg.Constitution == "" {
			return e.opts.GateInstructions
		}
		return e.opts.GateInstructions + "\n\n## Policy\n\n" + cfg.Constitution
	}
	return e.opts.ResponderInstructions
}

// toolsFor returns the tool definitions exposed to a stage. The gate sees
// only the decision tool; the responder sees the registry.
func (e *Executor) toolsFor(stage string) ([]model.ToolDefinition, []tool.Tool) {
	var tools []tool.Tool
	if stage == core.StageGate {
		tools = []tool.Tool{e.decisionTool}
	} else {
		tools = e.responderTools.List()
	}
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs, tools
}

func (e *Executor) runModelStage(ctx context.Context, stage string, state []core.Message, cfg core.RunConfig, out chan<- core.RawEvent) error {
	m, err := e.resolve(cfg)
	if err != nil {
		return fmt.Errorf("resolve model for provider %q: %w", cfg.Provider, err)
	}

	defs, _ := e.toolsFor(stage)
	req := model.Request{
		Instructions: e.instructionsFor(stage, cfg),
		Messages:     state,
		Tools:        defs,
		Stream:       true,
	}

	if !emit(ctx, out, core.NewStageEnterEvent(stage)) {
		return ctx.Err()
	}

	start := time.Now()
	respCh, modelErrCh := m.Generate(ctx, req)

	var text string
	var final *core.Message
	for respCh != nil || modelErrCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			switch {
			case resp.Partial && resp.TextDelta != "":
				text += resp.TextDelta
				if !emit(ctx, out, core.NewTextIncrementEvent(stage, text)) {
					return ctx.Err()
				}
			case resp.Partial && resp.ToolCallDelta != nil:
				if !emit(ctx, out, core.NewToolCallFragmentEvent(stage, *resp.ToolCallDelta)) {
					return ctx.Err()
				}
			case resp.Message != nil:
				msg := *resp.Message
				final = &msg
			}
		case err, ok := <-modelErrCh:
			if !ok {
				modelErrCh = nil
				continue
			}
			if err != nil {
				e.opts.Logger.Error("stage model call failed", "stage", stage, "provider", cfg.Provider, "error", err)
				return fmt.Errorf("%s stage: %w", stage, err)
			}
		}
	}
	if final == nil {
		return fmt.Errorf("%s stage: model produced no final message", stage)
	}

	final.Kind = core.KindAI
	final.OriginNode = stage
	e.opts.Logger.Debug("stage completed", "stage", stage, "model", m.Info().Name,
		"tool_calls", len(final.ToolCalls), "duration", time.Since(start))

	if !emit(ctx, out, core.NewStageCompleteEvent(stage, *final)) {
		return ctx.Err()
	}
	return nil
}

// runToolStage executes every pending call on the most recent ai message.
// Individual tool failures become IsError results; only a missing pending
// call set is a stage error.
func (e *Executor) runToolStage(ctx context.Context, state []core.Message, out chan<- core.RawEvent) error {
	issuer, ok := lastAIMessage(state)
	if !ok || len(issuer.ToolCalls) == 0 {
		return fmt.Errorf("tool stage: no pending tool calls in state")
	}

	if !emit(ctx, out, core.NewStageEnterEvent(core.StageTools)) {
		return ctx.Err()
	}

	msgs := make([]core.Message, 0, len(issuer.ToolCalls))
	for _, call := range issuer.ToolCalls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		content, isErr := e.invoke(ctx, issuer.OriginNode, call)
		res := core.ToolResult{CallID: call.ID, Name: call.Name, Content: content, IsError: isErr}
		if !emit(ctx, out, core.NewToolResultEvent(core.StageTools, res)) {
			return ctx.Err()
		}
		msgs = append(msgs, core.NewToolMessage(core.StageTools, call.ID, content, isErr))
	}

	if !emit(ctx, out, core.NewStageCompleteEvent(core.StageTools, msgs...)) {
		return ctx.Err()
	}
	return nil
}

// invoke runs one tool call and stringifies its outcome. The issuing node
// decides which tool set the call may hit: decision calls are only honored
// for the gate.
func (e *Executor) invoke(ctx context.Context, originNode string, call core.ToolCall) (string, bool) {
	t, ok := e.lookup(originNode, call.Name)
	if !ok {
		return fmt.Sprintf("tool %q is not available", call.Name), true
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", call.Name, err), true
	}

	start := time.Now()
	result, err := t.Call(ctx, args)
	if err != nil {
		e.opts.Logger.Warn("tool call failed", "tool", call.Name, "duration", time.Since(start), "error", err)
		return err.Error(), true
	}
	e.opts.Logger.Debug("tool call succeeded", "tool", call.Name, "duration", time.Since(start))
	return stringify(result), false
}

func (e *Executor) lookup(originNode, name string) (tool.Tool, bool) {
	if name == core.DecisionToolName {
		if originNode != core.StageGate {
			return nil, false
		}
		return e.decisionTool, true
	}
	return e.responderTools.Get(name)
}

// lastAIMessage finds the most recent ai-kind message in state.
func lastAIMessage(state []core.Message) (core.Message, bool) {
	for i := len(state) - 1; i >= 0; i-- {
		if state[i].Kind == core.KindAI {
			return state[i], true
		}
	}
	return core.Message{}, false
}

// parseArguments decodes the model-produced argument payload. An empty
// payload is a valid empty argument set.
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// stringify renders a tool result for the conversation. Strings pass
// through untouched; structured results are rendered as JSON.
func stringify(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// emit sends a raw event unless the context has been cancelled.
func emit(ctx context.Context, out chan<- core.RawEvent, ev core.RawEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
