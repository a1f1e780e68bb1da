package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/logging"
	"github.com/Superego-Agent/superego-lgdemo-sub000/router"
	"github.com/Superego-Agent/superego-lgdemo-sub000/session"
	"github.com/Superego-Agent/superego-lgdemo-sub000/translate"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for protocol events.
	EventBufferSize int
	// MaxStageTransitions bounds the router loop so a responder stuck in a
	// tool cycle cannot run forever.
	MaxStageTransitions int
	// SessionStore, when set, persists produced messages and the terminal
	// checkpoint under SessionID.
	SessionStore session.Store
	// SessionID names the thread this run belongs to.
	SessionID string
	// Logger receives run lifecycle diagnostics.
	Logger logging.Logger
}

// BranchRunner executes one pipeline branch. Each Run call produces a fresh
// router and translator; a BranchRunner may be reused for sequential runs
// but a single Run's channel must be consumed to completion.
type BranchRunner struct {
	exec core.StageExecutor
	cfg  core.RunConfig

	eventBufferSize     int
	maxStageTransitions int
	sessionStore        session.Store
	sessionID           string
	logger              logging.Logger
}

// New constructs a BranchRunner with optional overrides.
func New(exec core.StageExecutor, cfg core.RunConfig, optFns ...func(o *Options)) *BranchRunner {
	opts := Options{
		EventBufferSize:     100,
		MaxStageTransitions: 50,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &BranchRunner{
		exec:                exec,
		cfg:                 cfg,
		eventBufferSize:     opts.EventBufferSize,
		maxStageTransitions: opts.MaxStageTransitions,
		sessionStore:        opts.SessionStore,
		sessionID:           opts.SessionID,
		logger:              opts.Logger,
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithSession persists run output to the given store under sessionID.
func WithSession(store session.Store, sessionID string) func(o *Options) {
	return func(o *Options) { o.SessionStore = store; o.SessionID = sessionID }
}

// WithEventBufferSize overrides the output channel buffer.
func WithEventBufferSize(n int) func(o *Options) {
	return func(o *Options) { o.EventBufferSize = n }
}

// WithMaxStageTransitions overrides the stage transition bound.
func WithMaxStageTransitions(n int) func(o *Options) {
	return func(o *Options) { o.MaxStageTransitions = n }
}

// Run starts the branch asynchronously and returns its ordered protocol
// event stream. The channel always delivers exactly one run_start first and
// exactly one end last, then closes; failures appear as an error event
// before the end.
func (r *BranchRunner) Run(ctx context.Context, initial []core.Message) <-chan core.ProtocolEvent {
	out := make(chan core.ProtocolEvent, r.eventBufferSize)

	go func() {
		defer close(out)

		tr := translate.New(r.cfg.BranchID)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("branch run panicked", "branch_id", r.cfg.BranchID, "panic", rec)
				r.fail(ctx, out, tr, fmt.Errorf("branch panicked: %v", rec))
			}
		}()

		r.run(ctx, out, tr, initial)
	}()

	return out
}

func (r *BranchRunner) run(ctx context.Context, out chan<- core.ProtocolEvent, tr *translate.Translator, initial []core.Message) {
	start := time.Now()
	r.logger.Info("branch run started", "branch_id", r.cfg.BranchID, "session_id", r.sessionID,
		"provider", r.cfg.Provider, "skip_gate", r.cfg.SkipGate)

	if ev := tr.Start(initial, r.cfg); ev != nil {
		if !emit(ctx, out, *ev) {
			return
		}
	}

	rt := router.New(r.cfg)
	state := append([]core.Message(nil), initial...)
	transitions := 0

	for rt.State() != router.StateTerminated {
		if transitions++; transitions > r.maxStageTransitions {
			r.fail(ctx, out, tr, fmt.Errorf("branch exceeded %d stage transitions", r.maxStageTransitions))
			return
		}

		produced, err := r.runStage(ctx, out, tr, rt.Stage(), state)
		if err != nil {
			r.fail(ctx, out, tr, err)
			return
		}
		state = append(state, produced...)

		if _, err := rt.Next(state); err != nil {
			r.fail(ctx, out, tr, err)
			return
		}
	}

	checkpointID, err := r.persist(initial, state)
	if err != nil {
		r.fail(ctx, out, tr, err)
		return
	}

	r.logger.Info("branch run completed", "branch_id", r.cfg.BranchID,
		"checkpoint_id", checkpointID, "stages", transitions, "duration", time.Since(start))

	if ev := tr.End(checkpointID); ev != nil {
		emit(ctx, out, *ev)
	}
}

// runStage executes a single stage and streams its translated events. It
// returns the messages the stage produced.
func (r *BranchRunner) runStage(ctx context.Context, out chan<- core.ProtocolEvent, tr *translate.Translator, stage string, state []core.Message) ([]core.Message, error) {
	raw, errCh := r.exec.Execute(ctx, stage, state, r.cfg)

	var produced []core.Message
	for raw != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-raw:
			if !ok {
				raw = nil
				continue
			}
			if ev.IsTerminal() {
				produced = ev.Messages
			}
			if pe := tr.Translate(ev); pe != nil {
				if !emit(ctx, out, *pe) {
					return nil, ctx.Err()
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if produced == nil {
		return nil, fmt.Errorf("stage %s produced no terminal messages", stage)
	}
	return produced, nil
}

// persist appends the run's new messages to the session and snapshots the
// full thread as a checkpoint. Without a store the run still gets a fresh
// checkpoint id so terminal events are uniform.
func (r *BranchRunner) persist(initial, state []core.Message) (string, error) {
	if r.sessionStore == nil {
		return core.NewID(), nil
	}
	produced := state[len(initial):]
	if err := r.sessionStore.AppendMessages(r.sessionID, produced...); err != nil {
		return "", fmt.Errorf("persist session %s: %w", r.sessionID, err)
	}
	checkpointID, err := r.sessionStore.SaveCheckpoint(r.sessionID, state)
	if err != nil {
		return "", fmt.Errorf("checkpoint session %s: %w", r.sessionID, err)
	}
	return checkpointID, nil
}

// fail reports a failure as an error event followed by the terminal end.
// After cancellation the sends are best effort: the consumer may be gone,
// and the stream must still close promptly.
func (r *BranchRunner) fail(ctx context.Context, out chan<- core.ProtocolEvent, tr *translate.Translator, err error) {
	r.logger.Error("branch run failed", "branch_id", r.cfg.BranchID, "error", err)
	for _, ev := range tr.Fail(err) {
		if ctx.Err() != nil {
			select {
			case out <- ev:
			default:
			}
			continue
		}
		if !emit(ctx, out, ev) {
			return
		}
	}
}

func emit(ctx context.Context, out chan<- core.ProtocolEvent, ev core.ProtocolEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
