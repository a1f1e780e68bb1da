// Package compare runs the same input through several differently configured
// pipeline branches concurrently and multiplexes their protocol events into
// one channel.
//
// Each branch is fully isolated: its own runner, router, translator and a
// private copy of the initial messages. Events interleave by arrival while
// per-branch order is preserved; consumers demultiplex by BranchID. The
// shared channel closes only after every branch has delivered its terminal
// event, so a consumer reading to completion sees exactly one run_start and
// one end per branch.
package compare

import (
	"context"
	"fmt"
	"sync"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/logging"
	"github.com/Superego-Agent/superego-lgdemo-sub000/runner"
	"github.com/Superego-Agent/superego-lgdemo-sub000/session"
)

// Options configure a comparison run.
type Options struct {
	// EventBufferSize sets the shared output channel buffer.
	EventBufferSize int
	// SessionStore, when set, persists each branch under its own thread
	// derived from SessionID.
	SessionStore session.Store
	// SessionID is the base thread name for persisted branches.
	SessionID string
	// Logger receives comparison lifecycle diagnostics.
	Logger logging.Logger
}

// Comparison executes K branch configurations against one input.
type Comparison struct {
	exec    core.StageExecutor
	configs []core.RunConfig

	eventBufferSize int
	sessionStore    session.Store
	sessionID       string
	logger          logging.Logger
}

// New creates a comparison over the given branch configurations. Configs
// without a BranchID get a positional one so demultiplexing always works.
func New(exec core.StageExecutor, configs []core.RunConfig, optFns ...func(o *Options)) *Comparison {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfgs := make([]core.RunConfig, len(configs))
	for i, cfg := range configs {
		if cfg.BranchID == "" {
			cfg.BranchID = fmt.Sprintf("branch_%d", i)
		}
		cfgs[i] = cfg
	}

	return &Comparison{
		exec:            exec,
		configs:         cfgs,
		eventBufferSize: opts.EventBufferSize,
		sessionStore:    opts.SessionStore,
		sessionID:       opts.SessionID,
		logger:          opts.Logger,
	}
}

// WithLogger sets the comparison's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithSession persists each branch under a thread derived from sessionID.
func WithSession(store session.Store, sessionID string) func(o *Options) {
	return func(o *Options) { o.SessionStore = store; o.SessionID = sessionID }
}

// WithEventBufferSize overrides the shared channel buffer.
func WithEventBufferSize(n int) func(o *Options) {
	return func(o *Options) { o.EventBufferSize = n }
}

// Run launches every branch concurrently and returns the multiplexed event
// stream. The channel closes after all branches finish; cancellation stops
// the branches but the close still happens.
func (c *Comparison) Run(ctx context.Context, initial []core.Message) <-chan core.ProtocolEvent {
	out := make(chan core.ProtocolEvent, c.eventBufferSize)

	var wg sync.WaitGroup
	for _, cfg := range c.configs {
		wg.Add(1)
		go func(cfg core.RunConfig) {
			defer wg.Done()
			c.runBranch(ctx, out, cfg, initial)
		}(cfg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// runBranch forwards one branch's events onto the shared channel. A panic
// here must not take down sibling branches; it surfaces as a
// multiplexer-scoped error event instead.
func (c *Comparison) runBranch(ctx context.Context, out chan<- core.ProtocolEvent, cfg core.RunConfig, initial []core.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("comparison branch panicked", "branch_id", cfg.BranchID, "panic", rec)
			ev := core.ProtocolEvent{
				Type:         core.EventError,
				Node:         core.NodeMultiplexer,
				BranchID:     cfg.BranchID,
				ErrorMessage: fmt.Sprintf("branch producer panicked: %v", rec),
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()

	var runOpts []func(o *runner.Options)
	runOpts = append(runOpts, runner.WithLogger(c.logger), runner.WithEventBufferSize(c.eventBufferSize))
	if c.sessionStore != nil {
		runOpts = append(runOpts, runner.WithSession(c.sessionStore, c.branchSessionID(cfg.BranchID)))
	}

	br := runner.New(c.exec, cfg, runOpts...)
	branchInitial := append([]core.Message(nil), initial...)

	for ev := range br.Run(ctx, branchInitial) {
		select {
		case out <- ev:
		case <-ctx.Done():
			// Best effort after cancellation; keep draining either way so
			// the branch goroutine can close its channel.
			select {
			case out <- ev:
			default:
			}
		}
	}
}

// branchSessionID derives a per-branch thread name so branches never share
// history.
func (c *Comparison) branchSessionID(branchID string) string {
	if c.sessionID == "" {
		return branchID
	}
	return c.sessionID + "#" + branchID
}
