package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

const tracerName = "github.com/Superego-Agent/superego-lgdemo-sub000/telemetry"

// TracingExecutor decorates a StageExecutor with one span per stage
// execution. The span ends when the stage's channels are fully consumed,
// so its duration covers streaming, not just dispatch.
type TracingExecutor struct {
	inner  core.StageExecutor
	tracer trace.Tracer
}

// NewTracingExecutor wraps an executor using the globally installed tracer
// provider.
func NewTracingExecutor(inner core.StageExecutor) *TracingExecutor {
	return &TracingExecutor{
		inner:  inner,
		tracer: otel.Tracer(tracerName),
	}
}

// Execute implements core.StageExecutor.
func (t *TracingExecutor) Execute(ctx context.Context, stage string, state []core.Message, cfg core.RunConfig) (<-chan core.RawEvent, <-chan error) {
	ctx, span := t.tracer.Start(ctx, "stage:"+stage,
		trace.WithAttributes(
			attribute.String("pipeline.stage", stage),
			attribute.String("pipeline.branch_id", cfg.BranchID),
			attribute.String("pipeline.provider", cfg.Provider),
			attribute.Int("pipeline.state_len", len(state)),
		),
	)

	rawIn, errIn := t.inner.Execute(ctx, stage, state, cfg)
	rawOut := make(chan core.RawEvent, cap(rawIn))
	errOut := make(chan error, 1)

	go func() {
		defer close(rawOut)
		defer close(errOut)
		defer span.End()

		events := 0
		for rawIn != nil || errIn != nil {
			select {
			case ev, ok := <-rawIn:
				if !ok {
					rawIn = nil
					continue
				}
				events++
				select {
				case rawOut <- ev:
				case <-ctx.Done():
					span.SetStatus(codes.Error, ctx.Err().Error())
					return
				}
			case err, ok := <-errIn:
				if !ok {
					errIn = nil
					continue
				}
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					errOut <- err
				}
			}
		}
		span.SetAttributes(attribute.Int("pipeline.raw_events", events))
	}()

	return rawOut, errOut
}
