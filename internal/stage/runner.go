package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/telemetry"
)

// Func is a single external call for one domain.
type Func[T any] func(ctx context.Context) (T, error)

// Spec describes one stage invocation.
type Spec[T any] struct {
	Name    string
	Domain  string
	Timeout time.Duration
	// Empty builds the value used when the stage is unavailable.
	Empty func() T
	// Count reports the number of items for the success log line. Optional.
	Count func(T) int
}

// Runner applies the same failure isolation, logging and metrics to every stage.
type Runner struct {
	logger    *logger.Logger
	telemetry telemetry.Recorder
}

func NewRunner(log *logger.Logger, rec telemetry.Recorder) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	if rec == nil {
		rec = telemetry.Noop()
	}
	return &Runner{
		logger:    log.WithComponent("stage"),
		telemetry: rec,
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// Run executes fn under its own timeout. Whatever fn does (error, panic, hang past the
// deadline) the caller gets a Result and never an error. A stage that overruns its
// deadline is abandoned; its goroutine exits when fn returns.
func Run[T any](ctx context.Context, r *Runner, spec Spec[T], fn Func[T]) Result[T] {
	start := time.Now()
	log := r.logger.WithStage(spec.Name).WithDomain(spec.Domain)

	ctx, span := log.StartSpan(ctx, "stage."+spec.Name, trace.WithAttributes(
		attribute.String("stage.name", spec.Name),
		attribute.String("domain", spec.Domain),
	))
	defer span.End()

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	go func() {
		var out outcome[T]
		defer func() {
			if rec := recover(); rec != nil {
				out = outcome[T]{err: fmt.Errorf("stage panicked: %v", rec)}
			}
			done <- out
		}()
		out.value, out.err = fn(ctx)
	}()

	var out outcome[T]
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome[T]{err: fmt.Errorf("stage %s: %w", spec.Name, ctx.Err())}
	}

	duration := time.Since(start)

	if out.err != nil {
		log.WithContext(ctx).Warnw("Stage unavailable",
			"error", out.err.Error(),
			"tool_missing", errors.Is(out.err, ErrToolUnavailable),
			"duration_ms", duration.Milliseconds(),
		)
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		r.telemetry.RecordStage(ctx, spec.Name, string(StatusUnavailable), duration)
		return Unavailable(empty(spec), out.err)
	}

	fields := []interface{}{"duration_ms", duration.Milliseconds()}
	if spec.Count != nil {
		fields = append(fields, "count", spec.Count(out.value))
	}
	log.WithContext(ctx).Infow("Stage completed", fields...)
	span.SetStatus(codes.Ok, "completed")
	r.telemetry.RecordStage(ctx, spec.Name, string(StatusOK), duration)

	return Ok(out.value)
}

func empty[T any](spec Spec[T]) T {
	if spec.Empty != nil {
		return spec.Empty()
	}
	var zero T
	return zero
}
