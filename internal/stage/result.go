// Package stage holds the per-stage result type and the runner that isolates stage failures.
package stage

import "errors"

// ErrToolUnavailable marks a stage whose external binary, service or credentials are missing.
var ErrToolUnavailable = errors.New("tool unavailable")

// Status records how a stage ended. It never influences the score or the report.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Result is the outcome of one stage: Ok(value) or Unavailable(reason).
// An Unavailable result still carries the stage's empty value so consumers
// can treat both cases as a container of the stage's element type.
type Result[T any] struct {
	value  T
	reason error
	ok     bool
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

func Unavailable[T any](empty T, reason error) Result[T] {
	if reason == nil {
		reason = ErrToolUnavailable
	}
	return Result[T]{value: empty, reason: reason}
}

// Value returns the payload, or the empty value for an Unavailable result.
func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) IsOK() bool {
	return r.ok
}

// Err returns why the stage was unavailable, nil for Ok.
func (r Result[T]) Err() error {
	return r.reason
}

func (r Result[T]) Status() Status {
	if r.ok {
		return StatusOK
	}
	return StatusUnavailable
}
