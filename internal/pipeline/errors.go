package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// ErrorAggregator collects per-domain failures from concurrent workers.
type ErrorAggregator struct {
	errors []error
	mu     sync.Mutex
}

func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{errors: make([]error, 0)}
}

// Add ignores nil errors.
func (ea *ErrorAggregator) Add(err error) {
	if err == nil {
		return
	}
	ea.mu.Lock()
	defer ea.mu.Unlock()
	ea.errors = append(ea.errors, err)
}

func (ea *ErrorAggregator) HasErrors() bool {
	ea.mu.Lock()
	defer ea.mu.Unlock()
	return len(ea.errors) > 0
}

func (ea *ErrorAggregator) Count() int {
	ea.mu.Lock()
	defer ea.mu.Unlock()
	return len(ea.errors)
}

// Errors returns a copy of the collected errors.
func (ea *ErrorAggregator) Errors() []error {
	ea.mu.Lock()
	defer ea.mu.Unlock()
	out := make([]error, len(ea.errors))
	copy(out, ea.errors)
	return out
}

func (ea *ErrorAggregator) Error() string {
	ea.mu.Lock()
	defer ea.mu.Unlock()

	switch len(ea.errors) {
	case 0:
		return ""
	case 1:
		return ea.errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d domains failed:\n", len(ea.errors))
	for i, err := range ea.errors {
		fmt.Fprintf(&sb, "  %d. %v\n", i+1, err)
	}
	return sb.String()
}

// Summary describes the failure rate over total domains.
func (ea *ErrorAggregator) Summary(total int) string {
	ea.mu.Lock()
	defer ea.mu.Unlock()

	if len(ea.errors) == 0 {
		return fmt.Sprintf("All %d domains succeeded", total)
	}
	rate := float64(len(ea.errors)) / float64(total) * 100
	return fmt.Sprintf("%d/%d domains failed (%.1f%% failure rate)", len(ea.errors), total, rate)
}

// DomainError ties a failure to the domain and the state it happened in.
type DomainError struct {
	Domain string
	State  State
	Err    error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Domain, e.State, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }
