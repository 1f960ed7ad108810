package pipeline

import "time"

// Transition is one state change of one domain.
type Transition struct {
	Domain string
	From   State
	To     State
	Err    error
	At     time.Time
}

// Observer receives every transition. Implementations must be safe for concurrent use;
// domains on different workers report at the same time.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

type nopObserver struct{}

func (nopObserver) Observe(Transition) {}
