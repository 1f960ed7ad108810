package pipeline

// State is the position of one domain in its processing lifecycle.
type State int

const (
	StatePending State = iota
	StateEnumerating
	StateAggregating
	StateScoring
	StatePersisting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StatePending:     "pending",
	StateEnumerating: "enumerating",
	StateAggregating: "aggregating",
	StateScoring:     "scoring",
	StatePersisting:  "persisting",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition allows exactly one step forward along the happy path, or a move to
// Failed from any non-terminal state.
func (s State) CanTransition(to State) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return to == s+1 && to <= StateDone
}
