package pipeline

import (
	"time"

	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/stage"
)

// Outcome is the final record of one domain. A domain that was never started because
// the run was cancelled stays Pending with the context error.
type Outcome struct {
	Domain      string
	State       State
	Score       int
	ReportPath  string
	StageStatus map[findings.Slot]stage.Status
	Err         error
	Duration    time.Duration
}

func (o Outcome) Done() bool { return o.State == StateDone }

// RunSummary lists outcomes in input order.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome

	errs *ErrorAggregator
}

func (s RunSummary) Total() int { return len(s.Outcomes) }

func (s RunSummary) DoneCount() int { return s.count(StateDone) }

func (s RunSummary) FailedCount() int { return s.count(StateFailed) }

// SkippedCount is the number of domains never started.
func (s RunSummary) SkippedCount() int { return s.count(StatePending) }

// Succeeded reports whether every domain reached Done.
func (s RunSummary) Succeeded() bool {
	return s.Total() > 0 && s.DoneCount() == s.Total()
}

// Err aggregates the failures of the run, nil when there were none.
func (s RunSummary) Err() error {
	if s.errs == nil || !s.errs.HasErrors() {
		return nil
	}
	return s.errs
}

func (s RunSummary) count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}
