package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/yajur-khanna/asm-tool/internal/pipeline"
)

func init() {
	color.NoColor = true
}

func transitions(domain string, states ...pipeline.State) []pipeline.Transition {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	from := pipeline.StatePending
	out := make([]pipeline.Transition, 0, len(states))
	for _, s := range states {
		at = at.Add(2 * time.Second)
		out = append(out, pipeline.Transition{Domain: domain, From: from, To: s, At: at})
		from = s
	}
	return out
}

func TestTrackerRendersTransitions(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, true, 2)

	for _, ev := range transitions("example.com",
		pipeline.StateEnumerating, pipeline.StateAggregating, pipeline.StateScoring,
		pipeline.StatePersisting, pipeline.StateDone) {
		tr.Observe(ev)
	}

	out := buf.String()
	assert.Contains(t, out, "[0/2] ⟳ example.com")
	assert.Contains(t, out, "⟳ example.com aggregating")
	assert.Contains(t, out, "[1/2] ✓ example.com (8s)")
}

func TestTrackerRendersFailure(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, true, 1)

	tr.Observe(pipeline.Transition{Domain: "bad.example.com", From: pipeline.StatePersisting, To: pipeline.StateFailed, Err: errors.New("disk full")})

	assert.Contains(t, buf.String(), "✗ bad.example.com failed while persisting")
	assert.Contains(t, buf.String(), "Error: disk full")
}

func TestTrackerComplete(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, true, 3)

	tr.Complete(pipeline.RunSummary{Outcomes: []pipeline.Outcome{
		{Domain: "a.example.com", State: pipeline.StateDone, Score: 42, ReportPath: "reports/a_example_com.json"},
		{Domain: "b.example.com", State: pipeline.StateFailed, Err: errors.New("boom")},
		{Domain: "c.example.com", State: pipeline.StatePending},
	}})

	out := buf.String()
	assert.Contains(t, out, "reports/a_example_com.json")
	assert.Contains(t, out, "risk  42")
	assert.Contains(t, out, "not started")
	assert.Contains(t, out, "Processed 3 domain(s): 1 done, 1 failed, 1 skipped")
}

func TestTrackerCompleteAllDone(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, true, 1)

	tr.Complete(pipeline.RunSummary{Outcomes: []pipeline.Outcome{
		{Domain: "a.example.com", State: pipeline.StateDone},
	}})

	assert.Contains(t, buf.String(), "Processed 1 domain(s): 1 done, 0 failed in")
	assert.NotContains(t, buf.String(), "skipped")
}

func TestTrackerDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, false, 1)

	for _, ev := range transitions("example.com", pipeline.StateEnumerating, pipeline.StateFailed) {
		tr.Observe(ev)
	}
	tr.Complete(pipeline.RunSummary{})

	assert.Empty(t, buf.String())
}

func TestTrackerConcurrentObserve(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWithWriter(&buf, true, 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ev := range transitions("example.com", pipeline.StateEnumerating, pipeline.StateDone) {
				tr.Observe(ev)
			}
		}()
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "[20/20]")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "< 1s", formatDuration(500*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m 5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h 10m", formatDuration(2*time.Hour+10*time.Minute))
}
