// Package progress renders per-domain pipeline progress on the console.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/yajur-khanna/asm-tool/internal/pipeline"
)

// Tracker prints one line per domain state change and a summary at the end.
// It is safe for concurrent use by pipeline workers.
type Tracker struct {
	out       io.Writer
	total     int
	started   map[string]time.Time
	finished  int
	startTime time.Time
	mu        sync.Mutex
	enabled   bool
}

// New creates a tracker writing to stdout. A disabled tracker prints nothing.
func New(enabled bool, total int) *Tracker {
	return NewWithWriter(os.Stdout, enabled, total)
}

func NewWithWriter(out io.Writer, enabled bool, total int) *Tracker {
	return &Tracker{
		out:       out,
		total:     total,
		started:   make(map[string]time.Time),
		startTime: time.Now(),
		enabled:   enabled,
	}
}

// Observe implements pipeline.Observer.
func (t *Tracker) Observe(tr pipeline.Transition) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch tr.To {
	case pipeline.StateEnumerating:
		t.started[tr.Domain] = tr.At
		fmt.Fprintf(t.out, "%s %s %s\n", t.counter(), icon(tr.To), tr.Domain)
	case pipeline.StateDone:
		t.finished++
		fmt.Fprintf(t.out, "%s %s %s %s\n", t.counter(), icon(tr.To), tr.Domain,
			color.New(color.Faint).Sprintf("(%s)", formatDuration(tr.At.Sub(t.started[tr.Domain]))))
	case pipeline.StateFailed:
		t.finished++
		fmt.Fprintf(t.out, "%s %s %s failed while %s\n", t.counter(), icon(tr.To), tr.Domain, tr.From)
		if tr.Err != nil {
			color.New(color.FgRed).Fprintf(t.out, "    Error: %v\n", tr.Err)
		}
	default:
		fmt.Fprintf(t.out, "      %s %s %s\n", icon(tr.To), tr.Domain, tr.To)
	}
}

func (t *Tracker) counter() string {
	if t.total <= 0 {
		return fmt.Sprintf("[%d]", t.finished)
	}
	return fmt.Sprintf("[%d/%d]", t.finished, t.total)
}

func icon(s pipeline.State) string {
	switch s {
	case pipeline.StateDone:
		return color.New(color.FgGreen).Sprint("✓")
	case pipeline.StateFailed:
		return color.New(color.FgRed).Sprint("✗")
	default:
		return color.New(color.FgYellow).Sprint("⟳")
	}
}

// Complete prints the per-domain table and the final count line.
func (t *Tracker) Complete(sum pipeline.RunSummary) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	for _, o := range sum.Outcomes {
		switch o.State {
		case pipeline.StateDone:
			fmt.Fprintf(t.out, "  %s %-40s risk %3d  %s\n", icon(o.State), o.Domain, o.Score, color.CyanString(o.ReportPath))
		case pipeline.StateFailed:
			fmt.Fprintf(t.out, "  %s %-40s %v\n", icon(o.State), o.Domain, o.Err)
		default:
			fmt.Fprintf(t.out, "  %s %-40s not started\n", color.New(color.Faint).Sprint("-"), o.Domain)
		}
	}

	line := fmt.Sprintf("Processed %d domain(s): %d done, %d failed", sum.Total(), sum.DoneCount(), sum.FailedCount())
	if skipped := sum.SkippedCount(); skipped > 0 {
		line += fmt.Sprintf(", %d skipped", skipped)
	}
	line += fmt.Sprintf(" in %s", formatDuration(time.Since(t.startTime)))

	if sum.Succeeded() {
		color.New(color.FgGreen, color.Bold).Fprintln(t.out, line)
	} else {
		color.New(color.FgYellow, color.Bold).Fprintln(t.out, line)
	}
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
