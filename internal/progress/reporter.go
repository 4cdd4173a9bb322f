// Package progress renders evaluation run events for the terminal.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/promptlab/internal/eval"
)

// Reporter provides progress feedback during an evaluation run.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Log(message string)
	Finish(status eval.RunStatus)
}

// NewReporter returns a TerminalReporter if running in an interactive
// terminal, or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// Consume drains a run's event channel into the reporter and returns
// the terminal status.
func Consume(run *eval.Run, r Reporter) eval.RunStatus {
	status := eval.StatusFailed
	started := false
	for ev := range run.Events {
		switch ev.Type {
		case eval.EventStateUpdate:
			if !started && ev.Total > 0 {
				r.Start(ev.Total)
				started = true
			}
			if ev.Stage != "" {
				r.Update(-1, fmt.Sprintf("loop %d: %s (%s)", ev.Loop, ev.Framework, ev.Stage))
			}
		case eval.EventUpdate:
			r.Update(ev.Completed, "")
		case eval.EventLog:
			r.Log(ev.Message)
		case eval.EventSkip:
			r.Log("skipped: " + ev.Error)
		case eval.EventError:
			r.Log("error: " + ev.Error)
		case eval.EventDone:
			status = ev.Status
			r.Finish(ev.Status)
		}
	}
	return status
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Evaluating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar == nil {
		return
	}
	if message != "" {
		r.bar.Describe(message)
	}
	if current >= 0 {
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Log(message string) {
	if r.bar != nil {
		_ = r.bar.Clear()
	}
	fmt.Fprintln(os.Stderr, message)
}

func (r *TerminalReporter) Finish(status eval.RunStatus) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Fprintf(os.Stderr, "Run %s\n", status)
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	total int
}

func (r *CIReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(os.Stderr, "Starting evaluation: %d task(s)\n", total)
}

func (r *CIReporter) Update(current int, message string) {
	if current >= 0 {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, r.total, message)
	}
}

func (r *CIReporter) Log(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func (r *CIReporter) Finish(status eval.RunStatus) {
	fmt.Fprintf(os.Stderr, "Evaluation finished: %s\n", status)
}
