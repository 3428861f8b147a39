package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/randalmurphal/pilot/internal/events"
)

// ANSI codes used by the renderer when stdout is a terminal.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// renderer prints the event stream as a compact progress narrative.
type renderer struct {
	out   io.Writer
	color bool
}

func newRenderer(out io.Writer) *renderer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &renderer{out: out, color: color}
}

// Render consumes events until the channel closes.
func (r *renderer) Render(ch <-chan events.Event) {
	for ev := range ch {
		r.renderOne(ev)
	}
}

func (r *renderer) renderOne(ev events.Event) {
	switch ev.Type {
	case events.EventPlanningStarted:
		r.printf(colorCyan, "◆ planning...")
	case events.EventPlanCreated:
		if data, ok := ev.Data.(events.PlanCreatedData); ok {
			r.printf(colorCyan, "◆ plan ready: %d task(s)", data.TaskCount)
			for i, t := range data.Plan.Tasks {
				r.printf(colorDim, "    %d. %s", i+1, t.Title)
			}
		}
	case events.EventTaskStarted:
		if data, ok := ev.Data.(events.TaskStartedData); ok {
			r.printf(colorCyan, "▶ [%d] %s", data.Step, data.Title)
		}
	case events.EventDebugStarted:
		if data, ok := ev.Data.(events.DebugStartedData); ok {
			r.printf(colorYellow, "  ↻ debug attempt %d: %s", data.Attempt, data.Reason)
		}
	case events.EventTaskCompleted:
		if data, ok := ev.Data.(events.TaskCompletedData); ok {
			r.printf(colorGreen, "  ✓ %s", firstLine(data.Result))
		}
	case events.EventTaskFailed:
		if data, ok := ev.Data.(events.TaskFailedData); ok {
			r.printf(colorRed, "  ✗ %s", data.Reason)
		}
	case events.EventExecutionCompleted:
		if data, ok := ev.Data.(events.ExecutionCompletedData); ok {
			if data.Success {
				r.printf(colorGreen, "■ done: %d/%d tasks in %s (%d oracle calls)",
					data.CompletedTasks, data.TotalTasks,
					data.Duration.Round(time.Second), data.TotalSteps)
			} else {
				r.printf(colorRed, "■ stopped: %d/%d tasks completed, %d failed",
					data.CompletedTasks, data.TotalTasks, data.FailedTasks)
			}
		}
	case events.EventExecutionFailed:
		if data, ok := ev.Data.(events.ExecutionFailedData); ok {
			r.printf(colorRed, "■ aborted: %s", data.Reason)
		}
	}
}

func (r *renderer) printf(color, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.color {
		fmt.Fprintf(r.out, "%s%s%s\n", color, msg, colorReset)
	} else {
		fmt.Fprintln(r.out, msg)
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
