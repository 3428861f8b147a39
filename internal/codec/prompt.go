package codec

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/pilot/internal/plan"
	"github.com/randalmurphal/pilot/internal/util"
)

// TaskPromptVersion identifies the prompt/parser pairing. Any change to the
// verdict contract bumps this alongside the parser.
const TaskPromptVersion = "v1"

// TaskSystemPrompt elicits the verdict wire format. Versioned with the
// parser: the enum values and required fields here must match ParseVerdict.
const TaskSystemPrompt = `You are an autonomous coding agent executing one task from a larger plan.
Do the work described in CURRENT TASK, using the prior context to stay
consistent with earlier steps. When you are done, reply with a single JSON
object and nothing else:

{
  "status": "success" | "failed" | "needs-debug",
  "result": "what was accomplished (required, non-empty on success)",
  "log_entries": [{"level": "debug|info|warning|error", "message": "...", "timestamp": "ISO-8601"}],
  "files_changed": [{"path": "...", "action": "created|modified|deleted"}],
  "next_steps": ["optional hints for the next task"],
  "error": {"message": "required when status is failed or needs-debug", "details": "...", "stderr": "..."}
}

Use "needs-debug" when the attempt hit a recoverable problem worth another
try with the error context; use "failed" when the task cannot be completed.
` // version: v1

// sectionCap is the soft byte cap per prompt section. Truncation keeps the
// tail; the most recent output is what the oracle needs.
const sectionCap = 2048

// PromptView is the snapshot the state manager exposes for one task attempt.
type PromptView struct {
	Task           plan.Task
	Step           int // 1-based position in the plan
	TotalSteps     int
	LastStepResult string
	// CompletedSummaries are "id: summary" lines for prior completed tasks.
	CompletedSummaries []string
	// NextSteps are advisory hints carried over from the previous verdict.
	NextSteps []string
	// DebugMode and ErrorLog are set during debug attempts.
	DebugMode    bool
	DebugAttempt int
	ErrorLog     string
	History      []HistoryEntry
}

// FormatTaskPrompt serializes a prompt view into the labeled-section dump
// the oracle consumes. Section order is fixed — current task first, prior
// context, error log, then history — so the history tail lands in the
// oracle's recency window.
func FormatTaskPrompt(view PromptView) string {
	var b strings.Builder

	b.WriteString("## CURRENT TASK\n\n")
	fmt.Fprintf(&b, "ID: %s (step %d of %d)\n", view.Task.ID, view.Step, view.TotalSteps)
	fmt.Fprintf(&b, "Title: %s\n", view.Task.Title)
	if view.Task.RequiresDocSearch {
		b.WriteString("Documentation search: recommended before implementing\n")
	}
	b.WriteString("\n")
	b.WriteString(util.TruncateTail(view.Task.Description, sectionCap))
	b.WriteString("\n")

	if view.LastStepResult != "" || len(view.CompletedSummaries) > 0 || len(view.NextSteps) > 0 {
		b.WriteString("\n## PRIOR CONTEXT\n\n")
		if view.LastStepResult != "" {
			b.WriteString("Last step result:\n")
			b.WriteString(util.TruncateTail(view.LastStepResult, sectionCap))
			b.WriteString("\n")
		}
		if len(view.CompletedSummaries) > 0 {
			b.WriteString("\nCompleted so far:\n")
			b.WriteString(util.TruncateTail(strings.Join(view.CompletedSummaries, "\n"), sectionCap))
			b.WriteString("\n")
		}
		if len(view.NextSteps) > 0 {
			b.WriteString("\nAdvisory hints from the previous step:\n")
			for _, hint := range view.NextSteps {
				fmt.Fprintf(&b, "- %s\n", hint)
			}
		}
	}

	if view.DebugMode && view.ErrorLog != "" {
		b.WriteString("\n## ERROR LOG\n\n")
		fmt.Fprintf(&b, "Debug attempt %d. The previous attempt did not succeed:\n", view.DebugAttempt)
		b.WriteString(util.TruncateTail(view.ErrorLog, sectionCap))
		b.WriteString("\nFix the problem above and complete the task.\n")
	}

	if len(view.History) > 0 {
		b.WriteString("\n## HISTORY\n\n")
		var lines []string
		for _, h := range view.History {
			lines = append(lines, fmt.Sprintf("[%d] %s %s: %s", h.Iteration, h.TaskID, h.Status, h.Summary))
		}
		b.WriteString(util.TruncateTail(strings.Join(lines, "\n"), sectionCap))
		b.WriteString("\n")
	}

	return b.String()
}
