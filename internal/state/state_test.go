package state

import (
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/plan"
)

func twoTaskPlan() *plan.Plan {
	return &plan.Plan{
		Tasks: []plan.Task{
			{ID: "a", Title: "first"},
			{ID: "b", Title: "second", Dependencies: []string{"a"}},
		},
		Complexity: plan.ComplexitySimple,
	}
}

func successVerdict(result string) *codec.Verdict {
	return &codec.Verdict{
		Status: codec.VerdictSuccess,
		Result: result,
		LogEntries: []codec.LogEntry{
			{Level: codec.LevelInfo, Message: "log for " + result, Timestamp: time.Now()},
		},
	}
}

func executing(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	if err := m.SetPlan(twoTaskPlan()); err != nil {
		t.Fatalf("SetPlan failed: %v", err)
	}
	if err := m.StartExecution(); err != nil {
		t.Fatalf("StartExecution failed: %v", err)
	}
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager()
	if m.SessionID() == "" {
		t.Error("expected generated session id")
	}
	if m.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", m.Phase())
	}
}

func TestSetPlan_RejectsInvalid(t *testing.T) {
	m := NewManager()
	err := m.SetPlan(&plan.Plan{Tasks: []plan.Task{
		{ID: "a", Dependencies: []string{"a"}},
	}})
	if perr := errors.AsPilotError(err); perr == nil || perr.Code != errors.CodePlanInvalid {
		t.Errorf("expected PLAN_INVALID, got %v", err)
	}
}

func TestSetPlan_OnlyOnce(t *testing.T) {
	m := NewManager()
	if err := m.SetPlan(twoTaskPlan()); err != nil {
		t.Fatalf("first SetPlan failed: %v", err)
	}
	if err := m.SetPlan(twoTaskPlan()); err == nil {
		t.Error("second SetPlan should fail")
	}
}

func TestSetPlan_RejectedAfterStart(t *testing.T) {
	m := executing(t)
	err := m.SetPlan(twoTaskPlan())
	if perr := errors.AsPilotError(err); perr == nil || perr.Code != errors.CodeStateInvariant {
		t.Errorf("expected STATE_INVARIANT, got %v", err)
	}
}

func TestSetPlan_NormalizesOutOfOrder(t *testing.T) {
	m := NewManager()
	err := m.SetPlan(&plan.Plan{Tasks: []plan.Task{
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "a"},
	}})
	if err != nil {
		t.Fatalf("SetPlan failed: %v", err)
	}
	p := m.Plan()
	if p.Tasks[0].ID != "a" || !p.Reordered {
		t.Errorf("plan not normalized: %+v", p.Tasks)
	}
}

func TestRecordSuccess_FullEffect(t *testing.T) {
	m := executing(t)
	if err := m.BeginTask("a"); err != nil {
		t.Fatalf("BeginTask failed: %v", err)
	}

	v := successVerdict("X=42")
	v.NextSteps = []string{"use the 42"}
	if err := m.RecordSuccess("a", v); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	task := m.Plan().TaskByID("a")
	if task.Status != plan.StatusCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}
	if task.Result != "X=42" {
		t.Errorf("result = %q", task.Result)
	}
	if task.StartedAt == nil || task.FinishedAt == nil {
		t.Error("timestamps not stamped")
	}

	if got, ok := m.LastStepResult(); !ok || got != "X=42" {
		t.Errorf("LastStepResult = %q, %v", got, ok)
	}
	if len(m.AllLogEntries()) != 1 {
		t.Errorf("logs = %d entries, want 1", len(m.AllLogEntries()))
	}
	hist := m.HistoryForLLM()
	if len(hist) != 1 || hist[0].Status != "completed" || hist[0].TaskID != "a" {
		t.Errorf("history = %+v", hist)
	}
	if m.LastError() != nil {
		t.Error("last error should be cleared on success")
	}
}

func TestRecordSuccess_WrongTaskIsFatal(t *testing.T) {
	m := executing(t)
	err := m.RecordSuccess("b", successVerdict("x"))
	if perr := errors.AsPilotError(err); perr == nil || perr.Code != errors.CodeStateInvariant {
		t.Errorf("expected STATE_INVARIANT, got %v", err)
	}
}

func TestRecordFailure_KeepsCursorAndWritesLastError(t *testing.T) {
	m := executing(t)
	err := m.RecordFailure("a", &codec.VerdictError{Message: "syntax error", Stderr: "line 3"})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	if m.Cursor() != 0 {
		t.Error("RecordFailure must not advance the cursor")
	}
	if m.Plan().TaskByID("a").Status != plan.StatusFailed {
		t.Error("task should be marked failed")
	}
	if le := m.LastError(); le == nil || le.Message != "syntax error" {
		t.Errorf("LastError = %+v", le)
	}
	hist := m.HistoryForLLM()
	if len(hist) != 1 || hist[0].Status != "failed" {
		t.Errorf("history = %+v", hist)
	}
}

func TestRecordDebug_SettlesTaskLikeSuccess(t *testing.T) {
	m := executing(t)
	if err := m.RecordFailure("a", &codec.VerdictError{Message: "first try failed"}); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := m.EnterDebugMode(); err != nil {
		t.Fatalf("EnterDebugMode failed: %v", err)
	}
	if err := m.RecordDebug("a", successVerdict("fixed")); err != nil {
		t.Fatalf("RecordDebug failed: %v", err)
	}

	task := m.Plan().TaskByID("a")
	if task.Status != plan.StatusCompleted || task.Result != "fixed" || task.Error != "" {
		t.Errorf("task after debug success = %+v", task)
	}
	if m.InDebugMode() {
		t.Error("debug mode should clear on success")
	}
	if m.LastError() != nil {
		t.Error("last error should clear on success")
	}

	hist := m.HistoryForLLM()
	if len(hist) != 2 {
		t.Fatalf("history has %d entries, want 2", len(hist))
	}
	if hist[1].Status != "debug" {
		t.Errorf("history status = %s, want debug", hist[1].Status)
	}
	if hist[1].Iteration != 2 {
		t.Errorf("iteration = %d, want 2", hist[1].Iteration)
	}

	// Downstream: a debug success is indistinguishable from first-try success.
	if got, ok := m.LastStepResult(); !ok || got != "fixed" {
		t.Errorf("LastStepResult = %q, %v", got, ok)
	}
}

func TestNextStep_AdvancesAndCompletes(t *testing.T) {
	m := executing(t)
	if err := m.RecordSuccess("a", successVerdict("one")); err != nil {
		t.Fatal(err)
	}

	more, err := m.NextStep()
	if err != nil || !more {
		t.Fatalf("NextStep = %v, %v; want true, nil", more, err)
	}
	if cur, ok := m.CurrentTask(); !ok || cur.ID != "b" {
		t.Errorf("current task = %v, %v", cur, ok)
	}

	if err := m.RecordSuccess("b", successVerdict("two")); err != nil {
		t.Fatal(err)
	}
	more, err = m.NextStep()
	if err != nil || more {
		t.Fatalf("NextStep = %v, %v; want false, nil", more, err)
	}
	if m.Phase() != PhaseCompleted {
		t.Errorf("phase = %s, want completed", m.Phase())
	}
}

func TestNextStep_RequiresCompletedTask(t *testing.T) {
	m := executing(t)
	if _, err := m.NextStep(); err == nil {
		t.Error("NextStep with pending current task should fail")
	}
}

func TestMarkFailed_Terminal(t *testing.T) {
	m := executing(t)
	if err := m.MarkFailed("cancelled"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if m.Phase() != PhaseFailed {
		t.Errorf("phase = %s, want failed", m.Phase())
	}
	if le := m.LastError(); le == nil || le.Message != "cancelled" {
		t.Errorf("LastError = %+v", le)
	}

	// Idempotent on failed, but no other transitions accepted.
	if err := m.MarkFailed("again"); err != nil {
		t.Errorf("second MarkFailed should be a no-op, got %v", err)
	}
	if err := m.RecordSuccess("a", successVerdict("x")); err == nil {
		t.Error("transition after terminal phase should fail")
	}
	if err := m.EnterDebugMode(); err == nil {
		t.Error("EnterDebugMode after terminal phase should fail")
	}
}

func TestHistoryForLLM_Bounded(t *testing.T) {
	m := NewManager(WithHistoryCap(3))
	if err := m.SetPlan(&plan.Plan{Tasks: []plan.Task{{ID: "a"}}}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartExecution(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := m.RecordFailure("a", &codec.VerdictError{Message: "attempt failed"}); err != nil {
			t.Fatal(err)
		}
	}

	hist := m.HistoryForLLM()
	if len(hist) != 3 {
		t.Fatalf("history view = %d entries, want 3", len(hist))
	}
	// Most recent entries survive the cap.
	if hist[2].Iteration != 5 {
		t.Errorf("last iteration = %d, want 5", hist[2].Iteration)
	}
}

func TestLogs_AppendOnlyPrefixStable(t *testing.T) {
	m := executing(t)
	if err := m.RecordSuccess("a", successVerdict("one")); err != nil {
		t.Fatal(err)
	}
	before := m.AllLogEntries()

	if _, err := m.NextStep(); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordSuccess("b", successVerdict("two")); err != nil {
		t.Fatal(err)
	}
	after := m.AllLogEntries()

	if len(after) <= len(before) {
		t.Fatalf("log list did not grow: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("log entry %d mutated: %+v vs %+v", i, before[i], after[i])
		}
	}
}

func TestPromptView_CarriesContext(t *testing.T) {
	m := executing(t)
	v := successVerdict("X=42")
	v.NextSteps = []string{"carry the 42"}
	if err := m.RecordSuccess("a", v); err != nil {
		t.Fatal(err)
	}
	if _, err := m.NextStep(); err != nil {
		t.Fatal(err)
	}

	view, err := m.PromptView()
	if err != nil {
		t.Fatalf("PromptView failed: %v", err)
	}
	if view.Task.ID != "b" || view.Step != 2 || view.TotalSteps != 2 {
		t.Errorf("view position = %+v", view)
	}
	if view.LastStepResult != "X=42" {
		t.Errorf("LastStepResult = %q", view.LastStepResult)
	}
	if len(view.CompletedSummaries) != 1 || !strings.HasPrefix(view.CompletedSummaries[0], "a:") {
		t.Errorf("CompletedSummaries = %v", view.CompletedSummaries)
	}
	if len(view.NextSteps) != 1 {
		t.Errorf("NextSteps = %v", view.NextSteps)
	}
	if view.DebugMode || view.ErrorLog != "" {
		t.Error("fresh task view should not be in debug mode")
	}
}

func TestPromptView_DebugIncludesErrorLog(t *testing.T) {
	m := executing(t)
	if err := m.RecordFailure("a", &codec.VerdictError{Message: "boom", Stderr: "trace"}); err != nil {
		t.Fatal(err)
	}
	if err := m.EnterDebugMode(); err != nil {
		t.Fatal(err)
	}

	view, err := m.PromptView()
	if err != nil {
		t.Fatal(err)
	}
	if !view.DebugMode || view.DebugAttempt != 1 {
		t.Errorf("debug view = %+v", view)
	}
	if !strings.Contains(view.ErrorLog, "boom") || !strings.Contains(view.ErrorLog, "trace") {
		t.Errorf("ErrorLog = %q", view.ErrorLog)
	}
}

func TestSummaryTruncation(t *testing.T) {
	m := executing(t)
	long := strings.Repeat("r", 500)
	if err := m.RecordSuccess("a", successVerdict(long)); err != nil {
		t.Fatal(err)
	}
	hist := m.HistoryForLLM()
	if len(hist[0].Summary) > 200 {
		t.Errorf("summary length = %d, want <= 200", len(hist[0].Summary))
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	m := executing(t)
	if err := m.RecordFailure("a", &codec.VerdictError{Message: "first failure"}); err != nil {
		t.Fatal(err)
	}
	if err := m.EnterDebugMode(); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordDebug("a", successVerdict("recovered")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.NextStep(); err != nil {
		t.Fatal(err)
	}

	snap := m.Export()
	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot failed: %v", err)
	}
	decoded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot failed: %v", err)
	}

	restored, err := Import(decoded)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if restored.SessionID() != m.SessionID() {
		t.Error("session id not preserved")
	}
	if restored.Phase() != m.Phase() || restored.Cursor() != m.Cursor() {
		t.Error("phase/cursor not preserved")
	}
	if got, _ := restored.LastStepResult(); got != "recovered" {
		t.Errorf("LastStepResult after import = %q", got)
	}
	if len(restored.HistoryForLLM()) != len(m.HistoryForLLM()) {
		t.Error("history not preserved")
	}
	if !restored.Export().CreatedAt.Equal(snap.CreatedAt) {
		t.Error("createdAt not preserved")
	}

	// Subsequent transitions are observationally identical.
	if err := m.RecordSuccess("b", successVerdict("final")); err != nil {
		t.Fatal(err)
	}
	if err := restored.RecordSuccess("b", successVerdict("final")); err != nil {
		t.Fatalf("restored manager rejected the same transition: %v", err)
	}
	more1, err1 := m.NextStep()
	more2, err2 := restored.NextStep()
	if more1 != more2 || (err1 == nil) != (err2 == nil) {
		t.Error("restored manager diverged from original")
	}
	if restored.Phase() != m.Phase() {
		t.Errorf("phases diverged: %s vs %s", restored.Phase(), m.Phase())
	}
}

func TestExport_IsImmutableCopy(t *testing.T) {
	m := executing(t)
	snap := m.Export()
	snap.Plan.Tasks[0].Status = plan.StatusFailed
	snap.Completed = append(snap.Completed, "rogue")

	if m.Plan().Tasks[0].Status == plan.StatusFailed {
		t.Error("export shares plan state with the manager")
	}
	if m.CompletedCount() != 0 {
		t.Error("export shares completed list with the manager")
	}
}

func TestImport_RejectsBadSnapshots(t *testing.T) {
	if _, err := Import(nil); err == nil {
		t.Error("nil snapshot should fail")
	}
	if _, err := Import(&Snapshot{Phase: PhaseIdle}); err == nil {
		t.Error("snapshot without session id should fail")
	}
	if _, err := Import(&Snapshot{SessionID: "s", Phase: "weird"}); err == nil {
		t.Error("unknown phase should fail")
	}
	if _, err := Import(&Snapshot{
		SessionID: "s",
		Phase:     PhaseExecuting,
		Plan:      &plan.Plan{Tasks: []plan.Task{{ID: "a"}}},
		Cursor:    5,
	}); err == nil {
		t.Error("out-of-range cursor should fail")
	}
}
