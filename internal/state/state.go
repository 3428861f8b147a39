// Package state provides the session state manager: the sole custodian of
// mutable session state, exposing named transitions for writers and
// LLM-facing views for prompt construction.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/plan"
)

// Phase represents the session lifecycle phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

const (
	// summaryLen caps history entry summaries.
	summaryLen = 200
	// DefaultHistoryCap bounds the LLM-facing history view.
	DefaultHistoryCap = 20
)

// Manager owns all mutable state for one session. One Manager per
// orchestrator; the owning orchestrator is the only writer. The mutex exists
// so observers (event renderers, exporters) can snapshot concurrently.
type Manager struct {
	mu sync.Mutex

	sessionID string
	plan      *plan.Plan
	cursor    int
	phase     Phase
	completed []string // task IDs ordered by completion
	history   []codec.HistoryEntry
	logs      []codec.LogEntry
	lastError *codec.VerdictError
	debugMode bool
	nextSteps []string // advisory hints from the last successful verdict

	// attempts counts oracle attempts for the current task; it feeds the
	// history iteration index and resets on NextStep.
	attempts int

	historyCap int
	createdAt  time.Time
	updatedAt  time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithHistoryCap sets the bound on the LLM-facing history view.
func WithHistoryCap(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyCap = n
		}
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(m *Manager) {
		if id != "" {
			m.sessionID = id
		}
	}
}

// NewManager creates an idle manager with a fresh session identifier.
func NewManager(opts ...Option) *Manager {
	now := time.Now()
	m := &Manager{
		sessionID:  uuid.New().String(),
		phase:      PhaseIdle,
		historyCap: DefaultHistoryCap,
		createdAt:  now,
		updatedAt:  now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the session identifier.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Plan returns a deep copy of the accepted plan, or nil before SetPlan.
func (m *Manager) Plan() *plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan.Clone()
}

// Cursor returns the index of the current task.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// InDebugMode reports whether the session is between debug attempts.
func (m *Manager) InDebugMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debugMode
}

// SetPlan accepts an ordered task list. Allowed exactly once, before
// StartExecution. The plan is normalized: validation failures return
// PLAN_INVALID, and an out-of-order dependency listing is silently sorted.
func (m *Manager) SetPlan(p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle && m.phase != PhasePlanning {
		return errors.ErrStateInvariant(fmt.Sprintf("SetPlan in phase %s", m.phase))
	}
	if m.plan != nil {
		return errors.ErrStateInvariant("plan already set")
	}

	accepted := p.Clone()
	if err := accepted.Normalize(); err != nil {
		return err
	}
	for i := range accepted.Tasks {
		if accepted.Tasks[i].Status == "" {
			accepted.Tasks[i].Status = plan.StatusPending
		}
	}

	m.plan = accepted
	m.touch()
	return nil
}

// StartExecution transitions idle→executing and points the cursor at the
// first task.
func (m *Manager) StartExecution() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return errors.ErrStateInvariant("StartExecution without a plan")
	}
	if m.phase != PhaseIdle && m.phase != PhasePlanning {
		return errors.ErrStateInvariant(fmt.Sprintf("StartExecution in phase %s", m.phase))
	}

	m.phase = PhaseExecuting
	m.cursor = 0
	m.attempts = 0
	m.touch()
	return nil
}

// CurrentTask returns a copy of the task at the cursor, or false when the
// plan is exhausted.
func (m *Manager) CurrentTask() (plan.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *Manager) currentLocked() (plan.Task, bool) {
	if m.plan == nil || m.cursor >= len(m.plan.Tasks) {
		return plan.Task{}, false
	}
	t := m.plan.Tasks[m.cursor]
	if len(t.Dependencies) > 0 {
		deps := make([]string, len(t.Dependencies))
		copy(deps, t.Dependencies)
		t.Dependencies = deps
	}
	return t, true
}

// BeginTask marks the current task in-progress and stamps its start time.
// Idempotent across debug attempts of the same task.
func (m *Manager) BeginTask(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.currentMutableLocked(taskID)
	if err != nil {
		return err
	}
	if task.Status == plan.StatusPending {
		now := time.Now()
		task.Status = plan.StatusInProgress
		task.StartedAt = &now
	}
	m.touch()
	return nil
}

// RecordSuccess settles the current task as completed with the verdict's
// result: logs are appended, a completed history entry is pushed, and the
// last-error slot and debug flag are cleared.
func (m *Manager) RecordSuccess(taskID string, v *codec.Verdict) error {
	return m.recordCompletion(taskID, v, "completed")
}

// RecordDebug settles the current task as completed from within debug mode.
// Identical to RecordSuccess except the history entry reads "debug", so the
// oracle can see later that this step needed correction; downstream state is
// indistinguishable from a first-try success.
func (m *Manager) RecordDebug(taskID string, v *codec.Verdict) error {
	return m.recordCompletion(taskID, v, "debug")
}

func (m *Manager) recordCompletion(taskID string, v *codec.Verdict, historyStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.currentMutableLocked(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = plan.StatusCompleted
	task.Result = v.Result
	task.Error = ""
	task.FinishedAt = &now

	m.logs = append(m.logs, v.LogEntries...)
	m.attempts++
	m.history = append(m.history, codec.HistoryEntry{
		TaskID:    taskID,
		Status:    historyStatus,
		Summary:   summarize(v.Result),
		Iteration: m.attempts,
	})
	m.completed = append(m.completed, taskID)
	m.lastError = nil
	m.debugMode = false
	m.nextSteps = append([]string(nil), v.NextSteps...)
	m.touch()
	return nil
}

// RecordFailure records a non-success attempt for the current task: the task
// is marked failed, the last-error slot is written for the next debug
// prompt, and a failed history entry is pushed. The cursor does not advance;
// a later RecordDebug may still settle the task as completed.
func (m *Manager) RecordFailure(taskID string, verr *codec.VerdictError) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.currentMutableLocked(taskID)
	if err != nil {
		return err
	}
	if verr == nil || verr.Message == "" {
		return errors.ErrStateInvariant("RecordFailure without an error message")
	}

	task.Status = plan.StatusFailed
	task.Error = verr.Message

	// Per-attempt errors stay inspectable through the aggregated log list.
	m.logs = append(m.logs, codec.LogEntry{
		Level:     codec.LevelError,
		Message:   fmt.Sprintf("task %s: %s", taskID, verr.Message),
		Timestamp: time.Now(),
	})

	m.attempts++
	m.lastError = &codec.VerdictError{
		Message: verr.Message,
		Details: verr.Details,
		Stderr:  verr.Stderr,
	}
	m.history = append(m.history, codec.HistoryEntry{
		TaskID:    taskID,
		Status:    "failed",
		Summary:   summarize(verr.Message),
		Iteration: m.attempts,
	})
	m.touch()
	return nil
}

// EnterDebugMode flags the session as debugging the current task.
func (m *Manager) EnterDebugMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseExecuting {
		return errors.ErrStateInvariant(fmt.Sprintf("EnterDebugMode in phase %s", m.phase))
	}
	m.debugMode = true
	m.touch()
	return nil
}

// NextStep advances the cursor past a completed task. Returns true when more
// tasks remain; otherwise the session transitions to completed and it
// returns false.
func (m *Manager) NextStep() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseExecuting {
		return false, errors.ErrStateInvariant(fmt.Sprintf("NextStep in phase %s", m.phase))
	}
	current, ok := m.currentLocked()
	if !ok {
		return false, errors.ErrStateInvariant("NextStep past the end of the plan")
	}
	if current.Status != plan.StatusCompleted {
		return false, errors.ErrStateInvariant(fmt.Sprintf("NextStep with current task %s in status %s", current.ID, current.Status))
	}

	m.cursor++
	m.attempts = 0
	m.touch()

	if m.cursor >= len(m.plan.Tasks) {
		m.phase = PhaseCompleted
		return false, nil
	}
	return true, nil
}

// MarkFailed terminates the session. Idempotent when already failed; any
// other transition after this returns STATE_INVARIANT.
func (m *Manager) MarkFailed(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseFailed {
		return nil
	}
	if m.phase == PhaseCompleted {
		return errors.ErrStateInvariant("MarkFailed on a completed session")
	}

	m.phase = PhaseFailed
	if reason != "" {
		m.lastError = &codec.VerdictError{Message: reason}
	}
	m.touch()
	return nil
}

// LastStepResult returns the result of the most recently completed task,
// or false when no task has completed yet.
func (m *Manager) LastStepResult() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.completed) == 0 {
		return "", false
	}
	last := m.plan.TaskByID(m.completed[len(m.completed)-1])
	if last == nil {
		return "", false
	}
	return last.Result, true
}

// LastError returns a copy of the last-error slot, or nil.
func (m *Manager) LastError() *codec.VerdictError {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastError == nil {
		return nil
	}
	cp := *m.lastError
	return &cp
}

// HistoryForLLM returns the most recent history entries, bounded by the
// configured cap.
func (m *Manager) HistoryForLLM() []codec.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if len(m.history) > m.historyCap {
		start = len(m.history) - m.historyCap
	}
	out := make([]codec.HistoryEntry, len(m.history)-start)
	copy(out, m.history[start:])
	return out
}

// AllLogEntries returns a copy of the append-only aggregated log list.
func (m *Manager) AllLogEntries() []codec.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]codec.LogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

// CompletedCount returns how many tasks have completed.
func (m *Manager) CompletedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completed)
}

// PromptView assembles the snapshot the codec formats into a task prompt:
// current task, prior context, error log when debugging, bounded history.
func (m *Manager) PromptView() (codec.PromptView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.currentLocked()
	if !ok {
		return codec.PromptView{}, errors.ErrStateInvariant("PromptView with no current task")
	}

	view := codec.PromptView{
		Task:       current,
		Step:       m.cursor + 1,
		TotalSteps: len(m.plan.Tasks),
		DebugMode:  m.debugMode,
		NextSteps:  append([]string(nil), m.nextSteps...),
	}

	for _, id := range m.completed {
		if t := m.plan.TaskByID(id); t != nil {
			view.CompletedSummaries = append(view.CompletedSummaries,
				fmt.Sprintf("%s: %s", t.ID, summarize(t.Result)))
		}
	}
	if len(m.completed) > 0 {
		if last := m.plan.TaskByID(m.completed[len(m.completed)-1]); last != nil {
			view.LastStepResult = last.Result
		}
	}

	if m.debugMode && m.lastError != nil {
		view.DebugAttempt = m.attempts
		view.ErrorLog = formatErrorLog(m.lastError)
	}

	start := 0
	if len(m.history) > m.historyCap {
		start = len(m.history) - m.historyCap
	}
	view.History = append(view.History, m.history[start:]...)

	return view, nil
}

// currentMutableLocked returns the mutable current task after asserting the
// caller-supplied identifier matches. A mismatch is a caller bug, never a
// retry case.
func (m *Manager) currentMutableLocked(taskID string) (*plan.Task, error) {
	if m.phase != PhaseExecuting {
		return nil, errors.ErrStateInvariant(fmt.Sprintf("task transition in phase %s", m.phase))
	}
	if m.plan == nil || m.cursor >= len(m.plan.Tasks) {
		return nil, errors.ErrStateInvariant("task transition with no current task")
	}
	task := &m.plan.Tasks[m.cursor]
	if task.ID != taskID {
		return nil, errors.ErrStateInvariant(fmt.Sprintf("transition for task %q but current task is %q", taskID, task.ID))
	}
	return task, nil
}

func (m *Manager) touch() {
	m.updatedAt = time.Now()
}

func summarize(s string) string {
	return truncateSummary(s, summaryLen)
}

func truncateSummary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatErrorLog(verr *codec.VerdictError) string {
	out := verr.Message
	if verr.Details != "" {
		out += "\n\nDetails:\n" + verr.Details
	}
	if verr.Stderr != "" {
		out += "\n\nStderr:\n" + verr.Stderr
	}
	return out
}
