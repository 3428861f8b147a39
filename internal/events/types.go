// Package events provides event types and publishing infrastructure for pilot.
package events

import (
	"time"

	"github.com/randalmurphal/pilot/internal/plan"
)

// EventType defines the type of event.
type EventType string

const (
	// EventPlanningStarted indicates the planning oracle call began.
	EventPlanningStarted EventType = "planning_started"
	// EventPlanCreated indicates a plan was accepted.
	EventPlanCreated EventType = "plan_created"
	// EventTaskStarted indicates a task entered execution.
	EventTaskStarted EventType = "task_started"
	// EventDebugStarted indicates a debug attempt began for the current task.
	EventDebugStarted EventType = "debug_started"
	// EventTaskCompleted indicates a task settled successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task settled unrecoverably.
	EventTaskFailed EventType = "task_failed"
	// EventExecutionCompleted indicates the session finished with a summary.
	EventExecutionCompleted EventType = "execution_completed"
	// EventExecutionFailed indicates the session terminated without a summary
	// (planning abort, rejection, cancellation).
	EventExecutionFailed EventType = "execution_failed"
)

// Event represents a published event. Data holds one of the typed payloads
// below; payloads are value snapshots, never shared mutable state.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, sessionID string, data any) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Time:      time.Now(),
	}
}

// PlanningStartedData carries the user request that is being planned.
type PlanningStartedData struct {
	Request string `json:"request"`
}

// PlanCreatedData carries a snapshot of the accepted plan.
type PlanCreatedData struct {
	Plan      *plan.Plan `json:"plan"`
	TaskCount int        `json:"task_count"`
}

// TaskStartedData carries the task entering execution and its 1-based step.
type TaskStartedData struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Step   int    `json:"step"`
}

// DebugStartedData carries the debug attempt number (1-based) and the error
// that triggered it.
type DebugStartedData struct {
	TaskID  string `json:"task_id"`
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason"`
}

// TaskCompletedData carries the settled task's result.
type TaskCompletedData struct {
	TaskID string `json:"task_id"`
	Result string `json:"result"`
}

// TaskFailedData carries the settled task's failure reason.
type TaskFailedData struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// ExecutionCompletedData carries the final summary of the session.
type ExecutionCompletedData struct {
	TotalTasks     int           `json:"total_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks"`
	TotalSteps     int           `json:"total_steps"`
	Duration       time.Duration `json:"duration"`
	Success        bool          `json:"success"`
}

// ExecutionFailedData carries the terminal reason.
type ExecutionFailedData struct {
	Reason string `json:"reason"`
}
