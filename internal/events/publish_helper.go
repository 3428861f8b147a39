package events

import (
	"time"

	"github.com/randalmurphal/pilot/internal/plan"
)

// PublishHelper wraps event publishing with nil-safety and convenience
// methods for the orchestrator's event set. All methods are safe to call
// even when the underlying publisher is nil.
//
// Thread-safe: all methods can be called concurrently.
type PublishHelper struct {
	publisher Publisher
	sessionID string
}

// NewPublishHelper creates a PublishHelper bound to one session.
// If p is nil, all publish operations become no-ops.
func NewPublishHelper(p Publisher, sessionID string) *PublishHelper {
	return &PublishHelper{publisher: p, sessionID: sessionID}
}

// Publish sends an event to the underlying publisher.
// Safe to call with nil publisher (no-op).
func (ep *PublishHelper) Publish(ev Event) {
	if ep == nil || ep.publisher == nil {
		return
	}
	ep.publisher.Publish(ev)
}

// PlanningStarted publishes a planning-started event.
func (ep *PublishHelper) PlanningStarted(request string) {
	ep.publish(EventPlanningStarted, PlanningStartedData{Request: request})
}

// PlanCreated publishes a plan-created event with a snapshot of the plan.
func (ep *PublishHelper) PlanCreated(p *plan.Plan) {
	ep.publish(EventPlanCreated, PlanCreatedData{
		Plan:      p.Clone(),
		TaskCount: len(p.Tasks),
	})
}

// TaskStarted publishes a task-started event. Step is 1-based.
func (ep *PublishHelper) TaskStarted(t plan.Task, step int) {
	ep.publish(EventTaskStarted, TaskStartedData{
		TaskID: t.ID,
		Title:  t.Title,
		Step:   step,
	})
}

// DebugStarted publishes a debug-started event for the given attempt.
func (ep *PublishHelper) DebugStarted(taskID string, attempt int, reason string) {
	ep.publish(EventDebugStarted, DebugStartedData{
		TaskID:  taskID,
		Attempt: attempt,
		Reason:  reason,
	})
}

// TaskCompleted publishes a task-completed event with the result.
func (ep *PublishHelper) TaskCompleted(taskID, result string) {
	ep.publish(EventTaskCompleted, TaskCompletedData{
		TaskID: taskID,
		Result: result,
	})
}

// TaskFailed publishes a task-failed event with the failure reason.
func (ep *PublishHelper) TaskFailed(taskID, reason string) {
	ep.publish(EventTaskFailed, TaskFailedData{
		TaskID: taskID,
		Reason: reason,
	})
}

// ExecutionCompleted publishes the terminal summary event.
func (ep *PublishHelper) ExecutionCompleted(total, completed, failed, steps int, duration time.Duration, success bool) {
	ep.publish(EventExecutionCompleted, ExecutionCompletedData{
		TotalTasks:     total,
		CompletedTasks: completed,
		FailedTasks:    failed,
		TotalSteps:     steps,
		Duration:       duration,
		Success:        success,
	})
}

// ExecutionFailed publishes the terminal failure event.
func (ep *PublishHelper) ExecutionFailed(reason string) {
	ep.publish(EventExecutionFailed, ExecutionFailedData{Reason: reason})
}

func (ep *PublishHelper) publish(eventType EventType, data any) {
	if ep == nil || ep.publisher == nil {
		return
	}
	ep.publisher.Publish(NewEvent(eventType, ep.sessionID, data))
}
