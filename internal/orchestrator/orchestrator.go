// Package orchestrator binds the planner, state manager, and task runner
// into a single entrypoint that turns a user request into a finished
// session: plan once, then execute tasks strictly in order.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/events"
	"github.com/randalmurphal/pilot/internal/executor"
	"github.com/randalmurphal/pilot/internal/gate"
	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/plan"
	"github.com/randalmurphal/pilot/internal/planner"
	"github.com/randalmurphal/pilot/internal/state"
)

// cancelledReason is the terminal reason recorded when the context is done.
const cancelledReason = "cancelled"

// Summary is the final account of one session.
type Summary struct {
	SessionID      string        `json:"session_id"`
	TotalTasks     int           `json:"total_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks"`
	// TotalSteps counts every oracle attempt, debug retries included.
	TotalSteps int           `json:"total_steps"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
}

// Orchestrator drives one session from request to summary. It owns the
// session's state manager exclusively; Execute may be called once.
type Orchestrator struct {
	client           oracle.Client
	planner          *planner.Planner
	publisher        events.Publisher
	approver         gate.Approver
	classifier       gate.Classifier
	riskThreshold    gate.Risk
	maxDebugAttempts int
	attemptTimeout   time.Duration
	plannerTimeout   time.Duration
	historyCap       int
	logger           *slog.Logger

	state *state.Manager
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the event sink for the session.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithApprover installs an approval gate. Absent, every approval is implicit.
func WithApprover(a gate.Approver) Option {
	return func(o *Orchestrator) {
		o.approver = a
	}
}

// WithClassifier overrides the default heuristic risk classifier.
func WithClassifier(c gate.Classifier) Option {
	return func(o *Orchestrator) {
		o.classifier = c
	}
}

// WithRiskThreshold sets the minimum risk level that triggers task approval.
func WithRiskThreshold(r gate.Risk) Option {
	return func(o *Orchestrator) {
		o.riskThreshold = r
	}
}

// WithMaxDebugAttempts sets the per-task debug budget.
func WithMaxDebugAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxDebugAttempts = n
		}
	}
}

// WithAttemptTimeout sets the per-attempt oracle timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// WithPlannerTimeout sets the planning oracle timeout.
func WithPlannerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.plannerTimeout = d
		}
	}
}

// WithHistoryCap bounds the LLM-facing history window.
func WithHistoryCap(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyCap = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator around one oracle client.
func New(client oracle.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:           client,
		classifier:       gate.HeuristicClassifier{},
		riskThreshold:    gate.RiskHigh,
		maxDebugAttempts: executor.DefaultMaxDebugAttempts,
		attemptTimeout:   executor.DefaultAttemptTimeout,
		plannerTimeout:   planner.DefaultTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.planner = planner.New(client,
		planner.WithTimeout(o.plannerTimeout),
		planner.WithLogger(o.logger))
	return o
}

// State exposes the session's state manager for snapshot export. Nil until
// Execute has been called.
func (o *Orchestrator) State() *state.Manager {
	return o.state
}

// Execute runs one session end to end. A run that reaches the execution
// loop always yields a Summary; planning aborts, plan rejection, and
// cancellation return an error instead.
func (o *Orchestrator) Execute(ctx context.Context, request string) (*Summary, error) {
	if o.state != nil {
		return nil, errors.ErrStateInvariant("orchestrator already executed a session")
	}

	start := time.Now()
	var stateOpts []state.Option
	if o.historyCap > 0 {
		stateOpts = append(stateOpts, state.WithHistoryCap(o.historyCap))
	}
	st := state.NewManager(stateOpts...)
	o.state = st
	pub := events.NewPublishHelper(o.publisher, st.SessionID())

	o.logger.Info("session starting", "session_id", st.SessionID(), "request", request)
	pub.PlanningStarted(request)

	p, err := o.planApproved(ctx, pub, request)
	if err != nil {
		_ = st.MarkFailed(err.Error())
		return nil, err
	}

	if err := st.SetPlan(p); err != nil {
		pub.ExecutionFailed(err.Error())
		return nil, err
	}
	if err := st.StartExecution(); err != nil {
		pub.ExecutionFailed(err.Error())
		return nil, err
	}

	runner := executor.New(o.client, st,
		executor.WithMaxDebugAttempts(o.maxDebugAttempts),
		executor.WithAttemptTimeout(o.attemptTimeout),
		executor.WithPublisher(pub),
		executor.WithLogger(o.logger))

	totalSteps := 0
	step := 0
	for {
		// Cancellation between tasks is observed before starting the next one.
		if ctx.Err() != nil {
			_ = st.MarkFailed(cancelledReason)
			pub.ExecutionFailed(cancelledReason)
			return nil, errors.ErrSessionCancelled()
		}

		t, ok := st.CurrentTask()
		if !ok {
			break
		}
		step++

		if o.approver != nil {
			if proceed, gerr := o.gateTask(ctx, pub, t); gerr != nil {
				return nil, gerr
			} else if !proceed {
				break
			}
		}

		pub.TaskStarted(t, step)
		out := runner.Run(ctx, t)
		totalSteps += out.Attempts

		switch out.Kind {
		case executor.OutcomeSucceeded:
			pub.TaskCompleted(t.ID, out.Result)
			if _, err := st.NextStep(); err != nil {
				pub.ExecutionFailed(err.Error())
				return nil, err
			}
		case executor.OutcomeCancelled:
			_ = st.RecordFailure(t.ID, &codec.VerdictError{Message: cancelledReason})
			_ = st.MarkFailed(cancelledReason)
			pub.TaskFailed(t.ID, cancelledReason)
			pub.ExecutionFailed(cancelledReason)
			return nil, errors.ErrSessionCancelled()
		case executor.OutcomeFailed:
			// No skip-ahead: a failed prerequisite makes dependents meaningless.
			pub.TaskFailed(t.ID, out.Reason)
			_ = st.MarkFailed(out.Reason)
		}
		if st.Phase() == state.PhaseFailed {
			break
		}
	}

	summary := o.summarize(st, totalSteps, time.Since(start))
	o.logger.Info("session finished",
		"session_id", st.SessionID(),
		"success", summary.Success,
		"completed", summary.CompletedTasks,
		"steps", summary.TotalSteps)
	pub.ExecutionCompleted(summary.TotalTasks, summary.CompletedTasks,
		summary.FailedTasks, summary.TotalSteps, summary.Duration, summary.Success)
	return summary, nil
}

// planApproved produces a plan the gate accepts: at most one revision round,
// a second modify verdict aborts the session.
func (o *Orchestrator) planApproved(ctx context.Context, pub *events.PublishHelper, request string) (*plan.Plan, error) {
	p, err := o.planOnce(ctx, pub, request)
	if err != nil {
		return nil, err
	}
	if o.approver == nil {
		return p, nil
	}

	decision, err := o.approver.ApprovePlan(ctx, p, request)
	if err != nil {
		pub.ExecutionFailed(err.Error())
		return nil, errors.Wrap(err, "plan approval failed")
	}
	switch decision.Verdict {
	case gate.VerdictApprove:
		return p, nil
	case gate.VerdictModify:
		revised := fmt.Sprintf("%s\n\nRevision feedback on the previous plan:\n%s", request, decision.Feedback)
		p, err = o.planOnce(ctx, pub, revised)
		if err != nil {
			return nil, err
		}
		decision, err = o.approver.ApprovePlan(ctx, p, request)
		if err != nil {
			pub.ExecutionFailed(err.Error())
			return nil, errors.Wrap(err, "plan approval failed")
		}
		if decision.Verdict == gate.VerdictApprove {
			return p, nil
		}
		// One revision round only.
		fallthrough
	default:
		reason := decision.Reason
		if reason == "" {
			reason = "plan rejected"
		}
		pub.ExecutionFailed("user-rejected")
		return nil, errors.ErrSessionRejected(reason)
	}
}

func (o *Orchestrator) planOnce(ctx context.Context, pub *events.PublishHelper, request string) (*plan.Plan, error) {
	p, err := o.planner.Plan(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			pub.ExecutionFailed(cancelledReason)
			return nil, errors.ErrSessionCancelled()
		}
		pub.ExecutionFailed(err.Error())
		return nil, err
	}
	pub.PlanCreated(p)
	return p, nil
}

// gateTask runs the task-level approval when risk meets the threshold.
// Returns proceed=false on rejection, with the session marked failed. The
// run still ends in a summary: rejection mid-execution is a failed session,
// not an error.
func (o *Orchestrator) gateTask(ctx context.Context, pub *events.PublishHelper, t plan.Task) (bool, error) {
	risk, err := o.classifier.Classify(ctx, t)
	if err != nil {
		// Unclassifiable tasks pass through the gate rather than skip it.
		o.logger.Warn("risk classification failed, treating as high",
			"task_id", t.ID, "error", err)
		risk = gate.RiskHigh
	}
	if !risk.AtLeast(o.riskThreshold) {
		return true, nil
	}

	decision, err := o.approver.ApproveTask(ctx, t, risk, "")
	if err != nil {
		pub.ExecutionFailed(err.Error())
		return false, errors.Wrap(err, "task approval failed")
	}
	if decision.Approved() {
		return true, nil
	}

	reason := decision.Reason
	if reason == "" {
		reason = "user-rejected"
	}
	o.logger.Info("task rejected at gate", "task_id", t.ID, "risk", risk, "reason", reason)
	_ = o.state.MarkFailed(reason)
	pub.TaskFailed(t.ID, reason)
	return false, nil
}

func (o *Orchestrator) summarize(st *state.Manager, totalSteps int, elapsed time.Duration) *Summary {
	p := st.Plan()
	total := 0
	failed := 0
	if p != nil {
		total = len(p.Tasks)
		for _, t := range p.Tasks {
			if t.Status == plan.StatusFailed {
				failed++
			}
		}
	}
	return &Summary{
		SessionID:      st.SessionID(),
		TotalTasks:     total,
		CompletedTasks: st.CompletedCount(),
		FailedTasks:    failed,
		TotalSteps:     totalSteps,
		Duration:       elapsed,
		Success:        st.Phase() == state.PhaseCompleted,
	}
}
