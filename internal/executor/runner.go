// Package executor runs the execute→verify→debug micro-loop for a single
// task until it settles: succeeded, unrecoverably failed, or cancelled.
package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/events"
	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/plan"
	"github.com/randalmurphal/pilot/internal/state"
)

const (
	// DefaultMaxDebugAttempts is the per-task debug budget.
	DefaultMaxDebugAttempts = 3
	// DefaultAttemptTimeout bounds each oracle call.
	DefaultAttemptTimeout = 5 * time.Minute
)

// OutcomeKind tags a settled task outcome.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeFailed
	OutcomeCancelled
)

// Outcome is the runner's settled result for one task. The runner never
// panics or errors into the orchestrator; everything folds into an Outcome.
type Outcome struct {
	Kind   OutcomeKind
	Result string // set when Kind == OutcomeSucceeded
	Reason string // set when Kind == OutcomeFailed or OutcomeCancelled
	// Attempts counts every oracle call made for this task, debug included.
	Attempts int
}

// Runner drives one task at a time against the oracle.
type Runner struct {
	client    oracle.Client
	state     *state.Manager
	publisher *events.PublishHelper
	logger    *slog.Logger

	maxDebugAttempts int
	attemptTimeout   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxDebugAttempts sets the per-task debug budget.
func WithMaxDebugAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxDebugAttempts = n
		}
	}
}

// WithAttemptTimeout sets the per-attempt oracle call timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

// WithPublisher sets the event publish helper.
func WithPublisher(p *events.PublishHelper) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner bound to one session's state manager.
func New(client oracle.Client, st *state.Manager, opts ...Option) *Runner {
	r := &Runner{
		client:           client,
		state:            st,
		publisher:        events.NewPublishHelper(nil, ""),
		logger:           slog.Default(),
		maxDebugAttempts: DefaultMaxDebugAttempts,
		attemptTimeout:   DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run settles one task. Each iteration is one oracle attempt; a non-success
// verdict enters debug mode and retries with the error context until the
// budget runs out. Oracle and parse failures are folded into synthesized
// non-success verdicts and follow the same transitions.
func (r *Runner) Run(ctx context.Context, t plan.Task) Outcome {
	if err := r.state.BeginTask(t.ID); err != nil {
		return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	debugCounter := 0
	attempts := 0

	for {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled, Reason: "cancelled", Attempts: attempts}
		}

		verdict, cancelled := r.attempt(ctx, t)
		attempts++
		if cancelled {
			return Outcome{Kind: OutcomeCancelled, Reason: "cancelled", Attempts: attempts}
		}

		if verdict.Status == codec.VerdictSuccess {
			var err error
			if debugCounter > 0 {
				err = r.state.RecordDebug(t.ID, verdict)
			} else {
				err = r.state.RecordSuccess(t.ID, verdict)
			}
			if err != nil {
				// Invariant violation: fatal to the session, not a retry case.
				return Outcome{Kind: OutcomeFailed, Reason: err.Error(), Attempts: attempts}
			}
			r.logger.Info("task settled",
				"task_id", t.ID,
				"attempts", attempts,
				"debugged", debugCounter > 0)
			return Outcome{Kind: OutcomeSucceeded, Result: verdict.Result, Attempts: attempts}
		}

		// Non-success: enter debug mode on first failure, record, retry.
		verr := verdict.Error
		if verr == nil {
			verr = &codec.VerdictError{Message: "oracle returned a non-success verdict without error detail"}
		}
		if debugCounter == 0 {
			if err := r.state.EnterDebugMode(); err != nil {
				return Outcome{Kind: OutcomeFailed, Reason: err.Error(), Attempts: attempts}
			}
		}
		if err := r.state.RecordFailure(t.ID, verr); err != nil {
			return Outcome{Kind: OutcomeFailed, Reason: err.Error(), Attempts: attempts}
		}

		debugCounter++
		if debugCounter > r.maxDebugAttempts {
			reason := errors.ErrDebugBudget(t.ID, r.maxDebugAttempts).Error()
			r.logger.Warn("debug budget exhausted",
				"task_id", t.ID,
				"attempts", attempts,
				"last_error", verr.Message)
			// Terminal for the whole session: no skip-ahead past a failed task.
			_ = r.state.MarkFailed(reason)
			return Outcome{Kind: OutcomeFailed, Reason: reason, Attempts: attempts}
		}

		r.logger.Info("starting debug attempt",
			"task_id", t.ID,
			"attempt", debugCounter,
			"reason", verr.Message)
		r.publisher.DebugStarted(t.ID, debugCounter, verr.Message)
	}
}

// attempt makes one oracle call and always produces a verdict: call errors
// and unparseable output become synthesized needs-debug verdicts. The bool
// result reports cancellation, which is terminal rather than a verdict.
func (r *Runner) attempt(ctx context.Context, t plan.Task) (*codec.Verdict, bool) {
	view, err := r.state.PromptView()
	if err != nil {
		return synthesized(err.Error()), false
	}

	raw, err := r.client.Complete(ctx, oracle.Request{
		SystemPrompt: codec.TaskSystemPrompt,
		UserPrompt:   codec.FormatTaskPrompt(view),
		Timeout:      r.attemptTimeout,
	})
	if err != nil {
		if stderrors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, true
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return synthesized("task-timeout"), false
		}
		return synthesized(fmt.Sprintf("oracle call failed: %v", err)), false
	}

	verdict, parseErr := codec.ParseVerdict(raw)
	if parseErr != nil {
		r.logger.Warn("unparseable verdict, treating as needs-debug",
			"task_id", t.ID,
			"error", parseErr)
		return synthesized(parseErr.Error()), false
	}
	return verdict, false
}

// synthesized wraps an internal failure as a needs-debug verdict so it runs
// through the same transition rules as an oracle-reported failure.
func synthesized(message string) *codec.Verdict {
	return &codec.Verdict{
		Status:     codec.VerdictNeedsDebug,
		LogEntries: []codec.LogEntry{},
		Error:      &codec.VerdictError{Message: message},
	}
}
