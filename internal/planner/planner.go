package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/plan"
)

// DefaultTimeout bounds the planning oracle call. There is no debug loop at
// planning: a timeout here fails the session.
const DefaultTimeout = 5 * time.Minute

// Planner makes the single planning call.
type Planner struct {
	client  oracle.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithTimeout sets the planning call timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a planner backed by the given oracle client.
func New(client oracle.Client, opts ...Option) *Planner {
	p := &Planner{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan converts a user request into a normalized plan.
//
// Failure policy: an oracle-level failure (offline, timeout, cancellation)
// returns PLANNING_FAILED and aborts the session. Unusable planner output —
// no JSON, bad schema, cyclic dependencies — degrades to the single-task
// degenerate plan so execution can still attempt forward progress.
func (p *Planner) Plan(ctx context.Context, userRequest string) (*plan.Plan, error) {
	raw, err := p.client.Complete(ctx, oracle.Request{
		SystemPrompt: PlannerSystemPrompt,
		UserPrompt:   userRequest,
		Timeout:      p.timeout,
	})
	if err != nil {
		return nil, errors.ErrPlanningFailed("planning oracle call failed").WithCause(err)
	}

	parsed, parseErr := ParsePlan(raw)
	if parseErr != nil {
		p.logger.Warn("planner output unusable, falling back to degenerate plan",
			"error", parseErr)
		return plan.Degenerate(userRequest), nil
	}

	if parsed.Reordered {
		p.logger.Info("planner output reordered into topological order",
			"tasks", len(parsed.Tasks))
	}
	p.logger.Info("plan created",
		"tasks", len(parsed.Tasks),
		"complexity", parsed.Complexity)
	return parsed, nil
}
