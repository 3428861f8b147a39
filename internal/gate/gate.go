// Package gate provides the optional approval layer between planning and
// execution: plan-level confirmation before work starts and task-level
// confirmation for risky steps.
package gate

import (
	"context"

	"github.com/randalmurphal/pilot/internal/plan"
)

// Verdict is the gate consumer's answer to an approval request.
type Verdict string

const (
	// VerdictApprove lets the plan or task proceed unchanged.
	VerdictApprove Verdict = "approve"
	// VerdictReject aborts the session.
	VerdictReject Verdict = "reject"
	// VerdictModify asks for a revision; Feedback carries the requested change.
	VerdictModify Verdict = "modify"
)

// Decision is the outcome of one approval request.
type Decision struct {
	Verdict  Verdict
	Reason   string
	Feedback string // set on modify: what to change
}

// Approved reports whether the decision allows proceeding.
func (d Decision) Approved() bool {
	return d.Verdict == VerdictApprove
}

// Approver is the contract a gate consumer implements. The orchestrator
// calls ApprovePlan once after planning and ApproveTask before each task
// whose risk meets the configured threshold. A nil Approver means every
// approval is implicit.
type Approver interface {
	ApprovePlan(ctx context.Context, p *plan.Plan, userRequest string) (Decision, error)
	ApproveTask(ctx context.Context, t plan.Task, risk Risk, taskContext string) (Decision, error)
}

// AutoApprover approves everything. It is the behavior of an absent gate
// made explicit, useful for wiring and tests.
type AutoApprover struct{}

func (AutoApprover) ApprovePlan(_ context.Context, _ *plan.Plan, _ string) (Decision, error) {
	return Decision{Verdict: VerdictApprove, Reason: "auto-approved"}, nil
}

func (AutoApprover) ApproveTask(_ context.Context, _ plan.Task, _ Risk, _ string) (Decision, error) {
	return Decision{Verdict: VerdictApprove, Reason: "auto-approved"}, nil
}
