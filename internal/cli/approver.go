package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/randalmurphal/pilot/internal/gate"
	"github.com/randalmurphal/pilot/internal/plan"
)

// terminalApprover implements the approval gate over stdin/stdout prompts.
type terminalApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalApprover() (*terminalApprover, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("approval gate needs an interactive terminal; use --yes to auto-approve")
	}
	return &terminalApprover{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}, nil
}

func (a *terminalApprover) ApprovePlan(ctx context.Context, p *plan.Plan, userRequest string) (gate.Decision, error) {
	fmt.Fprintf(a.out, "\nProposed plan for: %s\n", userRequest)
	for i, t := range p.Tasks {
		fmt.Fprintf(a.out, "  %d. %s", i+1, t.Title)
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(a.out, " (after %s)", strings.Join(t.Dependencies, ", "))
		}
		fmt.Fprintln(a.out)
	}
	return a.prompt(ctx, "Approve plan? [y/n/m(odify)]: ")
}

func (a *terminalApprover) ApproveTask(ctx context.Context, t plan.Task, risk gate.Risk, _ string) (gate.Decision, error) {
	fmt.Fprintf(a.out, "\n%s-risk task: %s\n", risk, t.Title)
	if t.Description != "" {
		fmt.Fprintf(a.out, "  %s\n", t.Description)
	}
	return a.prompt(ctx, "Run this task? [y/n]: ")
}

// prompt reads one verdict. Reads happen on a goroutine so a cancelled
// context does not leave the session hanging on stdin.
func (a *terminalApprover) prompt(ctx context.Context, question string) (gate.Decision, error) {
	fmt.Fprint(a.out, question)

	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		ch <- lineResult{line, err}
	}()

	select {
	case <-ctx.Done():
		return gate.Decision{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return gate.Decision{}, fmt.Errorf("read approval input: %w", res.err)
		}
		switch strings.TrimSpace(strings.ToLower(res.line)) {
		case "y", "yes":
			return gate.Decision{Verdict: gate.VerdictApprove, Reason: "approved at terminal"}, nil
		case "m", "modify":
			fmt.Fprint(a.out, "What should change? ")
			feedback, err := a.in.ReadString('\n')
			if err != nil {
				return gate.Decision{}, fmt.Errorf("read feedback: %w", err)
			}
			return gate.Decision{
				Verdict:  gate.VerdictModify,
				Feedback: strings.TrimSpace(feedback),
			}, nil
		default:
			fmt.Fprint(a.out, "Reason (optional): ")
			reason, _ := a.in.ReadString('\n')
			return gate.Decision{
				Verdict: gate.VerdictReject,
				Reason:  strings.TrimSpace(reason),
			}, nil
		}
	}
}
