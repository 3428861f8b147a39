package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/pilot/internal/config"
	"github.com/randalmurphal/pilot/internal/events"
	"github.com/randalmurphal/pilot/internal/gate"
	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/orchestrator"
	"github.com/randalmurphal/pilot/internal/state"
	"github.com/randalmurphal/pilot/internal/storage"
)

// newRunCmd creates the run command: plan, execute, render, persist.
func newRunCmd() *cobra.Command {
	var (
		yes      bool
		maxDebug int
		noSave   bool
	)

	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Plan and execute a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxDebug > 0 {
				cfg.Execution.MaxDebugAttempts = maxDebug
			}

			client, err := newOracleClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSession(ctx, cfg, client, args[0], yes, noSave)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve everything without prompting")
	cmd.Flags().IntVar(&maxDebug, "max-debug", 0, "override the per-task debug budget")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run to the session store")
	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, client oracle.Client, request string, yes, noSave bool) error {
	logger := newLogger(cfg)

	pub := events.NewMemoryPublisher()
	renderCh := pub.Subscribe(events.GlobalSessionID)
	captureCh := pub.Subscribe(events.GlobalSessionID)

	opts := []orchestrator.Option{
		orchestrator.WithPublisher(pub),
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxDebugAttempts(cfg.Execution.MaxDebugAttempts),
		orchestrator.WithAttemptTimeout(cfg.Execution.TaskTimeout),
		orchestrator.WithPlannerTimeout(cfg.Execution.PlannerTimeout),
		orchestrator.WithHistoryCap(cfg.Execution.HistoryCap),
		orchestrator.WithRiskThreshold(cfg.RiskThreshold()),
	}
	if cfg.Gate.Enabled && !cfg.Gate.AutoApprove && !yes {
		approver, err := newTerminalApprover()
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithApprover(approver))
		if cfg.Gate.Classifier == "oracle" {
			opts = append(opts, orchestrator.WithClassifier(gate.NewOracleClassifier(client, logger)))
		}
	}
	orch := orchestrator.New(client, opts...)

	var captured []events.Event
	g := new(errgroup.Group)
	g.Go(func() error {
		newRenderer(os.Stdout).Render(renderCh)
		return nil
	})
	g.Go(func() error {
		for ev := range captureCh {
			captured = append(captured, ev)
		}
		return nil
	})

	summary, execErr := orch.Execute(ctx, request)
	pub.Close()
	_ = g.Wait()

	if !noSave && orch.State() != nil {
		if err := persistRun(cfg, orch, request, summary, captured); err != nil {
			logger.Warn("failed to persist run", "error", err)
		}
	}

	if execErr != nil {
		return execErr
	}
	if !summary.Success {
		return fmt.Errorf("session %s finished with failures", summary.SessionID)
	}
	return nil
}

// persistRun stores the finished session: summary row, snapshot, event log.
func persistRun(cfg *config.Config, orch *orchestrator.Orchestrator, request string, summary *orchestrator.Summary, captured []events.Event) error {
	st := orch.State()
	snapshot, err := state.MarshalSnapshot(st.Export())
	if err != nil {
		return err
	}
	eventLog, err := json.Marshal(captured)
	if err != nil {
		return err
	}

	run := &storage.Run{
		SessionID: st.SessionID(),
		Request:   request,
		Snapshot:  snapshot,
		Events:    eventLog,
		CreatedAt: time.Now().UTC(),
	}
	if summary != nil {
		run.Success = summary.Success
		run.TotalTasks = summary.TotalTasks
		run.CompletedTasks = summary.CompletedTasks
		run.FailedTasks = summary.FailedTasks
		run.TotalSteps = summary.TotalSteps
		run.Duration = summary.Duration
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.SaveRun(context.Background(), run)
}
