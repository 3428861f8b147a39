package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/pilot/internal/plan"
	"github.com/randalmurphal/pilot/internal/state"
)

// newShowCmd creates the show command: inspect one stored run.
func newShowCmd() *cobra.Command {
	var showLogs bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			snap, err := state.UnmarshalSnapshot(run.Snapshot)
			if err != nil {
				return fmt.Errorf("stored snapshot is unreadable: %w", err)
			}

			result := "failed"
			if run.Success {
				result = "succeeded"
			}
			fmt.Printf("Session %s (%s)\n", run.SessionID, result)
			fmt.Printf("  Request:  %s\n", run.Request)
			fmt.Printf("  When:     %s\n", run.CreatedAt.Local().Format(time.DateTime))
			fmt.Printf("  Duration: %s\n", run.Duration.Round(time.Second))
			fmt.Printf("  Tasks:    %d/%d completed, %d oracle calls\n",
				run.CompletedTasks, run.TotalTasks, run.TotalSteps)

			if snap.Plan != nil {
				fmt.Println("\nTasks:")
				for i, t := range snap.Plan.Tasks {
					fmt.Printf("  %d. [%s] %s — %s\n", i+1, statusMark(t.Status), t.Title, t.Status)
					if t.Error != "" {
						fmt.Printf("       error: %s\n", t.Error)
					}
				}
			}
			if snap.LastError != nil {
				fmt.Printf("\nLast error: %s\n", snap.LastError.Message)
			}

			if showLogs && len(snap.Logs) > 0 {
				fmt.Println("\nLog entries:")
				for _, e := range snap.Logs {
					fmt.Printf("  %s [%s] %s\n",
						e.Timestamp.Format(time.TimeOnly), e.Level, e.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showLogs, "logs", false, "include the session's log entries")
	return cmd
}

func statusMark(s plan.Status) string {
	switch s {
	case plan.StatusCompleted:
		return "x"
	case plan.StatusFailed:
		return "!"
	case plan.StatusInProgress:
		return ">"
	default:
		return " "
	}
}
