package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/pilot/internal/planner"
)

// newPlanCmd creates the plan command: plan only, no execution.
func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <request>",
		Short: "Plan a request without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			client, err := newOracleClient(cfg)
			if err != nil {
				return err
			}

			pl := planner.New(client,
				planner.WithTimeout(cfg.Execution.PlannerTimeout),
				planner.WithLogger(logger))
			p, err := pl.Plan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			fmt.Printf("Plan (%s complexity, %d tasks):\n", p.Complexity, len(p.Tasks))
			for i, t := range p.Tasks {
				fmt.Printf("  %d. [%s] %s\n", i+1, t.ID, t.Title)
				if t.Description != "" {
					fmt.Printf("     %s\n", t.Description)
				}
				if len(t.Dependencies) > 0 {
					fmt.Printf("     depends on: %s\n", strings.Join(t.Dependencies, ", "))
				}
			}
			return nil
		},
	}
}
