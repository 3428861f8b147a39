package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/pilot/internal/util"
)

// newExportCmd creates the export command: dump a stored run's snapshot.
func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a stored run's state snapshot as JSON",
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

			if outPath == "" {
				_, err = os.Stdout.Write(append(run.Snapshot, '\n'))
				return err
			}
			if err := util.AtomicWriteFile(outPath, run.Snapshot, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote snapshot to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
