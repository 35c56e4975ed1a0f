package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/infrastructure/metrics"
)

// newMetricsCmd creates the metrics command. It reads the persisted
// counter file directly instead of building a container, so it never
// touches the history database or the workspace.
func newMetricsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show accumulated engine metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			collector, err := metrics.Load(afero.NewOsFs(), cfg.MetricsPath())
			if err != nil {
				return fmt.Errorf("failed to load metrics: %w", err)
			}
			snap := collector.Snapshot()

			if jsonOutput {
				b, err := json.Marshal(&snap)
				if err != nil {
					return fmt.Errorf("marshal metrics: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transactions begun:       %d\n", snap.TransactionsBegun)
			fmt.Fprintf(out, "Transactions committed:   %d\n", snap.TransactionsCommitted)
			fmt.Fprintf(out, "Transactions rolled back: %d\n", snap.TransactionsRolledBack)
			fmt.Fprintf(out, "Transactions failed:      %d\n", snap.TransactionsFailed)
			fmt.Fprintf(out, "Snapshots created:        %d\n", snap.SnapshotsCreated)
			fmt.Fprintf(out, "Snapshots restored:       %d\n", snap.SnapshotsRestored)
			fmt.Fprintf(out, "Checkpoints created:      %d\n", snap.CheckpointsCreated)
			fmt.Fprintf(out, "Corruption detected:      %d\n", snap.CorruptionDetected)
			fmt.Fprintf(out, "Rollback step failures:   %d\n", snap.RollbackStepFailures)
			fmt.Fprintf(out, "Success rate:             %.1f%%\n", collector.SuccessRate())
			if snap.LastUpdate != "" {
				fmt.Fprintf(out, "Last update:              %s\n", snap.LastUpdate)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
