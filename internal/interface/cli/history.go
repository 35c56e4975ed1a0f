package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/domain/model/transaction"
)

// newHistoryCmd creates the history command group
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query and prune the transaction history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryCleanupCmd())
	return cmd
}

// historyEntry wraps a result with its transaction id for JSON output
type historyEntry struct {
	TransactionID string `json:"transaction_id"`
	*transaction.Result
}

func newHistoryListCmd() *cobra.Command {
	var (
		userID     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded transaction results, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			results, err := container.GetTransactionManager().TransactionHistory(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to load transaction history: %w", err)
			}

			if jsonOutput {
				entries := make([]historyEntry, 0, len(results))
				for _, res := range results {
					entries = append(entries, historyEntry{
						TransactionID: res.TransactionID.String(),
						Result:        res,
					})
				}
				b, err := json.Marshal(entries)
				if err != nil {
					return fmt.Errorf("marshal history: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transaction history")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tUSER\tOPS\tDURATION\tFINISHED")
			fmt.Fprintln(w, "--\t------\t----\t---\t--------\t--------")
			for _, res := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					res.TransactionID,
					res.Status,
					res.UserID,
					len(res.ExecutedOperations),
					res.Duration.Round(time.Millisecond),
					res.FinishedAt.Format(time.RFC3339))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Only show transactions recorded for this user id")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newHistoryCleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history entries older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			removed, err := container.GetTransactionManager().CleanupTransactions(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("failed to clean up history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d transaction record(s) older than %s\n", removed, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold (e.g. 720h, 24h, 30m)")
	return cmd
}
