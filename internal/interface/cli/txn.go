package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/domain/model"
)

// newTxnCmd creates the txn command group
func newTxnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Inspect and control transactions",
	}

	cmd.AddCommand(newTxnActiveCmd())
	cmd.AddCommand(newTxnStatusCmd())
	cmd.AddCommand(newTxnCancelCmd())
	return cmd
}

// activeTxn is the JSON shape of one entry in txn active output
type activeTxn struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func newTxnActiveCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List in-flight transactions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			txns := container.GetTransactionManager().ActiveTransactions()

			if jsonOutput {
				entries := make([]activeTxn, 0, len(txns))
				for _, txn := range txns {
					txCtx := txn.Context()
					entries = append(entries, activeTxn{
						ID:        txn.ID().String(),
						Status:    string(txn.Status()),
						UserID:    txCtx.UserID(),
						SessionID: txCtx.SessionID(),
						CreatedAt: txn.CreatedAt().Format(time.RFC3339),
					})
				}
				b, err := json.Marshal(entries)
				if err != nil {
					return fmt.Errorf("marshal transactions: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active transactions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tUSER\tAGE")
			fmt.Fprintln(w, "--\t------\t----\t---")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					txn.ID(), txn.Status(), txn.Context().UserID(), time.Since(txn.CreatedAt()).Round(time.Millisecond))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newTxnStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <transaction-id>",
		Short: "Report the status of an active or recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewTransactionIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			status, err := container.GetTransactionManager().TransactionStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s: %s\n", id, status)
			return nil
		},
	}
}

func newTxnCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <transaction-id>",
		Short: "Force a rollback of an active transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewTransactionIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			cancelled, err := container.GetTransactionManager().CancelTransaction(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to cancel transaction: %w", err)
			}
			if !cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s is not active\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s cancelled\n", id)
			return nil
		},
	}
}
