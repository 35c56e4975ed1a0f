package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/infrastructure/di"
)

// newRollbackCmd creates the rollback command group
func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Create, execute, and analyze rollback points",
	}

	cmd.AddCommand(newRollbackPointCmd())
	cmd.AddCommand(newRollbackPointsCmd())
	cmd.AddCommand(newRollbackToCmd())
	cmd.AddCommand(newRollbackAnalyzeCmd())
	return cmd
}

// pointInfo is the JSON shape of one entry in rollback points output
type pointInfo struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Description   string    `json:"description,omitempty"`
	Snapshots     int       `json:"snapshots"`
	CreatedAt     time.Time `json:"created_at"`
}

func newRollbackPointsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "points",
		Short: "List rollback points recorded in history, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			results, err := container.GetTransactionManager().TransactionHistory(cmd.Context(), "")
			if err != nil {
				return fmt.Errorf("failed to load transaction history: %w", err)
			}

			var points []*rollback.Point
			for _, res := range results {
				points = append(points, res.RollbackPoints...)
			}

			if jsonOutput {
				infos := make([]pointInfo, 0, len(points))
				for _, p := range points {
					infos = append(infos, pointInfo{
						ID:            p.ID().String(),
						TransactionID: p.TransactionID().String(),
						Type:          string(p.Type()),
						Description:   p.Description(),
						Snapshots:     len(p.Snapshots()),
						CreatedAt:     p.Timestamp(),
					})
				}
				b, err := json.Marshal(infos)
				if err != nil {
					return fmt.Errorf("marshal points: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			if len(points) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rollback points recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTRANSACTION\tSNAPSHOTS\tDESCRIPTION")
			fmt.Fprintln(w, "--\t----\t-----------\t---------\t-----------")
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					p.ID(), p.Type(), p.TransactionID(), len(p.Snapshots()), p.Description())
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newRollbackPointCmd() *cobra.Command {
	var (
		pointType   string
		description string
	)

	cmd := &cobra.Command{
		Use:   "point <transaction-id>",
		Short: "Record a rollback point on an active transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txnID, err := model.NewTransactionIDFromString(args[0])
			if err != nil {
				return err
			}
			pt := model.RollbackPointType(strings.ToUpper(pointType))
			if !pt.IsValid() {
				return fmt.Errorf("invalid rollback point type: %s (want %s, %s or %s)",
					pointType, model.RollbackPointTypeCheckpoint, model.RollbackPointTypeManual, model.RollbackPointTypeMigration)
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			point, err := container.GetTransactionManager().CreateRollbackPoint(cmd.Context(), txnID, pt, description)
			if err != nil {
				return fmt.Errorf("failed to create rollback point: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rollback point created: %s\n", point.ID())
			fmt.Fprintf(out, "  Transaction: %s\n", point.TransactionID())
			fmt.Fprintf(out, "  Type:        %s\n", point.Type())
			fmt.Fprintf(out, "  Snapshots:   %d\n", len(point.Snapshots()))
			return nil
		},
	}

	cmd.Flags().StringVar(&pointType, "type", string(model.RollbackPointTypeManual), "Rollback point type (CHECKPOINT, MANUAL or MIGRATION)")
	cmd.Flags().StringVar(&description, "description", "", "Description recorded on the point")
	return cmd
}

func newRollbackToCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "to <point-id>",
		Short: "Restore the workspace to a rollback point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pointID, err := model.NewRollbackPointIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			ok, err := container.GetTransactionManager().ExecuteRollback(cmd.Context(), pointID)
			if err != nil {
				return fmt.Errorf("failed to execute rollback: %w", err)
			}
			if !ok {
				return fmt.Errorf("rollback to point %s did not complete; see the log for details", pointID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to point %s\n", pointID)
			return nil
		},
	}
}

// analyzeReport is the JSON shape of rollback analyze
type analyzeReport struct {
	PointID     string                   `json:"point_id"`
	Transaction string                   `json:"transaction_id"`
	Type        string                   `json:"type"`
	Description string                   `json:"description,omitempty"`
	Feasible    bool                     `json:"feasible"`
	Errors      []string                 `json:"errors,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Impact      *rollback.ImpactAnalysis `json:"impact"`
}

func newRollbackAnalyzeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <point-id>",
		Short: "Check feasibility and estimate the impact of a rollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pointID, err := model.NewRollbackPointIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			point, err := findHistoricRollbackPoint(cmd.Context(), container, pointID)
			if err != nil {
				return err
			}

			// The point came from history, so make it known to the rollback
			// manager before querying it
			rollbacks := container.GetRollbackManager()
			rollbacks.RegisterRollbackPoint(point)

			feasibility := rollbacks.ValidateRollbackFeasibility(cmd.Context(), pointID)
			impact, err := rollbacks.ImpactAnalysis(cmd.Context(), pointID)
			if err != nil {
				return fmt.Errorf("failed to analyze impact: %w", err)
			}

			if jsonOutput {
				report := analyzeReport{
					PointID:     point.ID().String(),
					Transaction: point.TransactionID().String(),
					Type:        string(point.Type()),
					Description: point.Description(),
					Feasible:    feasibility.IsValid,
					Errors:      feasibility.Errors,
					Warnings:    feasibility.Warnings,
					Impact:      impact,
				}
				b, err := json.Marshal(report)
				if err != nil {
					return fmt.Errorf("marshal report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rollback point %s\n", point.ID())
			fmt.Fprintf(out, "  Transaction: %s\n", point.TransactionID())
			fmt.Fprintf(out, "  Type:        %s\n", point.Type())
			if point.Description() != "" {
				fmt.Fprintf(out, "  Description: %s\n", point.Description())
			}
			fmt.Fprintln(out)
			printValidationResult(cmd, feasibility)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Impact:\n")
			fmt.Fprintf(out, "  Data loss risk:     %s\n", impact.DataLossRisk)
			fmt.Fprintf(out, "  Estimated downtime: %s\n", impact.EstimatedDowntime)
			fmt.Fprintf(out, "  Affected services:  %s\n", strings.Join(impact.AffectedServices, ", "))
			for _, action := range impact.RecommendedActions {
				fmt.Fprintf(out, "  - %s\n", action)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

// findHistoricRollbackPoint resolves a rollback point id against recorded
// transaction results
func findHistoricRollbackPoint(ctx context.Context, container *di.Container, pointID model.RollbackPointID) (*rollback.Point, error) {
	results, err := container.GetTransactionManager().TransactionHistory(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction history: %w", err)
	}
	for _, res := range results {
		if p := res.PointByID(pointID); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrRollbackPointNotFound, pointID)
}
