package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/application/service"
	"github.com/ductware/atomtx/internal/domain/model/migration"
)

// newMigrateCmd creates the migrate command
func newMigrateCmd() *cobra.Command {
	var (
		userID     string
		jsonOutput bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "migrate <plan.yaml>",
		Short: "Run a migration plan",
		Long:  "Execute the steps of a migration plan atomically, rolling back on failure according to each step's rollback strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			plan, err := LoadMigrationPlan(container.GetFs(), args[0])
			if err != nil {
				return err
			}
			steps, err := plan.BuildSteps(container.GetFs(), container.GetConfig().Workspace)
			if err != nil {
				return err
			}

			if dryRun {
				printPlanSummary(cmd, plan, steps)
				return nil
			}

			res := container.GetTransactionManager().ExecuteMigration(cmd.Context(), steps, service.BeginOptions{
				UserID:   userID,
				Metadata: map[string]interface{}{"plan": plan.Name},
			})

			if jsonOutput {
				b, err := json.Marshal(res)
				if err != nil {
					return fmt.Errorf("marshal result: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			} else {
				printMigrationResult(cmd, plan, res)
			}

			if !res.Success {
				return fmt.Errorf("migration %s failed at step %s: %s", plan.Name, res.FailedStep, res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to record on the migration transactions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result in JSON format")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and print the plan without executing it")
	return cmd
}

func printPlanSummary(cmd *cobra.Command, plan *MigrationPlan, steps []*migration.Step) {
	fmt.Fprintf(cmd.OutOrStdout(), "Plan %s: %d step(s)\n\n", plan.Name, len(steps))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOPS\tROLLBACK\tPHASE")
	fmt.Fprintln(w, "--\t----\t---\t--------\t-----")
	for _, step := range steps {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			step.ID(), step.Name(), len(step.Operations()), step.RollbackStrategy(), step.Phase())
	}
	w.Flush()
}

func printMigrationResult(cmd *cobra.Command, plan *MigrationPlan, res *migration.Result) {
	out := cmd.OutOrStdout()
	if res.Success {
		fmt.Fprintf(out, "Migration %s completed: %d step(s) in %s\n", plan.Name, len(res.CompletedSteps), res.Duration)
		for _, id := range res.CompletedSteps {
			fmt.Fprintf(out, "  ✓ %s\n", id)
		}
		return
	}

	fmt.Fprintf(out, "Migration %s FAILED at step %s after %s\n", plan.Name, res.FailedStep, res.Duration)
	fmt.Fprintf(out, "  Error: %s\n", res.Error)
	if len(res.CompletedSteps) > 0 {
		fmt.Fprintf(out, "  Steps left committed: %d\n", len(res.CompletedSteps))
	} else {
		fmt.Fprintln(out, "  No steps left committed")
	}
	if len(res.RollbackPoints) > 0 {
		fmt.Fprintf(out, "  Rollback points recorded: %d\n", len(res.RollbackPoints))
	}
}
