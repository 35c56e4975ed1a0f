package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

// newSnapshotCmd creates the snapshot command group
func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage workspace snapshots",
		Long:  "Capture, inspect, restore, and archive point-in-time snapshots of the workspace",
	}

	cmd.AddCommand(newSnapshotCreateCmd())
	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotValidateCmd())
	cmd.AddCommand(newSnapshotRestoreCmd())
	cmd.AddCommand(newSnapshotDeleteCmd())
	cmd.AddCommand(newSnapshotArchiveCmd())
	cmd.AddCommand(newSnapshotUnarchiveCmd())
	return cmd
}

func newSnapshotCreateCmd() *cobra.Command {
	var snapshotType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture a snapshot of the current workspace state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := model.SnapshotType(snapshotType)
			if !st.IsValid() {
				return fmt.Errorf("invalid snapshot type: %s (want %s or %s)",
					snapshotType, model.SnapshotTypeFull, model.SnapshotTypeIncremental)
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			snap, err := container.GetStateManager().CreateSnapshot(cmd.Context(), st)
			if err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot created: %s\n", snap.ID())
			fmt.Fprintf(out, "  Type:     %s\n", snap.Type())
			fmt.Fprintf(out, "  Size:     %d bytes\n", snap.Size())
			fmt.Fprintf(out, "  Checksum: %s\n", snap.Checksum())
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotType, "type", string(model.SnapshotTypeFull), "Snapshot type (full or incremental)")
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			snaps, err := container.GetStateManager().Snapshots(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}

			if jsonOutput {
				metas := make([]*snapshot.Metadata, 0, len(snaps))
				for _, snap := range snaps {
					metas = append(metas, snap.Metadata())
				}
				b, err := json.Marshal(metas)
				if err != nil {
					return fmt.Errorf("marshal snapshots: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSIZE\tCREATED")
			fmt.Fprintln(w, "--\t----\t----\t-------")
			for _, snap := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					snap.ID(), snap.Type(), snap.Size(), snap.Timestamp().Format(time.RFC3339))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newSnapshotValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <snapshot-id>",
		Short: "Verify the integrity of a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewSnapshotIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			result := container.GetStateManager().ValidateSnapshot(cmd.Context(), id)
			printValidationResult(cmd, result)
			if !result.IsValid {
				return fmt.Errorf("snapshot %s failed validation", id)
			}
			return nil
		},
	}
}

func newSnapshotRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Restore the workspace to a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewSnapshotIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			if err := container.GetStateManager().RestoreFromSnapshot(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace restored from snapshot %s\n", id)
			return nil
		},
	}
}

func newSnapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewSnapshotIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			deleted, err := container.GetStateManager().DeleteSnapshot(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to delete snapshot: %w", err)
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s not found\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s deleted\n", id)
			return nil
		},
	}
}

func newSnapshotArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <snapshot-id>",
		Short: "Copy a snapshot into the configured archive backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewSnapshotIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			entry, err := container.GetStateManager().ArchiveSnapshot(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to archive snapshot: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot %s archived\n", id)
			fmt.Fprintf(out, "  Location:    %s\n", entry.StoragePath)
			fmt.Fprintf(out, "  Compression: %s\n", entry.Compression)
			fmt.Fprintf(out, "  Stored size: %d bytes\n", entry.Size)
			return nil
		},
	}
}

func newSnapshotUnarchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <snapshot-id>",
		Short: "Bring an archived snapshot back into hot storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.NewSnapshotIDFromString(args[0])
			if err != nil {
				return err
			}

			container, err := initContainer()
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			snap, err := container.GetStateManager().RestoreFromArchive(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to restore from archive: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot %s restored from archive\n", snap.ID())
			fmt.Fprintf(out, "  Type: %s\n", snap.Type())
			fmt.Fprintf(out, "  Size: %d bytes\n", snap.Size())
			return nil
		},
	}
}

func printValidationResult(cmd *cobra.Command, result model.ValidationResult) {
	out := cmd.OutOrStdout()
	if result.IsValid {
		fmt.Fprintln(out, "Validation: OK")
	} else {
		fmt.Fprintln(out, "Validation: FAILED")
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", msg)
	}
}
