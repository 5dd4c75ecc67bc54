package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag TAG_OR_HASH TAG",
	Short: "Tag a snapshot",
	Long: `Add a tag to an existing snapshot.

Tags are unique across the snapshot history, and may not look like a snapshot hash.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		snap, err := e.AddTag(ctx, args[0], args[1])
		if err != nil {
			wrapFatalln("tag snapshot", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tagged snapshot %s\n", snapshotLabel(snap.Number, snap.Tags))
	},
}

var deleteSnapshotCmd = &cobra.Command{
	Use:   "delete-snapshot TAG_OR_HASH",
	Short: "Delete a snapshot",
	Long: `Delete a snapshot from the history.

Artifacts referenced by no other snapshot are removed. Archived results are kept unless --remove-results is given.
Snapshot numbers are never reused.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		snap, err := e.Find(args[0])
		if err != nil {
			wrapFatalln("find snapshot", err)
			return
		}
		if !confirm(cmd.OutOrStdout(), fmt.Sprintf("Delete snapshot %s?", snapshotLabel(snap.Number, snap.Tags))) {
			warnf("deletion cancelled")
			return
		}
		if _, err := e.DeleteSnapshot(ctx, snap.Hash, dwsFlags.delete.removeResults); err != nil {
			wrapFatalln("delete snapshot", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", snapshotLabel(snap.Number, snap.Tags))
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)

	addRemoveResultsFlag(deleteSnapshotCmd)
	rootCmd.AddCommand(deleteSnapshotCmd)
}
