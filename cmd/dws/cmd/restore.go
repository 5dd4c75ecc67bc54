// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/engine"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore TAG_OR_HASH",
	Short: "Restore the workspace to a snapshot",
	Long: `Restore the resources of the workspace to the state of a snapshot.

The snapshot is designated by a tag, a hash, or an unambiguous hash prefix.
Results are never restored. All resources are checked before any is changed:
if a resource cannot be restored, nothing is.

When resources are left as they are, the resulting state is recorded as a new
snapshot, unless --no-new-snapshot is given.`,
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
		if !confirm(cmd.OutOrStdout(), fmt.Sprintf("Restore snapshot %s? Local changes to restored resources are lost.", snapshotLabel(snap.Number, snap.Tags))) {
			warnf("restore cancelled")
			return
		}
		restored, err := e.Restore(ctx, snap.Hash, engine.RestoreOptions{
			Only:          dwsFlags.restore.only,
			Leave:         dwsFlags.restore.leave,
			NoNewSnapshot: dwsFlags.restore.noNewSnapshot,
		})
		if err != nil {
			wrapFatalln("restore snapshot", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot %s\n", snapshotLabel(snap.Number, snap.Tags))
		if revised := restored.Revised; revised != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Left %s as they were: the workspace is now at snapshot %s\n",
				strings.Join(restored.Left, ", "), snapshotLabel(revised.Number, revised.Tags))
		}
	},
}

func init() {
	addOnlyFlag(restoreCmd, &dwsFlags.restore.only)
	addLeaveFlag(restoreCmd)
	addNoNewSnapshotFlag(restoreCmd)
	rootCmd.AddCommand(restoreCmd)
}
