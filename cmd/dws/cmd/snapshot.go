// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [TAG]",
	Short: "Take a snapshot of the workspace",
	Long: `Take a snapshot of the current state of all resources.

Results are moved into an archive named after the tag (or the snapshot number), along with
the lineage at this point. When nothing changed since an existing snapshot, the tag is added to it.`,
	Example: `% dws snapshot baseline -m "first model"
Snapshot 1 (baseline) 9f4e0c1...`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var tag string
		if len(args) > 0 {
			tag = args[0]
		}
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		snap, err := e.TakeSnapshot(ctx, tag, dwsFlags.snapshot.message)
		if err != nil {
			wrapFatalln("take snapshot", err)
			return
		}
		if dwsFlags.root.output == outputTable || dwsFlags.root.output == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s %s\n", snapshotLabel(snap.Number, snap.Tags), snap.Hash)
			return
		}
		if err := printObject(cmd.OutOrStdout(), snap); err != nil {
			wrapFatalln("print snapshot", err)
		}
	},
}

func init() {
	addMessageFlag(snapshotCmd)
	rootCmd.AddCommand(snapshotCmd)
}
