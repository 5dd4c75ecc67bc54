package cmd

import (
	"context"
	"fmt"

	"github.com/kisdma/data-workspaces-core/pkg/engine"
	"github.com/spf13/cobra"
)

func syncOptions() engine.SyncOptions {
	return engine.SyncOptions{
		Only:         dwsFlags.sync.only,
		Skip:         dwsFlags.sync.skip,
		MetadataOnly: dwsFlags.sync.metadataOnly,
	}
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push resources and the workspace to their remotes",
	Long: `Push resources which have a remote, then the workspace repository.

All resources are checked before anything is pushed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		if err := e.Push(ctx, syncOptions()); err != nil {
			wrapFatalln("push", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pushed workspace", e.Workspace().Name())
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the workspace and resources from their remotes",
	Long: `Pull the workspace repository, then resources which have a remote.

Current lineage is dropped, since pulled content was produced elsewhere.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		if err := e.Pull(ctx, syncOptions()); err != nil {
			wrapFatalln("pull", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pulled workspace", e.Workspace().Name())
	},
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		addOnlyFlag(c, &dwsFlags.sync.only)
		addSkipFlag(c)
		addMetadataOnlyFlag(c)
		rootCmd.AddCommand(c)
	}
}
