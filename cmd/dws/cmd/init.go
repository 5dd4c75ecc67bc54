package cmd

import (
	"context"
	"fmt"

	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [NAME]",
	Short: "Create a workspace",
	Long: `Create a workspace in the workspace directory, or in the current directory.

The workspace is put under git, unless --no-git is given or git is not available.
The name defaults to the base name of the directory.`,
	Example: `% dws init --workspace ./experiment
Initialized workspace experiment in /home/me/experiment`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var name string
		if len(args) > 0 {
			name = args[0]
		}
		opts := []workspace.Option{workspace.Logger(logger)}
		if dwsFlags.init.noGit {
			opts = append(opts, workspace.NoVCS())
		}
		if dwsFlags.init.hostname != "" {
			opts = append(opts, workspace.Hostname(dwsFlags.init.hostname))
		}
		ws, err := workspace.Init(ctx, workspaceDir(), name, opts...)
		if err != nil {
			wrapFatalln("initialize workspace", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized workspace %s in %s\n", ws.Name(), ws.Dir())
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone URL [DIRECTORY]",
	Short: "Clone a workspace",
	Long: `Clone a workspace from its git remote, and materialize its resources.

Local resources are created at the same relative path as in the origin workspace.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir := workspaceDir()
		if len(args) > 1 {
			dir = args[1]
		}
		opts := []workspace.Option{workspace.Logger(logger)}
		if dwsFlags.init.hostname != "" {
			opts = append(opts, workspace.Hostname(dwsFlags.init.hostname))
		}
		ws, err := workspace.Clone(ctx, args[0], dir, opts...)
		if err != nil {
			wrapFatalln("clone workspace", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cloned workspace %s in %s\n", ws.Name(), ws.Dir())
	},
}

func init() {
	addHostnameFlag(initCmd)
	addNoGitFlag(initCmd)
	rootCmd.AddCommand(initCmd)

	addHostnameFlag(cloneCmd)
	rootCmd.AddCommand(cloneCmd)
}
