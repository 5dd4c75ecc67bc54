package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a resource to the workspace",
	Long: `Add a resource to the workspace.

Resources are snapshotted and restored in the order they were added.
Relative local paths are relative to the workspace directory.`,
}

func resourceName(localPath string) string {
	if dwsFlags.resource.name != "" {
		return dwsFlags.resource.name
	}
	return filepath.Base(filepath.Clean(localPath))
}

func addResource(cmd *cobra.Command, spec resource.Spec) {
	ctx := context.Background()
	role, err := model.ParseRole(dwsFlags.resource.role)
	if err != nil {
		wrapFatalln("invalid role", err)
		return
	}
	spec.Role = role
	ws, err := openWorkspace(ctx)
	if err != nil {
		wrapFatalln("open workspace", err)
		return
	}
	r, err := ws.AddResource(ctx, spec)
	if err != nil {
		wrapFatalln("add resource", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", r)
}

var addGitCmd = &cobra.Command{
	Use:   "git PATH",
	Short: "Add a git repository",
	Long: `Add a separate git repository, cloned at some local path.

Snapshots commit pending changes in the repository and record the commit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addResource(cmd, resource.Spec{
			Type:      resource.TypeGit,
			Name:      resourceName(args[0]),
			LocalPath: args[0],
			Branch:    dwsFlags.resource.branch,
		})
	},
}

var addGitSubdirCmd = &cobra.Command{
	Use:   "git-subdirectory PATH",
	Short: "Add a subdirectory of the workspace repository",
	Long: `Add a subdirectory of the workspace git repository.

Snapshots commit the subdirectory only, and restores rewrite it without touching the rest of the repository.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addResource(cmd, resource.Spec{
			Type:      resource.TypeGitSubdirectory,
			Name:      resourceName(args[0]),
			LocalPath: args[0],
		})
	},
}

var addFileCmd = &cobra.Command{
	Use:   "file PATH",
	Short: "Add a local directory",
	Long: `Add a local directory, whose content is not managed by the workspace.

Snapshots record a signature of the directory. Restores check that the content matches, and fail otherwise.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addResource(cmd, resource.Spec{
			Type:        resource.TypeFile,
			Name:        resourceName(args[0]),
			LocalPath:   args[0],
			ComputeHash: dwsFlags.resource.computeHash,
			Ignore:      dwsFlags.resource.ignore,
		})
	},
}

var addRemoteCmd = &cobra.Command{
	Use:   "remote URL PATH",
	Short: "Add a remote bucket, mirrored in a local directory",
	Long: `Add a remote bucket, mirrored in a local directory.

Supported URLs are s3://bucket/prefix, gs://bucket/prefix and file:///path.
Snapshots record a signature of the remote listing. Push and pull copy objects between the bucket and the local directory.`,
	Example: `% dws add remote s3://my-bucket/raw data/raw --role source-data`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		addResource(cmd, resource.Spec{
			Type:      resource.TypeRemote,
			Name:      resourceName(args[1]),
			RemoteURL: args[0],
			LocalPath: args[1],
			Ignore:    dwsFlags.resource.ignore,
		})
	},
}

func init() {
	requireFlags(addCmd, addRoleFlag(addCmd))
	addResourceNameFlag(addCmd)

	addBranchFlag(addGitCmd)
	addComputeHashFlag(addFileCmd)
	addIgnoreFlag(addFileCmd)
	addIgnoreFlag(addRemoteCmd)

	for _, c := range []*cobra.Command{addGitCmd, addGitSubdirCmd, addFileCmd, addRemoteCmd} {
		addCmd.AddCommand(c)
	}
	addCmd.Long += "\n\nResource types: " + strings.Join(resource.Types(), ", ")
	rootCmd.AddCommand(addCmd)
}
