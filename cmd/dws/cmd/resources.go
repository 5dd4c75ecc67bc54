package cmd

import (
	"context"

	"github.com/docker/go-units"
	dws "github.com/kisdma/data-workspaces-core"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/spf13/cobra"
)

type resourcesTable []dws.ResourceInfo

func (resourcesTable) header() []string {
	return []string{"NAME", "ROLE", "TYPE", "LOCAL PATH", "SIZE"}
}

func (r resourcesTable) rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, info := range r {
		size := ""
		if info.LocalPath != "" {
			size = units.HumanSize(float64(info.Size))
		}
		rows = append(rows, []string{info.Name, string(info.Role), info.Type, info.LocalPath, size})
	}
	return rows
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List the resources of the workspace",
	Long:  "List the resources of the workspace, in the order they are snapshotted.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		infos, err := dws.GetResourceInfo(ctx, workspaceDir(), workspace.Logger(logger))
		if err != nil {
			wrapFatalln("list resources", err)
			return
		}
		var out interface{} = resourcesTable(infos)
		if dwsFlags.root.output != outputTable && dwsFlags.root.output != "" {
			out = infos
		}
		if err := printObject(cmd.OutOrStdout(), out); err != nil {
			wrapFatalln("print resources", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
}
