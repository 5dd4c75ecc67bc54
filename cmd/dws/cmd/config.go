package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get and set workspace parameters",
	Long: `Get and set workspace parameters.

Global parameters are replicated with the workspace. Local parameters (--local) are specific to this installation,
like its hostname.`,
}

func params(ws *workspace.Workspace) map[string]interface{} {
	if dwsFlags.config.local {
		return ws.LocalParams()
	}
	return ws.GlobalParams()
}

type paramsTable map[string]interface{}

func (paramsTable) header() []string {
	return []string{"KEY", "VALUE"}
}

func (p paramsTable) rows() [][]string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%v", p[k])})
	}
	return rows
}

var configGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Get workspace parameters",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		p := params(ws)
		if len(args) == 0 {
			if err := printObject(cmd.OutOrStdout(), paramsTable(p)); err != nil {
				wrapFatalln("print parameters", err)
			}
			return
		}
		value, ok := p[args[0]]
		if !ok {
			wrapFatalWithCodef(exitInvalidArg, "no parameter %q", args[0])
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a workspace parameter",
	Long: `Set a workspace parameter.

Values are parsed as YAML scalars: numbers and booleans keep their type.`,
	Example: `% dws config set owner data-team
% dws config set --local scratch /tmp/scratch`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil || value == nil {
			value = args[1]
		}
		if dwsFlags.config.local {
			err = ws.SetLocalParam(ctx, args[0], value)
		} else {
			err = ws.SetGlobalParam(ctx, args[0], value)
		}
		if err != nil {
			wrapFatalln("set parameter", err)
		}
	},
}

func init() {
	addLocalParamFlag(configGetCmd)
	addLocalParamFlag(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
