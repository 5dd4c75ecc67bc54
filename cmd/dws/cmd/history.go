package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/spf13/cobra"
)

func snapshotLabel(number int, tags []string) string {
	if len(tags) == 0 {
		return fmt.Sprintf("%d", number)
	}
	return fmt.Sprintf("%d (%s)", number, strings.Join(tags, ", "))
}

type historyTable model.SnapshotHistory

func (historyTable) header() []string {
	return []string{"NUMBER", "HASH", "TAGS", "TIMESTAMP", "MESSAGE", "METRICS"}
}

func (h historyTable) rows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, s := range h {
		hash := s.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Number),
			hash,
			strings.Join(s.Tags, ","),
			s.Timestamp.Local().Format(time.RFC3339),
			s.Message,
			formatMetrics(s.Metrics),
		})
	}
	return rows
}

func formatMetrics(metrics map[string]interface{}) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, metrics[k]))
	}
	return strings.Join(parts, " ")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the snapshots of the workspace",
	Long:  "List the snapshots of the workspace, oldest first.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		var out interface{} = historyTable(ws.History())
		if dwsFlags.root.output != outputTable && dwsFlags.root.output != "" {
			out = ws.History()
		}
		if err := printObject(cmd.OutOrStdout(), out); err != nil {
			wrapFatalln("print history", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
