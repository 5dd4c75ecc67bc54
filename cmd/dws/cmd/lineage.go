package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/spf13/cobra"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Inspect the lineage of resources",
	Long: `Inspect the lineage of resources.

Lineage records which step, with which inputs and parameters, produced each resource.
References are given as NAME or NAME:SUBPATH, or as local paths within a resource.`,
}

// parseRefs resolves references given as NAME[:SUBPATH], or local paths. All resources are used when none is given.
func parseRefs(ws *workspace.Workspace, args []string) ([]model.ResourceRef, error) {
	if len(args) == 0 {
		refs := make([]model.ResourceRef, 0, len(ws.ResourceNames()))
		for _, name := range ws.ResourceNames() {
			refs = append(refs, model.NewRef(name, ""))
		}
		return refs, nil
	}
	refs := make([]model.ResourceRef, 0, len(args))
	for _, arg := range args {
		if ref, err := model.ParseRef(arg); err == nil {
			if _, err := ws.Resource(ref.Name); err == nil {
				refs = append(refs, ref)
				continue
			}
		}
		ref, err := ws.MapLocalPath(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func joinRefs(refs []model.ResourceRef) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}

var lineageValidateCmd = &cobra.Command{
	Use:   "validate [REF...]",
	Short: "Check the lineage of resources",
	Long: `Check the lineage of resources and of everything they were computed from.

Warnings are issued for resources without lineage, and with --verify-no-placeholders, for
resources only known by a placeholder. Failed or unfinished steps are errors.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		refs, err := parseRefs(ws, args)
		if err != nil {
			wrapFatalln("resolve references", err)
			return
		}
		report, err := ws.Lineage().Check(ctx, refs)
		if err != nil {
			wrapFatalln("check lineage", err)
			return
		}
		if dwsFlags.root.output != outputTable && dwsFlags.root.output != "" {
			if err := printObject(cmd.OutOrStdout(), report); err != nil {
				wrapFatalln("print report", err)
				return
			}
		} else {
			if len(report.Missing) > 0 {
				warnf("no lineage for: %s", joinRefs(report.Missing))
			}
			if len(report.Placeholders) > 0 && dwsFlags.lineage.verifyNoPlaceholders {
				warnf("placeholder lineage for: %s", joinRefs(report.Placeholders))
			}
			if len(report.Stale) > 0 {
				warnf("computed from inputs which changed since: %s", joinRefs(report.Stale))
			}
			warnings := report.Warnings(dwsFlags.lineage.verifyNoPlaceholders)
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d references: %d warning(s)\n", report.Checked, warnings)
		}
		if err := report.Err(); err != nil {
			wrapFatalln("lineage", err)
		}
	},
}

var lineageChainCmd = &cobra.Command{
	Use:   "chain REF",
	Short: "Show the steps which produced a resource",
	Long:  "Show the steps which produced a resource, in the order they ran.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		refs, err := parseRefs(ws, args)
		if err != nil {
			wrapFatalln("resolve reference", err)
			return
		}
		steps, err := ws.Lineage().Chain(ctx, refs[0])
		if err != nil {
			wrapFatalln("lineage chain", err)
			return
		}
		if err := printObject(cmd.OutOrStdout(), chainTable(steps)); err != nil {
			wrapFatalln("print chain", err)
		}
	},
}

type chainTable []model.StepLineage

func (chainTable) header() []string {
	return []string{"STEP", "RUN", "STATUS", "STARTED", "INPUTS", "OUTPUTS"}
}

func (c chainTable) rows() [][]string {
	rows := make([][]string, 0, len(c))
	for _, s := range c {
		inputs := make([]model.ResourceRef, 0, len(s.Inputs))
		for _, in := range s.Inputs {
			inputs = append(inputs, in.Ref)
		}
		st := string(s.Status)
		if s.Status == model.StepFailed {
			st = color.RedString(st)
		}
		rows = append(rows, []string{s.Name, s.RunID, st, s.StartTime.Local().Format(time.RFC3339), joinRefs(inputs), joinRefs(s.Outputs)})
	}
	return rows
}

var lineageShowCmd = &cobra.Command{
	Use:   "show [TAG_OR_HASH]",
	Short: "Show lineage records",
	Long:  "Show the current lineage records, or the records saved with a snapshot.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		e, err := openEngine(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		var manifest model.LineageFile
		if len(args) > 0 {
			manifest, err = e.Manifest(ctx, args[0])
		} else {
			manifest, err = e.Workspace().Lineage().Manifest(ctx)
		}
		if err != nil {
			wrapFatalln("read lineage", err)
			return
		}
		if err := printObject(cmd.OutOrStdout(), manifestTable(manifest)); err != nil {
			wrapFatalln("print lineage", err)
		}
	},
}

type manifestTable model.LineageFile

func (manifestTable) header() []string {
	return []string{"REF", "STATE", "CERTIFICATE", "STEP"}
}

func (m manifestTable) rows() [][]string {
	rows := make([][]string, 0, len(m.Lineages))
	for _, rec := range m.Lineages {
		step := ""
		if rec.Step != nil {
			step = rec.Step.Name
		}
		rows = append(rows, []string{rec.Ref.String(), string(rec.State), string(rec.Certificate.Kind) + ":" + rec.Certificate.Value, step})
	}
	return rows
}

func init() {
	addVerifyNoPlaceholdersFlag(lineageValidateCmd)
	lineageCmd.AddCommand(lineageValidateCmd)
	lineageCmd.AddCommand(lineageChainCmd)
	lineageCmd.AddCommand(lineageShowCmd)
	rootCmd.AddCommand(lineageCmd)
}
