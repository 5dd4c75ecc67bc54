// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/kisdma/data-workspaces-core/pkg/dlogger"
	"github.com/spf13/cobra"
)

const (
	workspaceKey = "workspace"
	logLevelKey  = "loglevel"
	batchKey     = "batch"
	outputKey    = "output"
)

type flagsT struct {
	root struct {
		workspace string
		logLevel  string
		verbose   bool
		batch     bool
		output    string
	}
	init struct {
		hostname string
		noGit    bool
	}
	resource struct {
		name        string
		role        string
		branch      string
		computeHash bool
		ignore      []string
	}
	snapshot struct {
		message string
	}
	restore struct {
		only          []string
		leave         []string
		noNewSnapshot bool
	}
	delete struct {
		removeResults bool
	}
	sync struct {
		only         []string
		skip         []string
		metadataOnly bool
	}
	lineage struct {
		verifyNoPlaceholders bool
	}
	config struct {
		local bool
	}
}

var dwsFlags = flagsT{}

func addWorkspaceFlag(cmd *cobra.Command) string {
	c := workspaceKey
	cmd.PersistentFlags().StringVar(&dwsFlags.root.workspace, c, "", "The workspace directory. Defaults to the workspace containing the current directory")
	return c
}

func addLogLevelFlag(cmd *cobra.Command) string {
	c := logLevelKey
	cmd.PersistentFlags().StringVar(&dwsFlags.root.logLevel, c, dlogger.LogLevelWarn,
		fmt.Sprintf("The logging level. One of %s, %s, %s, %s, %s",
			dlogger.LogLevelNone, dlogger.LogLevelError, dlogger.LogLevelWarn, dlogger.LogLevelInfo, dlogger.LogLevelDebug))
	return c
}

func addVerboseFlag(cmd *cobra.Command) string {
	c := "verbose"
	cmd.PersistentFlags().BoolVarP(&dwsFlags.root.verbose, c, "v", false, "Log debug messages")
	return c
}

func addBatchFlag(cmd *cobra.Command) string {
	c := batchKey
	cmd.PersistentFlags().BoolVar(&dwsFlags.root.batch, c, false, "Run without asking for confirmation")
	return c
}

func addOutputFlag(cmd *cobra.Command) string {
	c := outputKey
	cmd.PersistentFlags().StringVarP(&dwsFlags.root.output, c, "o", outputTable,
		fmt.Sprintf("The output format. One of %s, %s, %s", outputTable, outputJSON, outputYAML))
	return c
}

func addHostnameFlag(cmd *cobra.Command) string {
	c := "hostname"
	cmd.Flags().StringVar(&dwsFlags.init.hostname, c, "", "The name of this installation. Defaults to the host name")
	return c
}

func addNoGitFlag(cmd *cobra.Command) string {
	c := "no-git"
	cmd.Flags().BoolVar(&dwsFlags.init.noGit, c, false, "Do not put the workspace under git")
	return c
}

func addResourceNameFlag(cmd *cobra.Command) string {
	c := "name"
	cmd.PersistentFlags().StringVar(&dwsFlags.resource.name, c, "", "The name of the resource. Defaults to the base name of its local path")
	return c
}

func addRoleFlag(cmd *cobra.Command) string {
	c := "role"
	cmd.PersistentFlags().StringVar(&dwsFlags.resource.role, c, "", "The role of the resource: source-data, code, intermediate-data or results")
	return c
}

func addBranchFlag(cmd *cobra.Command) string {
	c := "branch"
	cmd.Flags().StringVar(&dwsFlags.resource.branch, c, "", "The branch of the git repository")
	return c
}

func addComputeHashFlag(cmd *cobra.Command) string {
	c := "compute-hash"
	cmd.Flags().BoolVar(&dwsFlags.resource.computeHash, c, false, "Hash file content, instead of only considering file sizes")
	return c
}

func addIgnoreFlag(cmd *cobra.Command) string {
	c := "ignore"
	cmd.Flags().StringSliceVar(&dwsFlags.resource.ignore, c, nil, "Names or glob patterns of files to leave out of snapshots")
	return c
}

func addMessageFlag(cmd *cobra.Command) string {
	c := "message"
	cmd.Flags().StringVarP(&dwsFlags.snapshot.message, c, "m", "", "A message describing the snapshot")
	return c
}

func addOnlyFlag(cmd *cobra.Command, target *[]string) string {
	c := "only"
	cmd.Flags().StringSliceVar(target, c, nil, "Only consider these resources")
	return c
}

func addLeaveFlag(cmd *cobra.Command) string {
	c := "leave"
	cmd.Flags().StringSliceVar(&dwsFlags.restore.leave, c, nil, "Leave these resources as they are")
	return c
}

func addNoNewSnapshotFlag(cmd *cobra.Command) string {
	c := "no-new-snapshot"
	cmd.Flags().BoolVar(&dwsFlags.restore.noNewSnapshot, c, false, "Do not snapshot the resulting state when resources are left")
	return c
}

func addSkipFlag(cmd *cobra.Command) string {
	c := "skip"
	cmd.Flags().StringSliceVar(&dwsFlags.sync.skip, c, nil, "Skip these resources")
	return c
}

func addMetadataOnlyFlag(cmd *cobra.Command) string {
	c := "metadata-only"
	cmd.Flags().BoolVar(&dwsFlags.sync.metadataOnly, c, false, "Only sync the workspace metadata")
	return c
}

func addRemoveResultsFlag(cmd *cobra.Command) string {
	c := "remove-results"
	cmd.Flags().BoolVar(&dwsFlags.delete.removeResults, c, false, "Also remove the archived results of the snapshot")
	return c
}

func addVerifyNoPlaceholdersFlag(cmd *cobra.Command) string {
	c := "verify-no-placeholders"
	cmd.Flags().BoolVar(&dwsFlags.lineage.verifyNoPlaceholders, c, false, "Count placeholder lineage as a warning")
	return c
}

func addLocalParamFlag(cmd *cobra.Command) string {
	c := "local"
	cmd.Flags().BoolVar(&dwsFlags.config.local, c, false, "Use the parameters of this installation, which are not replicated")
	return c
}

func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		err := cmd.MarkFlagRequired(flag)
		if err != nil {
			err = cmd.MarkPersistentFlagRequired(flag)
		}
		if err != nil {
			wrapFatalln(fmt.Sprintf("error attempting to mark the required flag %q", flag), err)
			return
		}
	}
}
