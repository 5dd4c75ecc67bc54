package cmd

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

// VersionInfo describes the build of dws
type VersionInfo struct {
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
	MetadataVersion uint64 `json:"metadataVersion" yaml:"metadataVersion"`
	BuildDate       string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GitCommit       string `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitState        string `json:"gitState,omitempty" yaml:"gitState,omitempty"`
}

// NewVersionInfo from the build information
func NewVersionInfo() VersionInfo {
	ver := VersionInfo{
		Version:         "dev",
		MetadataVersion: model.CurrentToolVersion,
		BuildDate:       BuildDate,
		GitCommit:       GitCommit,
	}
	if Version != "" {
		ver.Version = Version
		ver.GitState = "clean"
	}
	if GitState != "" {
		ver.GitState = GitState
	}
	return ver
}

func (v VersionInfo) String() string {
	var buf bytes.Buffer
	buf.WriteString("Version: ")
	buf.WriteString(v.Version)
	buf.WriteString("\n")
	buf.WriteString("Metadata version: ")
	buf.WriteString(strconv.FormatUint(v.MetadataVersion, 10))
	buf.WriteString("\n")
	buf.WriteString("Build date: ")
	buf.WriteString(v.BuildDate)
	buf.WriteString("\n")
	buf.WriteString("Commit: ")
	buf.WriteString(v.GitCommit)
	buf.WriteString("\n")
	buf.WriteString("Working tree: ")
	buf.WriteString(v.GitState)
	buf.WriteString("\n")
	return buf.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the version of dws",
	Long: `Prints the version of dws. It includes the following components:
	* Semver (output of git describe --tags)
	* Metadata version (the version of workspace metadata written by this binary)
	* Build Date (date at which the binary was built)
	* Git Commit (the git commit hash this binary was built from)
	* Git State (when dirty there were uncommitted changes during the build)
`,
	Run: func(cmd *cobra.Command, args []string) {
		info := NewVersionInfo()
		if dwsFlags.root.output == outputTable || dwsFlags.root.output == "" {
			fmt.Fprint(cmd.OutOrStdout(), info.String())
			return
		}
		if err := printObject(cmd.OutOrStdout(), info); err != nil {
			wrapFatalln("print version", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
