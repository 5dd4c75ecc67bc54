// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dws",
	Short: "dws makes data science experiments reproducible",
	Long: `dws tracks the resources of a data workspace: source data, code, intermediate data and results.

It takes snapshots of their combined state, restores them, and records the lineage of the steps
which produced each resource.

Code and workspace metadata are kept in git. Data may live in local directories or remote buckets.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

var logger = zap.NewNop()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	addWorkspaceFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addVerboseFlag(rootCmd)
	addBatchFlag(rootCmd)
	addOutputFlag(rootCmd)

	for _, key := range []string{workspaceKey, logLevelKey, batchKey, outputKey} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			wrapFatalln("bind flag "+key, err)
			return
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault(logLevelKey, dlogger.LogLevelWarn)
	viper.SetDefault(outputKey, outputTable)
	if os.Getenv("DWS_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("DWS_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.dws")
		viper.SetConfigName("dws")
	}

	viper.SetEnvPrefix("dws")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}

	dwsFlags.root.workspace = viper.GetString(workspaceKey)
	dwsFlags.root.logLevel = viper.GetString(logLevelKey)
	dwsFlags.root.batch = viper.GetBool(batchKey)
	dwsFlags.root.output = viper.GetString(outputKey)
}

func setupLogger() {
	level := dwsFlags.root.logLevel
	if level == "" {
		level = dlogger.LogLevelWarn
	}
	if dwsFlags.root.verbose {
		level = dlogger.LogLevelDebug
	}
	l, err := dlogger.GetConsoleLogger(level)
	if err != nil {
		wrapFatalln("invalid log level", err)
		return
	}
	logger = l
}
