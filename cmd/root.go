// Package cmd wires the safe-backup CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configDefault string

var rootCmd = &cobra.Command{
	Use:   "safe-backup",
	Short: "Borg backup gated by the EntropyWatcher security posture",
	Long: `safe-backup runs borg create only when the EntropyWatcher database
says it is safe to do so: flagged files, recent antivirus events, scan
staleness and missing files decide between a full run, a partial run with
excludes, or no run at all. Every attempt is recorded in backup_runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the CLI. c is the embedded default config, written out when
// no config file exists yet.
func Execute(c string) {
	configDefault = c
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
