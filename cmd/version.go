package cmd

import (
	"fmt"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", app.Name, app.Version)
		if app.GitTag != "" {
			fmt.Printf("git: %s\n", app.GitTag)
		}
		if app.BuildTime != "" {
			fmt.Printf("built: %s\n", app.BuildTime)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
