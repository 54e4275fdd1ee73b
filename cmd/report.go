package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reportFlags runFlags
	reportLimit int
)

var reportCmd = &cobra.Command{
	Use:   "report-last",
	Short: "Show the most recent backup runs as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(reportFlags.config)
		if err != nil {
			return err
		}
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		runs, err := env.runs.ListRecent(context.Background(), reportFlags.source, reportLimit)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	addConfigFlag(reportCmd.Flags(), &reportFlags)
	reportCmd.Flags().StringVar(&reportFlags.source, "source", "", "filter by source label")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(reportCmd)
}
