package cmd

import (
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var schemaFlags runFlags

var schemaCmd = &cobra.Command{
	Use:   "write-schema",
	Short: "Create or update the backup_runs table",
	Long: `write-schema migrates the backup_runs table in the EntropyWatcher
database. The monitoring tables (files, av_events, scan_summary) are owned
by the watcher and are never touched here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(schemaFlags.config)
		if err != nil {
			return err
		}
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}
		if err := model.AutoMigrate(env.db, "BackupRun"); err != nil {
			return err
		}
		env.logger.Info("schema ready", zap.String("table", "backup_runs"))
		return nil
	},
}

func init() {
	addConfigFlag(schemaCmd.Flags(), &schemaFlags)
	rootCmd.AddCommand(schemaCmd)
}
