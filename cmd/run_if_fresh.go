package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runIfFreshFlags runFlags

var runIfFreshCmd = &cobra.Command{
	Use:   "run-if-fresh",
	Short: "Run only when a fresh, not yet handled scan summary exists",
	Long: `run-if-fresh is the cron entry point: it runs a backup only when the
latest scan summary is fresh, has not been backed up yet, and the per-source
cooldown has passed. A skip prints nothing to the database and exits 0.
When --sources is omitted the scan paths from the summary are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(runIfFreshFlags.config)
		if err != nil {
			return err
		}
		runIfFreshFlags.apply(cfg)
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		opts, err := runIfFreshFlags.runOptions(cfg)
		if err != nil {
			return err
		}
		if opts.Repo == "" {
			return fmt.Errorf("no borg repository: pass --borg-repo or set borg.repo")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, runErr := env.scheduler.RunIfFresh(ctx, opts)
		if report == nil {
			// skipped or failed before a run was attempted
			return runErr
		}
		printReport(report)
		os.Exit(exitCodeFor(report.Status))
		return nil
	},
}

func init() {
	addConfigFlag(runIfFreshCmd.Flags(), &runIfFreshFlags)
	addPolicyFlags(runIfFreshCmd.Flags(), &runIfFreshFlags)
	addBorgFlags(runIfFreshCmd.Flags(), &runIfFreshFlags)
	rootCmd.AddCommand(runIfFreshCmd)
}
