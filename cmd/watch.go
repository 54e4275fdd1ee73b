package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchFlags runFlags

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Evaluate the freshness gate on a cron schedule",
	Long: `watch stays in the foreground and applies the run-if-fresh gate on
the configured schedule (scheduler.cron, default every 5 minutes). Overlapping
ticks are skipped while a backup is still running. SIGINT or SIGTERM stops the
schedule and waits for a running backup to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(watchFlags.config)
		if err != nil {
			return err
		}
		watchFlags.apply(cfg)
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		opts, err := watchFlags.runOptions(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		_, err = c.AddFunc(cfg.Scheduler.Cron, func() {
			report, err := env.scheduler.RunIfFresh(ctx, opts)
			switch {
			case err != nil:
				env.logger.Error("scheduled run failed", zap.Error(err))
			case report != nil:
				env.logger.Info("scheduled run finished",
					zap.String("status", string(report.Status)),
					zap.String("mode", string(report.Mode)),
					zap.String("reason", report.Reason))
			}
		})
		if err != nil {
			return err
		}

		env.logger.Info("watch started", zap.String("cron", cfg.Scheduler.Cron))
		c.Start()
		<-ctx.Done()

		env.logger.Info("watch stopping, waiting for running jobs")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	addConfigFlag(watchCmd.Flags(), &watchFlags)
	addPolicyFlags(watchCmd.Flags(), &watchFlags)
	addBorgFlags(watchCmd.Flags(), &watchFlags)
	rootCmd.AddCommand(watchCmd)
}
