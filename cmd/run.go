package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"

	"github.com/spf13/cobra"
)

var runCmdFlags runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Decide and execute one backup attempt",
	Long: `run evaluates the EntropyWatcher posture, decides full, partial or
abort, executes borg create for full and partial, and appends one record to
backup_runs either way. The exit code follows the run status: 0 for success
or an aborted run, 1 for warnings, 2 for failure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(runCmdFlags.config)
		if err != nil {
			return err
		}
		runCmdFlags.apply(cfg)
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		opts, err := runCmdFlags.runOptions(cfg)
		if err != nil {
			return err
		}
		if len(opts.Sources) == 0 {
			return fmt.Errorf("no source paths: pass --sources")
		}
		if opts.Repo == "" {
			return fmt.Errorf("no borg repository: pass --borg-repo or set borg.repo")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, runErr := env.backup.Run(ctx, opts)
		if report != nil {
			printReport(report)
			os.Exit(exitCodeFor(report.Status))
		}
		return runErr
	},
}

func printReport(report any) {
	if out, err := json.MarshalIndent(report, "", "  "); err == nil {
		fmt.Println(string(out))
	}
}

// exitCodeFor mirrors borg's convention: warnings are rc 1, failures rc 2.
// An aborted run is a correct outcome of the gate, not an error.
func exitCodeFor(status domain.RunStatus) int {
	switch status {
	case domain.StatusSuccess, domain.StatusAborted:
		return 0
	case domain.StatusWarning:
		return 1
	default:
		return 2
	}
}

func init() {
	addConfigFlag(runCmd.Flags(), &runCmdFlags)
	addPolicyFlags(runCmd.Flags(), &runCmdFlags)
	addBorgFlags(runCmd.Flags(), &runCmdFlags)
	rootCmd.AddCommand(runCmd)
}
