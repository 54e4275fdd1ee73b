package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/service"

	"github.com/spf13/cobra"
)

var preflightFlags runFlags

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Show the security posture and the decision, without running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile(preflightFlags.config)
		if err != nil {
			return err
		}
		preflightFlags.apply(cfg)
		env, err := newAppEnv(cfg)
		if err != nil {
			return err
		}

		req, err := domain.ParseMode(preflightFlags.decide)
		if err != nil {
			return err
		}

		pf, err := env.policy.Evaluate(context.Background(), preflightFlags.source)
		if err != nil {
			return err
		}
		decision := service.Decide(pf, req, cfg.Policy)

		out, err := json.MarshalIndent(struct {
			Preflight *domain.PreflightSnapshot `json:"preflight"`
			Decision  domain.Decision           `json:"decision"`
		}{pf, decision}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	addConfigFlag(preflightCmd.Flags(), &preflightFlags)
	addPolicyFlags(preflightCmd.Flags(), &preflightFlags)
	rootCmd.AddCommand(preflightCmd)
}
