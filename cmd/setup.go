package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/dao"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/service"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/borg"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/fileurl"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// appEnv bundles everything a command needs after setup.
type appEnv struct {
	cfg       *app.AppConfig
	logger    *zap.Logger
	db        *gorm.DB
	monitor   domain.MonitorRepository
	runs      domain.RunRepository
	policy    *service.PolicyService
	exclude   *service.ExcludeService
	backup    *service.BackupService
	scheduler *service.SchedulerService
}

// loadConfigFile resolves the config path and creates a default config
// from the embedded template on first use.
func loadConfigFile(path string) (*app.AppConfig, error) {
	if path == "" {
		switch {
		case fileurl.IsExist("config/config-dev.yaml"):
			path = "config/config-dev.yaml"
		case fileurl.IsExist("config.yaml"):
			path = "config.yaml"
		case fileurl.IsExist("config/config.yaml"):
			path = "config/config.yaml"
		default:
			path = "config/config.yaml"
			bootstrapLogger.Warn("config file not found, creating default config",
				zap.String("path", path))
			if err := fileurl.CreatePath(path, os.ModePerm); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte(configDefault), 0o644); err != nil {
				return nil, err
			}
		}
	}

	cfg, realpath, err := app.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", realpath, err)
	}
	return cfg, nil
}

// newAppEnv builds logger, database and services from a loaded config.
func newAppEnv(cfg *app.AppConfig) (*appEnv, error) {
	lg, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := dao.NewDBEngineWithConfig(cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	d := dao.New(db)
	monitor := dao.NewMonitorRepository(d)
	runs := dao.NewRunRepository(d)

	policy := service.NewPolicyService(monitor, cfg.Policy, lg)
	exclude := service.NewExcludeService(monitor, lg)
	backup := service.NewBackupService(policy, exclude, runs, borg.NewExecRunner(lg), lg)
	scheduler := service.NewSchedulerService(monitor, backup, cfg.Scheduler, lg)

	return &appEnv{
		cfg:       cfg,
		logger:    lg,
		db:        db,
		monitor:   monitor,
		runs:      runs,
		policy:    policy,
		exclude:   exclude,
		backup:    backup,
		scheduler: scheduler,
	}, nil
}

// runFlags are the per-run flags shared by run, run-if-fresh and watch.
type runFlags struct {
	config      string
	source      string
	maxAgeMin   int
	decide      string
	repo        string
	passphrase  string
	archive     string
	sources     string
	excludeFile string
	compression string
	extraArgs   string
	dryRun      bool
	note        string
}

func addConfigFlag(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file")
}

func addPolicyFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVar(&f.source, "source", "", "source label (e.g. os, nas); empty = all")
	fs.IntVar(&f.maxAgeMin, "max-age-min", 0, "max scan age in minutes (0 = config value)")
	fs.StringVar(&f.decide, "decide", "auto", "force a mode or decide automatically (auto|full|partial|abort)")
}

func addBorgFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVar(&f.repo, "borg-repo", "", "borg repository (e.g. /mnt/backup/borg)")
	fs.StringVar(&f.passphrase, "borg-passphrase", "", "borg passphrase (default: config, then BORG_PASSPHRASE)")
	fs.StringVar(&f.archive, "archive", "", "archive name template, {source} and {now} are expanded")
	fs.StringVar(&f.sources, "sources", "", "comma-separated source paths")
	fs.StringVar(&f.excludeFile, "exclude-file", "", "where to write the exclude set")
	fs.StringVar(&f.compression, "compression", "", "borg compression")
	fs.StringVar(&f.extraArgs, "extra-args", "", "additional borg arguments (e.g. --one-file-system)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "log the invocation without executing borg")
	fs.StringVar(&f.note, "note", "", "free-text note for the run record")
}

// apply merges flag values over the config defaults. Flags win.
func (f *runFlags) apply(cfg *app.AppConfig) {
	if f.maxAgeMin > 0 {
		cfg.Policy.MaxAgeMin = f.maxAgeMin
	}
	if f.repo != "" {
		cfg.Borg.Repo = f.repo
	}
	if f.passphrase != "" {
		cfg.Borg.Passphrase = f.passphrase
	} else if cfg.Borg.Passphrase == "" {
		cfg.Borg.Passphrase = os.Getenv("BORG_PASSPHRASE")
	}
	if f.archive != "" {
		cfg.Borg.ArchiveTemplate = f.archive
	}
	if f.excludeFile != "" {
		cfg.Borg.ExcludeFile = f.excludeFile
	}
	if f.compression != "" {
		cfg.Borg.Compression = f.compression
	}
	if f.extraArgs != "" {
		cfg.Borg.ExtraArgs = strings.Fields(f.extraArgs)
	}
}

// runOptions builds the resolved run parameters from config and flags.
func (f *runFlags) runOptions(cfg *app.AppConfig) (service.RunOptions, error) {
	req, err := domain.ParseMode(f.decide)
	if err != nil {
		return service.RunOptions{}, err
	}
	return service.RunOptions{
		Source:      f.source,
		Decide:      req,
		Repo:        cfg.Borg.Repo,
		Passphrase:  cfg.Borg.Passphrase,
		Archive:     cfg.Borg.ArchiveTemplate,
		Sources:     splitList(f.sources),
		ExcludeFile: cfg.Borg.ExcludeFile,
		Compression: cfg.Borg.Compression,
		ExtraArgs:   cfg.Borg.ExtraArgs,
		DryRun:      f.dryRun,
		Note:        f.note,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
