package service

import (
	"context"
	"strings"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/statefile"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// stateTimeLayout is the format of last_backup_at in the state file.
const stateTimeLayout = time.RFC3339

// SourceState is the persisted per-source scheduler state.
type SourceState struct {
	LastSummaryID int64  `json:"last_summary_id"`
	LastBackupAt  string `json:"last_backup_at"`
}

// schedulerState maps source label (or "all") to its state.
type schedulerState map[string]SourceState

// SchedulerService gates unattended runs on scan freshness and a
// per-source cooldown. Concurrent invocations for different sources are
// keyed independently; two instances must not run against the same source
// at once, the atomic state write prevents corruption but not races.
type SchedulerService struct {
	monitor domain.MonitorRepository
	backup  *BackupService
	state   *statefile.Store
	cfg     app.SchedulerConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewSchedulerService creates a SchedulerService.
func NewSchedulerService(monitor domain.MonitorRepository, backup *BackupService, cfg app.SchedulerConfig, lg *zap.Logger) *SchedulerService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &SchedulerService{
		monitor: monitor,
		backup:  backup,
		state:   statefile.New(cfg.StateFile),
		cfg:     cfg,
		logger:  lg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunIfFresh runs the full backup flow iff a fresh, not-yet-handled scan
// summary exists for the source and the cooldown window has passed. A
// skip returns (nil, nil) and produces no run record: the gate never
// reached the decision engine.
//
// After a triggered run the summary id and trigger time are persisted
// atomically regardless of the run's status; even a warning or failed run
// used up that scan cycle and starts a fresh cooldown window, capping
// retry storms.
func (s *SchedulerService) RunIfFresh(ctx context.Context, opts RunOptions) (*RunReport, error) {
	now := s.now()

	summary, err := s.monitor.LastScanSummary(ctx, opts.Source)
	if err != nil {
		return nil, errors.Wrap(err, "scheduler: load scan summary")
	}
	if summary == nil {
		s.logger.Info("no scan summary, nothing to do", zap.String("source", opts.Source))
		return nil, nil
	}
	if summary.FinishedAt == nil {
		s.logger.Info("latest scan summary not finished, nothing to do",
			zap.String("source", opts.Source),
			zap.Int64("summaryId", summary.ID))
		return nil, nil
	}

	age := now.Sub(*summary.FinishedAt)
	if age > s.cfg.Freshness() {
		s.logger.Info("scan summary too old, nothing to do",
			zap.String("source", opts.Source),
			zap.Duration("age", age),
			zap.Duration("freshness", s.cfg.Freshness()))
		return nil, nil
	}

	st := schedulerState{}
	_ = s.state.Load(&st) // read failure degrades to "never run before"

	key := stateKey(summary.Source)
	prev := st[key]

	if prev.LastSummaryID == summary.ID {
		s.logger.Info("scan summary already handled, nothing to do",
			zap.String("source", opts.Source),
			zap.Int64("summaryId", summary.ID))
		return nil, nil
	}

	if prev.LastBackupAt != "" {
		if last, err := time.Parse(stateTimeLayout, prev.LastBackupAt); err == nil {
			if since := now.Sub(last); since < s.cfg.Cooldown() {
				s.logger.Info("cooldown active, nothing to do",
					zap.String("source", opts.Source),
					zap.Duration("since", since),
					zap.Duration("cooldown", s.cfg.Cooldown()))
				return nil, nil
			}
		}
	}

	if len(opts.Sources) == 0 {
		opts.Sources = splitPaths(summary.ScanPaths)
		if len(opts.Sources) == 0 {
			s.logger.Warn("no source paths given and scan summary has none, nothing to do",
				zap.String("source", opts.Source),
				zap.Int64("summaryId", summary.ID))
			return nil, nil
		}
	}

	report, runErr := s.backup.Run(ctx, opts)
	if report == nil {
		// preflight never completed, the scan cycle is not used up
		return nil, runErr
	}

	st[key] = SourceState{
		LastSummaryID: summary.ID,
		LastBackupAt:  s.now().Format(stateTimeLayout),
	}
	if err := s.state.Save(st); err != nil {
		// without a persisted trigger time the next invocation may fire again
		return report, errors.Wrap(err, "scheduler: persist state")
	}

	return report, runErr
}

func stateKey(source string) string {
	if source == "" {
		return "all"
	}
	return source
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
