package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/borg"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RunOptions are the resolved parameters of one backup attempt. The cmd
// layer merges config defaults and flags before calling Run.
type RunOptions struct {
	Source      string
	Decide      domain.DecisionRequest
	Repo        string
	Passphrase  string
	Archive     string // template; {source} and {now} are expanded
	Sources     []string
	ExcludeFile string
	Compression string
	ExtraArgs   []string
	DryRun      bool
	Note        string
}

// RunReport is the outcome of one attempt, shaped for JSON display.
type RunReport struct {
	Preflight *domain.PreflightSnapshot `json:"preflight"`
	Mode      domain.Mode               `json:"mode"`
	Reason    string                    `json:"reason"`
	Status    domain.RunStatus          `json:"status"`
	Rc        int                       `json:"rc"`
	Archive   string                    `json:"archive,omitempty"`
	Repo      string                    `json:"repo,omitempty"`
	Excludes  *domain.ExcludeCounts     `json:"excludes,omitempty"`
	Stats     *borg.Stats               `json:"stats,omitempty"`
	Note      string                    `json:"note,omitempty"`
}

// BackupService drives the full run flow: preflight, decision, exclude
// set, borg invocation, parsing, classification and run recording.
// Everything is strictly sequential; the borg invocation is the only
// blocking step with unbounded duration.
type BackupService struct {
	policy  *PolicyService
	exclude *ExcludeService
	runs    domain.RunRepository
	runner  borg.Runner
	logger  *zap.Logger
	now     func() time.Time
}

// NewBackupService creates a BackupService.
func NewBackupService(policy *PolicyService, exclude *ExcludeService, runs domain.RunRepository, runner borg.Runner, lg *zap.Logger) *BackupService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &BackupService{
		policy:  policy,
		exclude: exclude,
		runs:    runs,
		runner:  runner,
		logger:  lg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one backup attempt and appends exactly one run record,
// aborted attempts included. A monitoring-store failure during preflight
// is fatal and produces no record: the policy cannot act without ground
// truth.
func (s *BackupService) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	startedAt := s.now()

	pf, err := s.policy.Evaluate(ctx, opts.Source)
	if err != nil {
		return nil, err
	}
	decision := Decide(pf, opts.Decide, s.policy.cfg)

	archive := expandArchiveTemplate(opts.Archive, opts.Source, startedAt)
	report := &RunReport{
		Preflight: pf,
		Mode:      decision.Mode,
		Reason:    decision.Reason,
		Archive:   archive,
		Repo:      opts.Repo,
	}

	run := &domain.BackupRun{
		StartedAt:    startedAt,
		Source:       opts.Source,
		Mode:         decision.Mode,
		PolicyReason: decision.Reason,
		Repo:         opts.Repo,
		Archive:      archive,
		Note:         opts.Note,
	}

	if decision.Mode == domain.ModeAbort {
		// the attempt is logged, nothing is executed
		report.Status = domain.StatusAborted
		run.Status = domain.StatusAborted
		run.ExitCode = 0
		s.logger.Warn("backup aborted by policy",
			zap.String("source", opts.Source),
			zap.String("reason", decision.Reason))
		return report, s.record(ctx, run)
	}

	excludeFile := ""
	if decision.Mode == domain.ModePartial {
		counts, err := s.exclude.BuildExcludeFile(ctx, opts.Source, opts.ExcludeFile)
		if err != nil {
			// a partial run without guaranteed exclusions must not proceed
			report.Status = domain.StatusFailed
			report.Note = err.Error()
			run.Status = domain.StatusFailed
			run.ExitCode = -1
			run.Note = appendNote(opts.Note, "exclude-file:"+err.Error())
			if recErr := s.record(ctx, run); recErr != nil {
				s.logger.Error("failed to record run", zap.Error(recErr))
			}
			return report, err
		}
		report.Excludes = &counts
		run.Note = appendNote(run.Note, counts.Note())
		excludeFile = opts.ExcludeFile
	}

	result, err := s.runner.Create(ctx, borg.CreateOptions{
		Repo:        opts.Repo,
		Passphrase:  opts.Passphrase,
		Archive:     archive,
		Sources:     opts.Sources,
		ExcludeFile: excludeFile,
		Compression: opts.Compression,
		ExtraArgs:   opts.ExtraArgs,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		// the process never started (binary missing, bad environment)
		report.Status = domain.StatusFailed
		report.Note = err.Error()
		run.Status = domain.StatusFailed
		run.ExitCode = -1
		run.Note = appendNote(run.Note, "exec:"+err.Error())
		if recErr := s.record(ctx, run); recErr != nil {
			s.logger.Error("failed to record run", zap.Error(recErr))
		}
		return report, errors.Wrap(err, "borg invocation")
	}

	stats := borg.ParseStats(result.Output)
	status, note := borg.Classify(result.Output, result.ExitCode)

	report.Status = domain.RunStatus(status)
	report.Rc = result.ExitCode
	report.Stats = &stats
	report.Note = note

	run.Status = domain.RunStatus(status)
	run.ExitCode = result.ExitCode
	run.Note = appendNote(run.Note, note)
	run.FilesAdded = stats.FilesAdded
	run.FilesChanged = stats.FilesChanged
	run.FilesTotal = stats.FilesTotal
	run.SizeOriginalBytes = stats.SizeOriginalBytes
	run.SizeCompressedBytes = stats.SizeCompressedBytes
	run.SizeDedupBytes = stats.SizeDedupBytes
	run.DurationSeconds = stats.DurationSeconds
	if blob, err := json.Marshal(stats); err == nil {
		run.StatsJSON = string(blob)
	}

	s.logger.Info("backup finished",
		zap.String("source", opts.Source),
		zap.String("mode", string(decision.Mode)),
		zap.String("status", string(run.Status)),
		zap.Int("rc", result.ExitCode),
		zap.String("archive", archive))

	return report, s.record(ctx, run)
}

func (s *BackupService) record(ctx context.Context, run *domain.BackupRun) error {
	finished := s.now()
	run.FinishedAt = &finished
	if _, err := s.runs.Create(ctx, run); err != nil {
		return errors.Wrap(err, "record run")
	}
	return nil
}

// expandArchiveTemplate renders {source} and {now} in an archive name.
func expandArchiveTemplate(template, source string, now time.Time) string {
	if source == "" {
		source = "all"
	}
	name := strings.ReplaceAll(template, "{source}", source)
	return strings.ReplaceAll(name, "{now}", now.Format("2006-01-02_15-04"))
}

func appendNote(note, extra string) string {
	if extra == "" {
		return note
	}
	if note == "" {
		return extra
	}
	return note + " " + extra
}
