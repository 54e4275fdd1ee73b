package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/borg"
)

// --- Mocks ---

type mockRunRepo struct {
	domain.RunRepository
	created []*domain.BackupRun
	err     error
}

func (m *mockRunRepo) Create(ctx context.Context, run *domain.BackupRun) (*domain.BackupRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, run)
	return run, nil
}

func (m *mockRunRepo) ListRecent(ctx context.Context, source string, limit int) ([]*domain.BackupRun, error) {
	return m.created, nil
}

type fakeRunner struct {
	result   borg.Result
	err      error
	lastOpts *borg.CreateOptions
	calls    int
}

func (f *fakeRunner) Create(ctx context.Context, opts borg.CreateOptions) (borg.Result, error) {
	f.calls++
	f.lastOpts = &opts
	return f.result, f.err
}

func newTestBackupService(monitor *mockMonitorRepo, runs *mockRunRepo, runner borg.Runner) *BackupService {
	policy := NewPolicyService(monitor, testPolicyConfig(), nil)
	exclude := NewExcludeService(monitor, nil)
	return NewBackupService(policy, exclude, runs, runner, nil)
}

func freshScan() *time.Time {
	ts := time.Now().UTC().Add(-5 * time.Minute)
	return &ts
}

func testRunOptions(t *testing.T) RunOptions {
	return RunOptions{
		Source:      "os",
		Decide:      domain.AutoDecision(),
		Repo:        "/mnt/backup/borg",
		Archive:     "{source}-{now}",
		Sources:     []string{"/etc", "/home"},
		ExcludeFile: filepath.Join(t.TempDir(), "excludes.txt"),
		Compression: "lz4",
	}
}

// --- Tests ---

func TestRunFullSuccess(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "Duration: 10.0 seconds\nNumber of files: 100\n"}}
	s := newTestBackupService(&mockMonitorRepo{lastScan: freshScan()}, runs, runner)

	report, err := s.Run(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != domain.ModeFull {
		t.Errorf("mode = %s, want full", report.Mode)
	}
	if report.Status != domain.StatusSuccess {
		t.Errorf("status = %s, want success", report.Status)
	}
	if runner.lastOpts.ExcludeFile != "" {
		t.Error("a full run must not pass an exclude file")
	}
	if len(runs.created) != 1 {
		t.Fatalf("created %d run records, want 1", len(runs.created))
	}
	run := runs.created[0]
	if run.FilesTotal == nil || *run.FilesTotal != 100 {
		t.Errorf("files_total not carried into the record: %+v", run.FilesTotal)
	}
	if run.FinishedAt == nil {
		t.Error("finished_at not set on the record")
	}
	if !strings.Contains(run.Archive, "os-") {
		t.Errorf("archive = %q, want expanded template", run.Archive)
	}
}

func TestRunAbortRecordsWithoutExecuting(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{}
	s := newTestBackupService(&mockMonitorRepo{flagged: 9, lastScan: freshScan()}, runs, runner)

	report, err := s.Run(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != domain.ModeAbort || report.Status != domain.StatusAborted {
		t.Errorf("mode/status = %s/%s, want abort/aborted", report.Mode, report.Status)
	}
	if runner.calls != 0 {
		t.Error("borg must not be invoked on abort")
	}
	if len(runs.created) != 1 {
		t.Fatalf("created %d run records, want 1: aborted attempts are logged", len(runs.created))
	}
	if runs.created[0].PolicyReason != "critical:flagged>=5 (9)" {
		t.Errorf("policy_reason = %q", runs.created[0].PolicyReason)
	}
}

func TestRunPartialBuildsExcludeFile(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "ok"}}
	monitor := &mockMonitorRepo{
		flagged:      2,
		lastScan:     freshScan(),
		flaggedPaths: []string{"/data/bad1", "/data/bad2"},
		quarantine:   []string{"/quarantine/q1"},
	}
	s := newTestBackupService(monitor, runs, runner)

	opts := testRunOptions(t)
	report, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != domain.ModePartial {
		t.Errorf("mode = %s, want partial", report.Mode)
	}
	if report.Excludes == nil || report.Excludes.Unique != 3 {
		t.Errorf("excludes = %+v, want 3 unique paths", report.Excludes)
	}
	if runner.lastOpts.ExcludeFile != opts.ExcludeFile {
		t.Errorf("runner exclude file = %q, want %q", runner.lastOpts.ExcludeFile, opts.ExcludeFile)
	}
	if !strings.Contains(runs.created[0].Note, "partial_excludes(flagged=2, quarantined=1, unique=3)") {
		t.Errorf("note = %q", runs.created[0].Note)
	}
}

func TestRunExecFailureIsRecorded(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{err: errors.New("borg: executable file not found")}
	s := newTestBackupService(&mockMonitorRepo{lastScan: freshScan()}, runs, runner)

	_, err := s.Run(context.Background(), testRunOptions(t))
	if err == nil {
		t.Fatal("expected an error when borg cannot start")
	}
	if len(runs.created) != 1 {
		t.Fatalf("created %d run records, want 1", len(runs.created))
	}
	run := runs.created[0]
	if run.Status != domain.StatusFailed || run.ExitCode != -1 {
		t.Errorf("status/rc = %s/%d, want failed/-1", run.Status, run.ExitCode)
	}
	if !strings.Contains(run.Note, "exec:") {
		t.Errorf("note = %q, want exec failure marker", run.Note)
	}
}

func TestRunPreflightFailureProducesNoRecord(t *testing.T) {
	runs := &mockRunRepo{}
	s := newTestBackupService(&mockMonitorRepo{err: errors.New("db down")}, runs, &fakeRunner{})

	report, err := s.Run(context.Background(), testRunOptions(t))
	if err == nil {
		t.Fatal("expected a preflight error")
	}
	if report != nil {
		t.Error("no report without a preflight snapshot")
	}
	if len(runs.created) != 0 {
		t.Errorf("created %d run records, want 0", len(runs.created))
	}
}

func TestRunHardErrorOverridesExitCode(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "Repository /mnt/backup/borg is locked"}}
	s := newTestBackupService(&mockMonitorRepo{lastScan: freshScan()}, runs, runner)

	report, err := s.Run(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed on a locked repository", report.Status)
	}
	if runs.created[0].Note != "hard-error:repo/infrastructure" {
		t.Errorf("note = %q", runs.created[0].Note)
	}
}

func TestExpandArchiveTemplate(t *testing.T) {
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	if got := expandArchiveTemplate("{source}-{now}", "os", now); got != "os-2024-06-01_03-00" {
		t.Errorf("archive = %q", got)
	}
	if got := expandArchiveTemplate("{source}-{now}", "", now); got != "all-2024-06-01_03-00" {
		t.Errorf("archive = %q, want all- prefix for empty source", got)
	}
	if got := expandArchiveTemplate("static-name", "os", now); got != "static-name" {
		t.Errorf("archive = %q, want template without placeholders untouched", got)
	}
}
