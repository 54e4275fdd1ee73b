package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/borg"
)

func testSchedulerConfig(t *testing.T) app.SchedulerConfig {
	return app.SchedulerConfig{
		FreshnessSec: 600,
		CooldownSec:  1800,
		StateFile:    filepath.Join(t.TempDir(), "state.json"),
	}
}

func newTestScheduler(t *testing.T, monitor *mockMonitorRepo, runs *mockRunRepo, runner borg.Runner) *SchedulerService {
	return NewSchedulerService(monitor, newTestBackupService(monitor, runs, runner), testSchedulerConfig(t), nil)
}

func summaryFinishedAgo(d time.Duration) *domain.ScanSummary {
	ts := time.Now().UTC().Add(-d)
	return &domain.ScanSummary{
		ID:         7,
		Source:     "os",
		FinishedAt: &ts,
		ScanPaths:  "/etc,/home",
	}
}

func TestRunIfFreshTriggersAndPersists(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "ok"}}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  summaryFinishedAgo(2 * time.Minute),
	}
	s := newTestScheduler(t, monitor, runs, runner)

	opts := testRunOptions(t)
	opts.Sources = nil // take the paths from the scan summary

	report, err := s.RunIfFresh(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunIfFresh: %v", err)
	}
	if report == nil {
		t.Fatal("expected a run, got a skip")
	}
	if len(runs.created) != 1 {
		t.Fatalf("created %d run records, want 1", len(runs.created))
	}
	if runner.lastOpts == nil || len(runner.lastOpts.Sources) != 2 {
		t.Errorf("runner sources = %+v, want the summary scan paths", runner.lastOpts)
	}

	st := schedulerState{}
	if err := s.state.Load(&st); err != nil {
		t.Fatal(err)
	}
	if st["os"].LastSummaryID != 7 {
		t.Errorf("persisted last_summary_id = %d, want 7", st["os"].LastSummaryID)
	}
	if _, err := time.Parse(stateTimeLayout, st["os"].LastBackupAt); err != nil {
		t.Errorf("last_backup_at %q is not RFC3339: %v", st["os"].LastBackupAt, err)
	}
}

func TestRunIfFreshSkipsWithoutSummary(t *testing.T) {
	runs := &mockRunRepo{}
	s := newTestScheduler(t, &mockMonitorRepo{lastScan: freshScan()}, runs, &fakeRunner{})

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil || len(runs.created) != 0 {
		t.Error("no summary must be a silent skip without a run record")
	}
}

func TestRunIfFreshSkipsStaleSummary(t *testing.T) {
	runs := &mockRunRepo{}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  summaryFinishedAgo(11 * time.Minute), // freshness is 600s
	}
	s := newTestScheduler(t, monitor, runs, &fakeRunner{})

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil || len(runs.created) != 0 {
		t.Error("a stale summary must be skipped")
	}
}

func TestRunIfFreshSkipsUnfinishedSummary(t *testing.T) {
	runs := &mockRunRepo{}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  &domain.ScanSummary{ID: 8, Source: "os", ScanPaths: "/etc"},
	}
	s := newTestScheduler(t, monitor, runs, &fakeRunner{})

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil || len(runs.created) != 0 {
		t.Error("an unfinished summary must be skipped")
	}
}

func TestRunIfFreshSkipsHandledSummary(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "ok"}}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  summaryFinishedAgo(2 * time.Minute),
	}
	s := newTestScheduler(t, monitor, runs, runner)

	if report, err := s.RunIfFresh(context.Background(), testRunOptions(t)); err != nil || report == nil {
		t.Fatalf("first invocation: report=%v err=%v", report, err)
	}

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil {
		t.Error("a summary id that was already handled must not trigger again")
	}
	if runner.calls != 1 {
		t.Errorf("borg invoked %d times, want 1", runner.calls)
	}
}

func TestRunIfFreshHonorsCooldown(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 0, Output: "ok"}}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  summaryFinishedAgo(2 * time.Minute),
	}
	s := newTestScheduler(t, monitor, runs, runner)

	if _, err := s.RunIfFresh(context.Background(), testRunOptions(t)); err != nil {
		t.Fatal(err)
	}

	// a new scan cycle arrives inside the cooldown window
	monitor.summary = summaryFinishedAgo(1 * time.Minute)
	monitor.summary.ID = 8

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil {
		t.Error("a new summary inside the cooldown window must be skipped")
	}
	if runner.calls != 1 {
		t.Errorf("borg invoked %d times, want 1", runner.calls)
	}
}

func TestRunIfFreshSkipsWhenNoPathsAnywhere(t *testing.T) {
	runs := &mockRunRepo{}
	summary := summaryFinishedAgo(2 * time.Minute)
	summary.ScanPaths = ""
	monitor := &mockMonitorRepo{lastScan: freshScan(), summary: summary}
	s := newTestScheduler(t, monitor, runs, &fakeRunner{})

	opts := testRunOptions(t)
	opts.Sources = nil

	report, err := s.RunIfFresh(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if report != nil || len(runs.created) != 0 {
		t.Error("no paths from flags or summary must be a skip")
	}
}

func TestRunIfFreshPersistsEvenOnFailedRun(t *testing.T) {
	runs := &mockRunRepo{}
	runner := &fakeRunner{result: borg.Result{ExitCode: 2, Output: "boom"}}
	monitor := &mockMonitorRepo{
		lastScan: freshScan(),
		summary:  summaryFinishedAgo(2 * time.Minute),
	}
	s := newTestScheduler(t, monitor, runs, runner)

	report, err := s.RunIfFresh(context.Background(), testRunOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	if report == nil || report.Status != domain.StatusFailed {
		t.Fatalf("report = %+v, want a failed run", report)
	}

	st := schedulerState{}
	if err := s.state.Load(&st); err != nil {
		t.Fatal(err)
	}
	if st["os"].LastSummaryID != 7 {
		t.Error("a failed run still uses up the scan cycle")
	}
}
