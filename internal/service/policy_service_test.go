package service

import (
	"context"
	"testing"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
)

// --- Mocks ---

type mockMonitorRepo struct {
	domain.MonitorRepository
	flagged      int64
	missing      int64
	av24h        int64
	lastScan     *time.Time
	flaggedPaths []string
	quarantine   []string
	summary      *domain.ScanSummary
	err          error
}

func (m *mockMonitorRepo) CountFlagged(ctx context.Context, source string) (int64, error) {
	return m.flagged, m.err
}

func (m *mockMonitorRepo) CountMissing(ctx context.Context, source string) (int64, error) {
	return m.missing, m.err
}

func (m *mockMonitorRepo) CountAvEventsSince(ctx context.Context, source string, since time.Time) (int64, error) {
	return m.av24h, m.err
}

func (m *mockMonitorRepo) LastScanTime(ctx context.Context, source string) (*time.Time, error) {
	return m.lastScan, m.err
}

func (m *mockMonitorRepo) FlaggedPaths(ctx context.Context, source string) ([]string, error) {
	return m.flaggedPaths, m.err
}

func (m *mockMonitorRepo) QuarantinePaths(ctx context.Context, source string) ([]string, error) {
	return m.quarantine, m.err
}

func (m *mockMonitorRepo) LastScanSummary(ctx context.Context, source string) (*domain.ScanSummary, error) {
	return m.summary, m.err
}

func testPolicyConfig() app.PolicyConfig {
	return app.PolicyConfig{
		AbortFlaggedThreshold: 5,
		AbortAv24hThreshold:   5,
		PartialOnMissing:      true,
		MaxAgeMin:             30,
	}
}

// --- Tests ---

func TestDecideRules(t *testing.T) {
	cfg := testPolicyConfig()

	tests := []struct {
		name   string
		pf     domain.PreflightSnapshot
		mode   domain.Mode
		reason string
	}{
		{"clean", domain.PreflightSnapshot{MaxAgeMin: 30}, domain.ModeFull, "ok"},
		{"flagged at threshold aborts", domain.PreflightSnapshot{Flagged: 5}, domain.ModeAbort, "critical:flagged>=5 (5)"},
		{"flagged above threshold aborts", domain.PreflightSnapshot{Flagged: 12}, domain.ModeAbort, "critical:flagged>=5 (12)"},
		{"av events at threshold abort", domain.PreflightSnapshot{Av24h: 5}, domain.ModeAbort, "critical:av_24h>=5 (5)"},
		{"flagged below threshold is partial", domain.PreflightSnapshot{Flagged: 4}, domain.ModePartial, "alerts:flagged=4"},
		{"av below threshold is partial", domain.PreflightSnapshot{Av24h: 1}, domain.ModePartial, "alerts:av_24h=1"},
		{"both alert signals listed", domain.PreflightSnapshot{Flagged: 2, Av24h: 3}, domain.ModePartial, "alerts:flagged=2,av_24h=3"},
		{"flagged abort beats av abort", domain.PreflightSnapshot{Flagged: 9, Av24h: 9}, domain.ModeAbort, "critical:flagged>=5 (9)"},
		{"stale scan is partial", domain.PreflightSnapshot{ScanTooOld: true, MaxAgeMin: 30}, domain.ModePartial, "stale-scan:max30m"},
		{"alerts beat staleness", domain.PreflightSnapshot{Flagged: 1, ScanTooOld: true, MaxAgeMin: 30}, domain.ModePartial, "alerts:flagged=1"},
		{"missing files are partial", domain.PreflightSnapshot{Missing: 2}, domain.ModePartial, "missing=2"},
		{"staleness beats missing", domain.PreflightSnapshot{Missing: 2, ScanTooOld: true, MaxAgeMin: 30}, domain.ModePartial, "stale-scan:max30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(&tt.pf, domain.AutoDecision(), cfg)
			if d.Mode != tt.mode {
				t.Errorf("mode = %s, want %s", d.Mode, tt.mode)
			}
			if d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestDecideMissingDisabled(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.PartialOnMissing = false

	d := Decide(&domain.PreflightSnapshot{Missing: 3}, domain.AutoDecision(), cfg)
	if d.Mode != domain.ModeFull {
		t.Errorf("mode = %s, want full when partial-on-missing is off", d.Mode)
	}
	if d.Reason != "ok" {
		t.Errorf("reason = %q, want ok", d.Reason)
	}
}

func TestDecideForcedOverridesAbortSignals(t *testing.T) {
	cfg := testPolicyConfig()

	d := Decide(&domain.PreflightSnapshot{Flagged: 20, Av24h: 7}, domain.ForcedDecision(domain.ModeFull), cfg)
	if d.Mode != domain.ModeFull {
		t.Errorf("mode = %s, want forced full", d.Mode)
	}
	if d.Reason != "forced:flagged=20,av_24h=7" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDecideForcedCleanPosture(t *testing.T) {
	d := Decide(&domain.PreflightSnapshot{}, domain.ForcedDecision(domain.ModePartial), testPolicyConfig())
	if d.Mode != domain.ModePartial {
		t.Errorf("mode = %s, want partial", d.Mode)
	}
	if d.Reason != "forced:ok" {
		t.Errorf("reason = %q, want forced:ok", d.Reason)
	}
}

func TestEvaluateSnapshot(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)

	s := NewPolicyService(&mockMonitorRepo{
		flagged:  2,
		missing:  1,
		av24h:    3,
		lastScan: &recent,
	}, testPolicyConfig(), nil)
	s.now = func() time.Time { return now }

	pf, err := s.Evaluate(context.Background(), "os")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if pf.Flagged != 2 || pf.Missing != 1 || pf.Av24h != 3 {
		t.Errorf("counters = %+v", pf)
	}
	if pf.ScanTooOld {
		t.Error("a 10 minute old scan must not be stale at max-age 30m")
	}
}

func TestEvaluateStaleAndMissingScan(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-31 * time.Minute)

	s := NewPolicyService(&mockMonitorRepo{lastScan: &old}, testPolicyConfig(), nil)
	s.now = func() time.Time { return now }

	pf, err := s.Evaluate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !pf.ScanTooOld {
		t.Error("scan 31m old must be stale at max-age 30m")
	}

	s = NewPolicyService(&mockMonitorRepo{}, testPolicyConfig(), nil)
	s.now = func() time.Time { return now }

	pf, err = s.Evaluate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !pf.ScanTooOld {
		t.Error("no scan at all must count as stale")
	}
}
