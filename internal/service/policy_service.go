// Package service implements the decision-and-classification engine:
// preflight evaluation, the full/partial/abort policy, exclude set
// construction, run orchestration and the freshness/cooldown gate.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// avEventWindow is the trailing window for antivirus event counting.
const avEventWindow = 24 * time.Hour

// PolicyService evaluates the security posture of a source and derives
// the backup mode from it.
type PolicyService struct {
	monitor domain.MonitorRepository
	cfg     app.PolicyConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(monitor domain.MonitorRepository, cfg app.PolicyConfig, lg *zap.Logger) *PolicyService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &PolicyService{
		monitor: monitor,
		cfg:     cfg,
		logger:  lg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads the current posture counters for a source and returns an
// immutable snapshot. Read-only; a store error is fatal for the run since
// the policy cannot act without ground truth.
func (s *PolicyService) Evaluate(ctx context.Context, source string) (*domain.PreflightSnapshot, error) {
	now := s.now()

	flagged, err := s.monitor.CountFlagged(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, "preflight: flagged count")
	}
	missing, err := s.monitor.CountMissing(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, "preflight: missing count")
	}
	av24h, err := s.monitor.CountAvEventsSince(ctx, source, now.Add(-avEventWindow))
	if err != nil {
		return nil, errors.Wrap(err, "preflight: av event count")
	}
	lastScan, err := s.monitor.LastScanTime(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, "preflight: last scan time")
	}

	pf := &domain.PreflightSnapshot{
		Source:       source,
		Flagged:      flagged,
		Missing:      missing,
		Av24h:        av24h,
		LastScanTime: lastScan,
		ScanTooOld:   lastScan == nil || now.Sub(*lastScan) > s.cfg.MaxAge(),
		MaxAgeMin:    s.cfg.MaxAgeMin,
	}

	s.logger.Info("preflight evaluated",
		zap.String("source", source),
		zap.Int64("flagged", pf.Flagged),
		zap.Int64("missing", pf.Missing),
		zap.Int64("av24h", pf.Av24h),
		zap.Bool("scanTooOld", pf.ScanTooOld))

	return pf, nil
}

// Decide derives the backup mode from a snapshot. Pure function.
//
// A forced request is honoured verbatim, even when abort-level signals are
// present; the reason string then lists the overridden conditions. This is
// a documented operator escape hatch, not a defect.
//
// The automatic policy applies the first matching rule: hard abort
// thresholds (flagged, then av events), then partial on any flagged/AV
// signal, then partial on a stale scan, then partial on missing files if
// enabled, else full.
func Decide(pf *domain.PreflightSnapshot, req domain.DecisionRequest, cfg app.PolicyConfig) domain.Decision {
	if mode, ok := req.Forced(); ok {
		return domain.Decision{
			Mode:   mode,
			Reason: domain.ForcedReason(pf.RiskConditions()),
		}
	}

	if pf.Flagged >= cfg.AbortFlaggedThreshold {
		return domain.Decision{
			Mode:   domain.ModeAbort,
			Reason: fmt.Sprintf("critical:flagged>=%d (%d)", cfg.AbortFlaggedThreshold, pf.Flagged),
		}
	}
	if pf.Av24h >= cfg.AbortAv24hThreshold {
		return domain.Decision{
			Mode:   domain.ModeAbort,
			Reason: fmt.Sprintf("critical:av_24h>=%d (%d)", cfg.AbortAv24hThreshold, pf.Av24h),
		}
	}

	if pf.Flagged > 0 || pf.Av24h > 0 {
		var reasons []string
		if pf.Flagged > 0 {
			reasons = append(reasons, fmt.Sprintf("flagged=%d", pf.Flagged))
		}
		if pf.Av24h > 0 {
			reasons = append(reasons, fmt.Sprintf("av_24h=%d", pf.Av24h))
		}
		return domain.Decision{
			Mode:   domain.ModePartial,
			Reason: "alerts:" + strings.Join(reasons, ","),
		}
	}

	if pf.ScanTooOld {
		return domain.Decision{
			Mode:   domain.ModePartial,
			Reason: fmt.Sprintf("stale-scan:max%dm", pf.MaxAgeMin),
		}
	}

	if cfg.PartialOnMissing && pf.Missing > 0 {
		return domain.Decision{
			Mode:   domain.ModePartial,
			Reason: fmt.Sprintf("missing=%d", pf.Missing),
		}
	}

	return domain.Decision{Mode: domain.ModeFull, Reason: "ok"}
}
