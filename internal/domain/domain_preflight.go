// Package domain defines the domain model and repository interfaces.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the shape of a backup run as dictated by security posture.
type Mode string

const (
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
	ModeAbort   Mode = "abort"
)

// ParseMode maps the CLI decide value to a decision request.
// "auto" yields an automatic request, anything else must be a valid mode.
func ParseMode(s string) (DecisionRequest, error) {
	switch s {
	case "", "auto":
		return AutoDecision(), nil
	case string(ModeFull), string(ModePartial), string(ModeAbort):
		return ForcedDecision(Mode(s)), nil
	}
	return DecisionRequest{}, fmt.Errorf("invalid decide value %q (auto|full|partial|abort)", s)
}

// PreflightSnapshot is an immutable view of the security posture for one
// source at evaluation time. Counts default to zero on empty result sets.
type PreflightSnapshot struct {
	Source       string     `json:"source,omitempty"`
	Flagged      int64      `json:"flagged"`
	Missing      int64      `json:"missing"`
	Av24h        int64      `json:"av_24h"`
	LastScanTime *time.Time `json:"last_time,omitempty"`
	ScanTooOld   bool       `json:"scan_too_old"`
	MaxAgeMin    int        `json:"max_age_min"`
}

// RiskConditions lists the nonzero risk signals in the snapshot.
// Used to annotate forced-mode reasons.
func (pf *PreflightSnapshot) RiskConditions() []string {
	var rs []string
	if pf.Flagged > 0 {
		rs = append(rs, fmt.Sprintf("flagged=%d", pf.Flagged))
	}
	if pf.Av24h > 0 {
		rs = append(rs, fmt.Sprintf("av_24h=%d", pf.Av24h))
	}
	if pf.ScanTooOld {
		rs = append(rs, fmt.Sprintf("scan_too_old(max %dm)", pf.MaxAgeMin))
	}
	if pf.Missing > 0 {
		rs = append(rs, fmt.Sprintf("missing=%d", pf.Missing))
	}
	return rs
}

// DecisionRequest selects between the automatic policy and an explicit
// operator override. The two paths are independent policies; keeping the
// tag explicit avoids a stringly-typed "auto" sentinel.
type DecisionRequest struct {
	forced bool
	mode   Mode
}

// AutoDecision requests the automatic full/partial/abort policy.
func AutoDecision() DecisionRequest {
	return DecisionRequest{}
}

// ForcedDecision requests an explicit mode regardless of posture.
// This is a deliberate operator escape hatch: a forced full or partial run
// proceeds even when abort-level signals are present, and the reason string
// only annotates the conditions that were overridden.
func ForcedDecision(m Mode) DecisionRequest {
	return DecisionRequest{forced: true, mode: m}
}

// Forced reports whether an explicit mode was requested, and which.
func (r DecisionRequest) Forced() (Mode, bool) {
	return r.mode, r.forced
}

// String returns the CLI spelling of the request.
func (r DecisionRequest) String() string {
	if r.forced {
		return string(r.mode)
	}
	return "auto"
}

// Decision is the policy outcome for one snapshot.
type Decision struct {
	Mode   Mode   `json:"mode"`
	Reason string `json:"reason"`
}

// ForcedReason builds the reason string for a forced decision.
func ForcedReason(conditions []string) string {
	if len(conditions) == 0 {
		return "forced:ok"
	}
	return "forced:" + strings.Join(conditions, ",")
}
