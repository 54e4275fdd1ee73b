package domain

import (
	"fmt"
	"time"
)

// RunStatus is the execution outcome of one backup attempt, independent of
// the policy mode: Mode says why the run was shaped that way, RunStatus
// says whether the tool itself succeeded.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusWarning RunStatus = "warning"
	StatusFailed  RunStatus = "failed"
	StatusAborted RunStatus = "aborted"
)

// BackupRun is one row of the append-only run log. Every policy outcome
// other than a scheduler-level skip produces exactly one BackupRun,
// aborted attempts included.
type BackupRun struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Source       string     `json:"source,omitempty"`
	Mode         Mode       `json:"mode"`
	PolicyReason string     `json:"policyReason"`
	Repo         string     `json:"repo,omitempty"`
	Archive      string     `json:"archive,omitempty"`
	Status       RunStatus  `json:"status"`
	ExitCode     int        `json:"rc"`

	// Parsed borg counters; nil means unparsed, which is distinct from zero.
	FilesAdded          *int64 `json:"filesAdded,omitempty"`
	FilesChanged        *int64 `json:"filesChanged,omitempty"`
	FilesTotal          *int64 `json:"filesTotal,omitempty"`
	SizeOriginalBytes   *int64 `json:"sizeOriginalBytes,omitempty"`
	SizeCompressedBytes *int64 `json:"sizeCompressedBytes,omitempty"`
	SizeDedupBytes      *int64 `json:"sizeDedupBytes,omitempty"`
	DurationSeconds     *int64 `json:"durationSeconds,omitempty"`

	// StatsJSON full parsed-stats structure for audit.
	StatsJSON string `json:"-"`
	Note      string `json:"note,omitempty"`
}

// ScanSummary is the monitoring subsystem's record of one completed scan
// cycle over a path set. Read-only here.
type ScanSummary struct {
	ID         int64
	Source     string
	FinishedAt *time.Time
	ScanPaths  string // comma-separated path set the scan covered
}

// ExcludeCounts reports the composition of a generated exclude set.
type ExcludeCounts struct {
	Flagged     int `json:"flagged"`
	Quarantined int `json:"quarantined"`
	Unique      int `json:"unique"`
}

// Note renders the counts for the run record note.
func (c ExcludeCounts) Note() string {
	return fmt.Sprintf("partial_excludes(flagged=%d, quarantined=%d, unique=%d)",
		c.Flagged, c.Quarantined, c.Unique)
}
