package domain

import (
	"context"
	"time"
)

// MonitorRepository reads the EntropyWatcher monitoring store.
// All methods are read-only; an empty source means "all sources".
type MonitorRepository interface {
	// CountFlagged counts files currently flagged as suspicious
	CountFlagged(ctx context.Context, source string) (int64, error)

	// CountMissing counts files with a missing-since marker
	CountMissing(ctx context.Context, source string) (int64, error)

	// CountAvEventsSince counts antivirus events detected at or after since
	CountAvEventsSince(ctx context.Context, source string, since time.Time) (int64, error)

	// LastScanTime returns the most recent per-file scan timestamp, nil if none
	LastScanTime(ctx context.Context, source string) (*time.Time, error)

	// FlaggedPaths returns the paths of currently flagged files
	FlaggedPaths(ctx context.Context, source string) ([]string, error)

	// QuarantinePaths returns relocation paths of quarantine AV events
	QuarantinePaths(ctx context.Context, source string) ([]string, error)

	// LastScanSummary returns the latest scan summary, nil if none exists
	LastScanSummary(ctx context.Context, source string) (*ScanSummary, error)
}

// RunRepository is the durable, append-only backup run log.
type RunRepository interface {
	// Create appends one run record
	Create(ctx context.Context, run *BackupRun) (*BackupRun, error)

	// ListRecent returns the most recent runs, newest first
	ListRecent(ctx context.Context, source string, limit int) ([]*BackupRun, error)
}
