package model

import "time"

// File is one monitored file in the watcher's inventory. Read-only here:
// the watcher maintains flagged / missing_since / last_time.
type File struct {
	ID           int64      `gorm:"column:id;primaryKey" json:"id"`
	Source       string     `gorm:"column:source" json:"source"`
	Path         string     `gorm:"column:path" json:"path"`
	Flagged      int64      `gorm:"column:flagged" json:"flagged"`
	MissingSince *time.Time `gorm:"column:missing_since" json:"missingSince"`
	LastTime     *time.Time `gorm:"column:last_time" json:"lastTime"`
}

// TableName returns the table name
func (*File) TableName() string {
	return "files"
}

// AvEvent is one antivirus detection event. A quarantine action records
// the relocation path of the detected file.
type AvEvent struct {
	ID             int64     `gorm:"column:id;primaryKey" json:"id"`
	Source         string    `gorm:"column:source" json:"source"`
	DetectedAt     time.Time `gorm:"column:detected_at" json:"detectedAt"`
	Action         string    `gorm:"column:action" json:"action"`
	QuarantinePath *string   `gorm:"column:quarantine_path" json:"quarantinePath"`
}

// TableName returns the table name
func (*AvEvent) TableName() string {
	return "av_events"
}

// AvActionQuarantine is the av_events action value for quarantined files.
const AvActionQuarantine = "quarantine"

// ScanSummary marks completion of one scan cycle over a path set.
type ScanSummary struct {
	ID         int64      `gorm:"column:id;primaryKey" json:"id"`
	Source     string     `gorm:"column:source" json:"source"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finishedAt"`
	ScanPaths  string     `gorm:"column:scan_paths" json:"scanPaths"`
}

// TableName returns the table name
func (*ScanSummary) TableName() string {
	return "scan_summary"
}
