package model

import "time"

// BackupRun is the append-only run log, one row per backup attempt
// including aborted ones. Counter and size columns are nullable so that
// "unparsed" stays distinguishable from a genuine zero.
type BackupRun struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StartedAt    time.Time  `gorm:"column:started_at;not null;index:idx_source_started,priority:2" json:"startedAt"`
	FinishedAt   *time.Time `gorm:"column:finished_at;index:idx_status_finished,priority:2" json:"finishedAt"`
	Source       *string    `gorm:"column:source;type:varchar(32);index:idx_source_started,priority:1" json:"source"`
	Mode         string     `gorm:"column:mode;type:varchar(16);not null" json:"mode"`
	PolicyReason string     `gorm:"column:policy_reason;type:text" json:"policyReason"`
	Repo         string     `gorm:"column:repo;type:text" json:"repo"`
	Archive      string     `gorm:"column:archive;type:text" json:"archive"`
	Status       string     `gorm:"column:status;type:varchar(16);not null;index:idx_status_finished,priority:1" json:"status"`
	Rc           int        `gorm:"column:rc;not null" json:"rc"`

	FilesAdded          *int64 `gorm:"column:files_added" json:"filesAdded"`
	FilesChanged        *int64 `gorm:"column:files_changed" json:"filesChanged"`
	FilesTotal          *int64 `gorm:"column:files_total" json:"filesTotal"`
	SizeOriginalBytes   *int64 `gorm:"column:size_original_bytes" json:"sizeOriginalBytes"`
	SizeCompressedBytes *int64 `gorm:"column:size_compressed_bytes" json:"sizeCompressedBytes"`
	SizeDedupBytes      *int64 `gorm:"column:size_dedup_bytes" json:"sizeDedupBytes"`
	DurationSeconds     *int64 `gorm:"column:duration_seconds" json:"durationSeconds"`

	StatsJSON *string `gorm:"column:stats_json;type:text" json:"statsJson"`
	Note      string  `gorm:"column:note;type:text" json:"note"`
}

// TableName returns the table name
func (*BackupRun) TableName() string {
	return "backup_runs"
}
