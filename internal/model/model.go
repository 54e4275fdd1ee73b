// Package model defines the database models.
package model

import (
	"gorm.io/gorm"
)

// AutoMigrate migrates the table this tool owns. The monitoring tables
// (files, av_events, scan_summary) belong to the watcher and are never
// migrated from here.
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {

	case "BackupRun":
		return db.AutoMigrate(BackupRun{})
	}
	return nil
}
