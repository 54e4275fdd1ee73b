// Package dao implements the repositories against the EntropyWatcher
// database via gorm.
package dao

import (
	"fmt"
	"os"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/app"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/model"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/fileurl"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Dao bundles the database handle shared by the repositories.
type Dao struct {
	Db *gorm.DB
}

// New creates a Dao around an open gorm handle.
func New(db *gorm.DB) *Dao {
	return &Dao{Db: db}
}

// DB returns the underlying gorm handle.
func (d *Dao) DB() *gorm.DB {
	return d.Db
}

// NewDBEngineWithConfig opens the database described by the config.
// Only the backup_runs table is migrated (and only when auto-migrate is
// enabled); the monitoring tables are owned by the watcher.
func NewDBEngineWithConfig(c app.DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {

	db, err := gorm.Open(dialector(c), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Minute * 10)

	if c.AutoMigrate {
		if err := model.AutoMigrate(db, "BackupRun"); err != nil {
			return nil, err
		}
		if lg != nil {
			lg.Info("backup_runs schema migrated")
		}
	}

	return db, nil
}

func dialector(c app.DatabaseConfig) gorm.Dialector {
	if c.Type == "mysql" {
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=UTC",
			c.UserName,
			c.Password,
			c.Host,
			c.Name,
			c.Charset,
			c.ParseTime,
		))
	} else if c.Type == "sqlite" {
		if !fileurl.IsExist(c.Path) {
			_ = fileurl.CreatePath(c.Path, os.ModePerm)
		}
		return sqlite.Open(c.Path)
	}
	return nil
}

// sourceScope restricts a query to one source label when given.
func sourceScope(source string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if source != "" {
			return db.Where("source = ?", source)
		}
		return db
	}
}
