package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/model"

	"github.com/pkg/errors"
)

type monitorRepository struct {
	dao *Dao
}

// NewMonitorRepository creates the read-only view onto the watcher tables.
func NewMonitorRepository(dao *Dao) domain.MonitorRepository {
	return &monitorRepository{dao: dao}
}

func (r *monitorRepository) CountFlagged(ctx context.Context, source string) (int64, error) {
	var n int64
	err := r.dao.Db.WithContext(ctx).Model(&model.File{}).
		Scopes(sourceScope(source)).
		Where("flagged = ?", 1).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "count flagged files")
	}
	return n, nil
}

func (r *monitorRepository) CountMissing(ctx context.Context, source string) (int64, error) {
	var n int64
	err := r.dao.Db.WithContext(ctx).Model(&model.File{}).
		Scopes(sourceScope(source)).
		Where("missing_since IS NOT NULL").
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "count missing files")
	}
	return n, nil
}

func (r *monitorRepository) CountAvEventsSince(ctx context.Context, source string, since time.Time) (int64, error) {
	var n int64
	err := r.dao.Db.WithContext(ctx).Model(&model.AvEvent{}).
		Scopes(sourceScope(source)).
		Where("detected_at >= ?", since).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "count av events")
	}
	return n, nil
}

func (r *monitorRepository) LastScanTime(ctx context.Context, source string) (*time.Time, error) {
	// MAX over a nullable column yields NULL for no rows; NullTime absorbs it.
	var last sql.NullTime
	err := r.dao.Db.WithContext(ctx).Model(&model.File{}).
		Scopes(sourceScope(source)).
		Select("MAX(last_time)").
		Scan(&last).Error
	if err != nil {
		return nil, errors.Wrap(err, "query last scan time")
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (r *monitorRepository) FlaggedPaths(ctx context.Context, source string) ([]string, error) {
	var paths []string
	err := r.dao.Db.WithContext(ctx).Model(&model.File{}).
		Scopes(sourceScope(source)).
		Where("flagged = ?", 1).
		Order("path").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, errors.Wrap(err, "query flagged paths")
	}
	return paths, nil
}

func (r *monitorRepository) QuarantinePaths(ctx context.Context, source string) ([]string, error) {
	var paths []string
	err := r.dao.Db.WithContext(ctx).Model(&model.AvEvent{}).
		Scopes(sourceScope(source)).
		Where("action = ?", model.AvActionQuarantine).
		Where("quarantine_path IS NOT NULL").
		Order("quarantine_path").
		Pluck("quarantine_path", &paths).Error
	if err != nil {
		return nil, errors.Wrap(err, "query quarantine paths")
	}
	return paths, nil
}

func (r *monitorRepository) LastScanSummary(ctx context.Context, source string) (*domain.ScanSummary, error) {
	var rows []model.ScanSummary
	err := r.dao.Db.WithContext(ctx).Model(&model.ScanSummary{}).
		Scopes(sourceScope(source)).
		Order("finished_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query last scan summary")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	m := rows[0]
	return &domain.ScanSummary{
		ID:         m.ID,
		Source:     m.Source,
		FinishedAt: m.FinishedAt,
		ScanPaths:  m.ScanPaths,
	}, nil
}
