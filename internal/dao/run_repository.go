package dao

import (
	"context"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/model"

	"github.com/pkg/errors"
)

type runRepository struct {
	dao *Dao
}

// NewRunRepository creates the append-only run log repository.
func NewRunRepository(dao *Dao) domain.RunRepository {
	return &runRepository{dao: dao}
}

func (r *runRepository) toModel(d *domain.BackupRun) *model.BackupRun {
	if d == nil {
		return nil
	}
	var source *string
	if d.Source != "" {
		s := d.Source
		source = &s
	}
	var stats *string
	if d.StatsJSON != "" {
		s := d.StatsJSON
		stats = &s
	}
	return &model.BackupRun{
		ID:                  d.ID,
		StartedAt:           d.StartedAt,
		FinishedAt:          d.FinishedAt,
		Source:              source,
		Mode:                string(d.Mode),
		PolicyReason:        d.PolicyReason,
		Repo:                d.Repo,
		Archive:             d.Archive,
		Status:              string(d.Status),
		Rc:                  d.ExitCode,
		FilesAdded:          d.FilesAdded,
		FilesChanged:        d.FilesChanged,
		FilesTotal:          d.FilesTotal,
		SizeOriginalBytes:   d.SizeOriginalBytes,
		SizeCompressedBytes: d.SizeCompressedBytes,
		SizeDedupBytes:      d.SizeDedupBytes,
		DurationSeconds:     d.DurationSeconds,
		StatsJSON:           stats,
		Note:                d.Note,
	}
}

func (r *runRepository) toDomain(m *model.BackupRun) *domain.BackupRun {
	if m == nil {
		return nil
	}
	var source string
	if m.Source != nil {
		source = *m.Source
	}
	var stats string
	if m.StatsJSON != nil {
		stats = *m.StatsJSON
	}
	return &domain.BackupRun{
		ID:                  m.ID,
		StartedAt:           m.StartedAt,
		FinishedAt:          m.FinishedAt,
		Source:              source,
		Mode:                domain.Mode(m.Mode),
		PolicyReason:        m.PolicyReason,
		Repo:                m.Repo,
		Archive:             m.Archive,
		Status:              domain.RunStatus(m.Status),
		ExitCode:            m.Rc,
		FilesAdded:          m.FilesAdded,
		FilesChanged:        m.FilesChanged,
		FilesTotal:          m.FilesTotal,
		SizeOriginalBytes:   m.SizeOriginalBytes,
		SizeCompressedBytes: m.SizeCompressedBytes,
		SizeDedupBytes:      m.SizeDedupBytes,
		DurationSeconds:     m.DurationSeconds,
		StatsJSON:           stats,
		Note:                m.Note,
	}
}

func (r *runRepository) Create(ctx context.Context, run *domain.BackupRun) (*domain.BackupRun, error) {
	m := r.toModel(run)
	if err := r.dao.Db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, errors.Wrap(err, "insert backup run")
	}
	return r.toDomain(m), nil
}

func (r *runRepository) ListRecent(ctx context.Context, source string, limit int) ([]*domain.BackupRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []model.BackupRun
	err := r.dao.Db.WithContext(ctx).Model(&model.BackupRun{}).
		Scopes(sourceScope(source)).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list backup runs")
	}
	out := make([]*domain.BackupRun, 0, len(rows))
	for i := range rows {
		out = append(out, r.toDomain(&rows[i]))
	}
	return out, nil
}
