package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/internal/domain"
	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/pkg/fileurl"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExcludeService builds the exclude set for partial runs: the union of
// currently flagged paths and quarantine relocation paths.
type ExcludeService struct {
	monitor domain.MonitorRepository
	logger  *zap.Logger
}

// NewExcludeService creates an ExcludeService.
func NewExcludeService(monitor domain.MonitorRepository, lg *zap.Logger) *ExcludeService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ExcludeService{monitor: monitor, logger: lg}
}

// BuildExcludeFile regenerates the exclude file at outPath: flagged paths
// first, then quarantine paths, each block normalized and deduplicated.
// The file is fully rewritten on every call since the underlying state
// changes between runs. A write failure is fatal for the run: a partial
// backup must not proceed without guaranteed exclusions.
func (s *ExcludeService) BuildExcludeFile(ctx context.Context, source, outPath string) (domain.ExcludeCounts, error) {
	var counts domain.ExcludeCounts

	flagged, err := s.monitor.FlaggedPaths(ctx, source)
	if err != nil {
		return counts, errors.Wrap(err, "exclude: flagged paths")
	}
	quarantined, err := s.monitor.QuarantinePaths(ctx, source)
	if err != nil {
		return counts, errors.Wrap(err, "exclude: quarantine paths")
	}

	flagged = normalizePaths(flagged)
	quarantined = normalizePaths(quarantined)
	merged := normalizePaths(append(append([]string{}, flagged...), quarantined...))

	counts = domain.ExcludeCounts{
		Flagged:     len(flagged),
		Quarantined: len(quarantined),
		Unique:      len(merged),
	}

	if err := fileurl.CreatePath(outPath, os.ModePerm); err != nil {
		return counts, errors.Wrap(err, "exclude: create directory")
	}

	var b strings.Builder
	for _, p := range merged {
		b.WriteString(p)
		b.WriteString("\n")
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return counts, errors.Wrap(err, "exclude: write file")
	}

	s.logger.Info("exclude file written",
		zap.String("source", source),
		zap.String("path", outPath),
		zap.Int("flagged", counts.Flagged),
		zap.Int("quarantined", counts.Quarantined),
		zap.Int("unique", counts.Unique))

	return counts, nil
}

// normalizePaths cleans each path, drops empties and deduplicates while
// preserving first-seen order.
func normalizePaths(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := filepath.Clean(s)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
