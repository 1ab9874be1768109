// Package retention bounds how many versions a transcription keeps and how
// many files a live session trail keeps.
//
// Records are removed first and files second. A record whose file is already
// gone is tolerated; a file whose record was never written cannot arise,
// because version records are only inserted after their file is durable.
package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/metrics"
	"quill/internal/services"
	"quill/internal/store"
)

// RecordPruner deletes every version record of a transcription except the
// keep highest version numbers and returns what it removed.
type RecordPruner interface {
	DeleteBackupsBeyond(ctx context.Context, transcriptionID string, keep int) ([]*store.Backup, error)
}

// Result reports one prune pass.
type Result struct {
	Removed      []*store.Backup
	DeletedPaths []string
	MissingFiles int
}

// Manager applies retention policies.
type Manager struct {
	records RecordPruner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Manager. A nil records disables Prune; PruneTrail works
// without it.
func New(records RecordPruner, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{
		records: records,
		logger:  logging.NewComponentLogger(logger, "retention"),
		metrics: m,
	}
}

// Prune keeps the keep most recent versions of a transcription. The excess
// records go in one statement; their files are then removed best-effort.
func (m *Manager) Prune(ctx context.Context, transcriptionID string, keep int) (Result, error) {
	if keep < 0 {
		return Result{}, services.Wrap(services.ErrValidation, "retention", "prune",
			fmt.Sprintf("keep count must not be negative, got %d", keep), nil)
	}
	if m.records == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "retention", "prune", "no record store configured", nil)
	}
	removed, err := m.records.DeleteBackupsBeyond(ctx, transcriptionID, keep)
	if err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "retention", "prune", "delete version records", err)
	}
	result := Result{Removed: removed}
	if len(removed) == 0 {
		return result, nil
	}

	paths := make([]string, 0, len(removed))
	for _, b := range removed {
		paths = append(paths, b.FilePath)
	}
	result.DeletedPaths, result.MissingFiles = m.RemoveFiles(paths)
	m.metrics.BackupsPruned.Add(float64(len(removed)))

	m.logger.Info("versions pruned",
		logging.String(logging.FieldEventType, "versions_pruned"),
		logging.String(logging.FieldTranscriptionID, transcriptionID),
		logging.Int("keep", keep),
		logging.Int("removed", len(removed)),
		logging.Int("missing_files", result.MissingFiles),
	)
	return result, nil
}

// RemoveFiles deletes each path and returns the ones actually removed plus
// the number that were missing or could not be removed. Failures are logged
// and skipped.
func (m *Manager) RemoveFiles(paths []string) ([]string, int) {
	deleted := make([]string, 0, len(paths))
	missing := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		err := os.Remove(path)
		switch {
		case err == nil:
			deleted = append(deleted, path)
		case errors.Is(err, fs.ErrNotExist):
			missing++
			m.metrics.PruneFileMisses.Inc()
			m.logger.Debug("pruned version file already absent",
				logging.String(logging.FieldEventType, "prune_file_missing"),
				logging.String("path", path),
			)
		default:
			missing++
			m.metrics.PruneFileMisses.Inc()
			logging.WarnWithContext(m.logger, "pruned version file not removed", "prune_file_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the backup directory"),
				logging.String(logging.FieldImpact, "an unreferenced version file remains on disk"),
			)
		}
	}
	return deleted, missing
}

// TrailEntry is one well-formed file of a capped backup trail.
type TrailEntry struct {
	Name string
	layout.BackupName
}

// ScanTrail lists the well-formed backup files in dir, oldest first. Files
// are ordered by timestamp and then version number. A missing directory
// yields an empty trail.
func ScanTrail(dir string) ([]TrailEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	trail := make([]TrailEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parsed, ok := layout.ParseBackupFileName(entry.Name())
		if !ok {
			continue
		}
		trail = append(trail, TrailEntry{Name: entry.Name(), BackupName: parsed})
	}
	sort.Slice(trail, func(i, j int) bool {
		if trail[i].Stamp != trail[j].Stamp {
			return trail[i].Stamp < trail[j].Stamp
		}
		return trail[i].Version < trail[j].Version
	})
	return trail, nil
}

// PruneTrail removes the oldest trail files in dir beyond limit and returns
// the removed names. Files that do not look like trail files are left alone.
func (m *Manager) PruneTrail(dir string, limit int) ([]string, error) {
	if limit < 0 {
		return nil, services.Wrap(services.ErrValidation, "retention", "prune trail",
			fmt.Sprintf("trail cap must not be negative, got %d", limit), nil)
	}
	trail, err := ScanTrail(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "retention", "prune trail", "scan trail directory", err)
	}
	excess := len(trail) - limit
	if excess <= 0 {
		return nil, nil
	}

	paths := make([]string, 0, excess)
	for _, entry := range trail[:excess] {
		paths = append(paths, filepath.Join(dir, entry.Name))
	}
	deleted, _ := m.RemoveFiles(paths)
	names := make([]string, 0, len(deleted))
	for _, path := range deleted {
		names = append(names, filepath.Base(path))
	}
	m.metrics.SessionTrailPruned.Add(float64(len(names)))
	if len(names) > 0 {
		m.logger.Debug("trail pruned",
			logging.String(logging.FieldEventType, "trail_pruned"),
			logging.String("dir", dir),
			logging.Int("removed", len(names)),
		)
	}
	return names, nil
}
