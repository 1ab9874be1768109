package sessions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"quill/internal/fileutil"
	"quill/internal/layout"
	"quill/internal/logging"
	"quill/internal/retention"
	"quill/internal/services"
	"quill/internal/transcript"
)

// TrailFile is one autosave backup of a slot.
type TrailFile struct {
	Name    string
	Version int
	Created time.Time
	Size    int64
	Counts  transcript.Counts
}

func (s *Service) trailDir(mediaID string, slot int) string {
	return filepath.Join(s.layout.SessionDir(mediaID, slot), layout.SessionBackupsDir)
}

// Backup appends snap to the slot's trail as the next trail number and
// prunes the trail to the configured cap.
func (s *Service) Backup(ctx context.Context, mediaID string, slot int, snap transcript.Snapshot) (TrailFile, error) {
	if err := checkSlot("backup", mediaID, slot); err != nil {
		return TrailFile{}, err
	}
	if err := transcript.Validate(snap); err != nil {
		return TrailFile{}, services.Wrap(services.ErrValidation, component, "backup", "invalid snapshot", err)
	}
	dir := s.trailDir(mediaID, slot)

	var file TrailFile
	err := s.locks.With(ctx, lockKey(mediaID, slot), func() error {
		trail, err := retention.ScanTrail(dir)
		if err != nil {
			return services.Wrap(services.ErrStorage, component, "backup", "scan trail", err)
		}
		next := 1
		for _, entry := range trail {
			next = max(next, entry.Version+1)
		}

		now := s.now().UTC()
		doc := document(mediaID, slot, next, now, snap)
		text := transcript.Render(doc)
		name := layout.BackupFileName(next, now)
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			return services.Wrap(services.ErrStorage, component, "backup", "write trail file", err)
		}
		file = TrailFile{Name: name, Version: next, Created: now, Size: int64(len(text)), Counts: doc.Counts}

		if _, err := s.retention.PruneTrail(dir, s.opts.BackupCap); err != nil {
			logging.WarnWithContext(s.logger, "session trail not pruned", "session_trail_prune_failed",
				logging.String(logging.FieldMediaID, mediaID),
				logging.Int(logging.FieldSlot, slot),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the next backup retries pruning"),
				logging.String(logging.FieldImpact, "trail temporarily exceeds its cap"),
			)
		}
		return nil
	})
	if err != nil {
		return TrailFile{}, err
	}
	s.metrics.SessionBackups.Inc()
	s.logger.Info("session backup created",
		logging.String(logging.FieldEventType, "session_backup_created"),
		logging.String(logging.FieldMediaID, mediaID),
		logging.Int(logging.FieldSlot, slot),
		logging.Int(logging.FieldVersion, file.Version),
	)
	return file, nil
}

// History lists the slot's trail newest first with counts read from each
// file.
func (s *Service) History(ctx context.Context, mediaID string, slot int) ([]TrailFile, error) {
	if err := checkSlot("history", mediaID, slot); err != nil {
		return nil, err
	}
	dir := s.trailDir(mediaID, slot)
	trail, err := retention.ScanTrail(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "history", "scan trail", err)
	}

	files := make([]TrailFile, len(trail))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.HistoryWorkers)
	for i, entry := range trail {
		// Newest first.
		pos := len(trail) - 1 - i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file := TrailFile{Name: entry.Name, Version: entry.Version, Created: entry.Time}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name))
			if errors.Is(err, fs.ErrNotExist) {
				// Pruned between scan and read.
				files[pos] = file
				return nil
			}
			if err != nil {
				return services.Wrap(services.ErrStorage, component, "history", "read "+entry.Name, err)
			}
			file.Size = int64(len(data))
			file.Counts = transcript.Parse(string(data)).Counts
			files[pos] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Restore makes a trail file the slot's working copy and returns its
// content. The trail itself is unchanged. On failure the previous working
// copy is left in place.
func (s *Service) Restore(ctx context.Context, mediaID string, slot int, filename string) (transcript.Snapshot, error) {
	if err := checkSlot("restore", mediaID, slot); err != nil {
		return transcript.Snapshot{}, err
	}
	if _, ok := layout.ParseBackupFileName(filename); !ok {
		return transcript.Snapshot{}, services.Wrap(services.ErrValidation, component, "restore",
			fmt.Sprintf("%q is not a backup file name", filename), nil)
	}

	var restored transcript.Snapshot
	err := s.locks.With(ctx, lockKey(mediaID, slot), func() error {
		data, err := os.ReadFile(filepath.Join(s.trailDir(mediaID, slot), filename))
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, component, "restore", "backup "+filename, err)
		}
		if err != nil {
			return services.Wrap(services.ErrStorage, component, "restore", "read backup", err)
		}
		restored = transcript.Parse(string(data))
		_, err = s.writeCurrent(mediaID, slot, document(mediaID, slot, 0, s.now().UTC(), restored))
		return err
	})
	if err != nil {
		return transcript.Snapshot{}, err
	}
	s.metrics.Restores.WithLabelValues("session").Inc()
	s.logger.Info("session backup restored",
		logging.String(logging.FieldEventType, "session_restored"),
		logging.String(logging.FieldMediaID, mediaID),
		logging.Int(logging.FieldSlot, slot),
		logging.String("file", filename),
	)
	return restored, nil
}
