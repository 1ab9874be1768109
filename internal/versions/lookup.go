package versions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"quill/internal/logging"
	"quill/internal/services"
	"quill/internal/store"
	"quill/internal/transcript"
)

// Preview is a version record with its parsed content.
type Preview struct {
	Backup   *store.Backup
	Snapshot transcript.Snapshot
}

// LatestVersion returns the highest version number of a transcription, or 0
// when it has none.
func (s *Service) LatestVersion(ctx context.Context, userID, transcriptionID string) (int, error) {
	if _, err := s.authorize(ctx, userID, transcriptionID, false); err != nil {
		return 0, err
	}
	latest, err := s.repo.LatestBackupVersion(ctx, transcriptionID)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, component, "latest version", "", err)
	}
	return latest, nil
}

// FindByID returns a version record, or nil when it does not exist.
func (s *Service) FindByID(ctx context.Context, userID, backupID string) (*store.Backup, error) {
	b, err := s.repo.GetBackup(ctx, backupID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "find version", "", err)
	}
	if b == nil {
		return nil, nil
	}
	if _, err := s.authorize(ctx, userID, b.TranscriptionID, false); err != nil {
		return nil, err
	}
	return b, nil
}

// FindByVersion returns the record of one version number, or nil.
func (s *Service) FindByVersion(ctx context.Context, userID, transcriptionID string, version int) (*store.Backup, error) {
	if _, err := s.authorize(ctx, userID, transcriptionID, false); err != nil {
		return nil, err
	}
	b, err := s.repo.BackupByVersion(ctx, transcriptionID, version)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "find version", "", err)
	}
	return b, nil
}

// FindByDateRange lists the versions created within [from, to], newest
// first.
func (s *Service) FindByDateRange(ctx context.Context, userID, transcriptionID string, from, to time.Time) ([]*store.Backup, error) {
	if to.Before(from) {
		return nil, services.Wrap(services.ErrValidation, component, "find by date",
			fmt.Sprintf("range end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339)), nil)
	}
	if _, err := s.authorize(ctx, userID, transcriptionID, false); err != nil {
		return nil, err
	}
	out, err := s.repo.BackupsBetween(ctx, transcriptionID, from, to)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "find by date", "", err)
	}
	return out, nil
}

// History lists versions newest first. A limit <= 0 uses the configured
// history limit.
func (s *Service) History(ctx context.Context, userID, transcriptionID string, limit int) ([]*store.Backup, error) {
	if _, err := s.authorize(ctx, userID, transcriptionID, false); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	out, err := s.repo.BackupsForTranscription(ctx, transcriptionID, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "history", "", err)
	}
	return out, nil
}

// Preview reads and parses a version file.
func (s *Service) Preview(ctx context.Context, userID, backupID string) (*Preview, error) {
	b, err := s.FindByID(ctx, userID, backupID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, services.Wrap(services.ErrNotFound, component, "preview", "version "+backupID, nil)
	}
	data, err := os.ReadFile(b.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, component, "preview",
			fmt.Sprintf("file of version %d is missing", b.Version), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "preview", "read version file", err)
	}
	return &Preview{Backup: b, Snapshot: transcript.Parse(string(data))}, nil
}

// Restore returns a version's content and makes it the transcription's
// current version. No new version is created.
func (s *Service) Restore(ctx context.Context, userID, backupID string) (*Preview, error) {
	preview, err := s.Preview(ctx, userID, backupID)
	if err != nil {
		return nil, err
	}
	tid := preview.Backup.TranscriptionID
	err = s.locks.With(ctx, lockKey(tid), func() error {
		return s.repo.SetCurrentVersion(ctx, tid, preview.Backup.Version)
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, component, "restore", "set current version", err)
	}
	s.metrics.Restores.WithLabelValues("version").Inc()
	logging.WithContext(ctx, s.logger).Info("version restored",
		logging.String(logging.FieldEventType, "version_restored"),
		logging.String(logging.FieldTranscriptionID, tid),
		logging.String(logging.FieldBackupID, backupID),
		logging.Int(logging.FieldVersion, preview.Backup.Version),
	)
	return preview, nil
}
