package versions

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"quill/internal/fileutil"
	"quill/internal/layout"
	"quill/internal/logging"
)

type summaryEntry struct {
	Filename string    `json:"filename"`
	Version  int       `json:"version"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}

type summary struct {
	TranscriptionID string         `json:"transcriptionId"`
	LastBackup      *time.Time     `json:"lastBackup"`
	TotalBackups    int            `json:"totalBackups"`
	Backups         []summaryEntry `json:"backups"`
}

// refreshSummary rewrites metadata.json in a backup directory from the
// records. Failures are logged and never fail the calling operation.
func (s *Service) refreshSummary(ctx context.Context, logger *slog.Logger, transcriptionID, dir string) {
	records, err := s.repo.BackupsForTranscription(ctx, transcriptionID, 0)
	if err == nil {
		doc := summary{TranscriptionID: transcriptionID, Backups: make([]summaryEntry, 0, len(records))}
		for _, b := range records {
			doc.Backups = append(doc.Backups, summaryEntry{
				Filename: filepath.Base(b.FilePath),
				Version:  b.Version,
				Size:     b.FileSize,
				Created:  b.CreatedAt,
			})
		}
		if len(records) > 0 {
			last := records[0].CreatedAt
			doc.LastBackup = &last
		}
		doc.TotalBackups, err = s.repo.LatestBackupVersion(ctx, transcriptionID)
		if err == nil {
			err = fileutil.WriteJSONAtomic(filepath.Join(dir, layout.MetadataFile), doc)
		}
	}
	if err != nil {
		logging.WarnWithContext(logger, "backup summary not refreshed", "backup_summary_failed",
			logging.String(logging.FieldTranscriptionID, transcriptionID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "metadata.json is rebuilt on the next backup"),
			logging.String(logging.FieldImpact, "metadata.json may list stale versions"),
		)
	}
}
