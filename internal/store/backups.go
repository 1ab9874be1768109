package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrVersionTaken reports an insert that collided with an existing
// (transcription, version) pair.
var ErrVersionTaken = errors.New("backup version already exists")

const backupColumns = "id, transcription_id, version_number, file_path, file_size, block_count, speaker_count, word_count, change_summary, created_at"

func scanBackup(scanner rowScanner) (*Backup, error) {
	var (
		b         Backup
		summary   sql.NullString
		createdAt string
	)
	if err := scanner.Scan(&b.ID, &b.TranscriptionID, &b.Version, &b.FilePath, &b.FileSize,
		&b.BlockCount, &b.SpeakerCount, &b.WordCount, &summary, &createdAt); err != nil {
		return nil, err
	}
	b.ChangeSummary = summary.String
	b.CreatedAt = parseTimeOrZero(createdAt)
	return &b, nil
}

func (s *Store) queryBackups(ctx context.Context, query string, args ...any) ([]*Backup, error) {
	var out []*Backup
	err := s.queryWithRetry(ctx, func(rows *sql.Rows) error {
		out = out[:0]
		for rows.Next() {
			b, err := scanBackup(rows)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	}, query, args...)
	return out, err
}

func (s *Store) queryBackup(ctx context.Context, query string, args ...any) (*Backup, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
	b, err := scanBackup(row)
	if notFound(err) {
		return nil, nil
	}
	return b, err
}

// InsertBackup stores a version record. An empty ID is replaced with a new
// UUID and a zero CreatedAt with the current time.
func (s *Store) InsertBackup(ctx context.Context, b *Backup) error {
	if b == nil {
		return errors.New("backup is nil")
	}
	if b.Version <= 0 {
		return fmt.Errorf("backup version must be positive, got %d", b.Version)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO transcription_backups (`+backupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TranscriptionID, b.Version, b.FilePath, b.FileSize,
		b.BlockCount, b.SpeakerCount, b.WordCount, nullableString(b.ChangeSummary), formatTime(b.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: transcription %s version %d", ErrVersionTaken, b.TranscriptionID, b.Version)
	}
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

// GetBackup fetches a version record by id.
func (s *Store) GetBackup(ctx context.Context, id string) (*Backup, error) {
	b, err := s.queryBackup(ctx, "SELECT "+backupColumns+" FROM transcription_backups WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

// BackupByVersion fetches a transcription's record for one version number.
func (s *Store) BackupByVersion(ctx context.Context, transcriptionID string, version int) (*Backup, error) {
	b, err := s.queryBackup(ctx,
		"SELECT "+backupColumns+" FROM transcription_backups WHERE transcription_id = ? AND version_number = ?",
		transcriptionID, version)
	if err != nil {
		return nil, fmt.Errorf("backup by version: %w", err)
	}
	return b, nil
}

// LatestBackupVersion returns the highest version number ever recorded for the
// transcription, including versions that were pruned since, or 0.
func (s *Store) LatestBackupVersion(ctx context.Context, transcriptionID string) (int, error) {
	var latest int
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.db.QueryRowContext(ensureContext(ctx),
			`SELECT MAX(t.last_version_number, COALESCE(
			        (SELECT MAX(b.version_number) FROM transcription_backups b WHERE b.transcription_id = t.id), 0))
			   FROM transcriptions t WHERE t.id = ?`,
			transcriptionID,
		).Scan(&latest)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest backup version: %w", err)
	}
	return latest, nil
}

// BackupsForTranscription lists version records newest first. A limit <= 0
// returns all of them.
func (s *Store) BackupsForTranscription(ctx context.Context, transcriptionID string, limit int) ([]*Backup, error) {
	query := "SELECT " + backupColumns + " FROM transcription_backups WHERE transcription_id = ? ORDER BY version_number DESC"
	args := []any{transcriptionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	out, err := s.queryBackups(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return out, nil
}

// BackupsBetween lists records created within [from, to], newest first.
func (s *Store) BackupsBetween(ctx context.Context, transcriptionID string, from, to time.Time) ([]*Backup, error) {
	out, err := s.queryBackups(ctx,
		"SELECT "+backupColumns+` FROM transcription_backups
		 WHERE transcription_id = ? AND created_at >= ? AND created_at <= ?
		 ORDER BY created_at DESC, version_number DESC`,
		transcriptionID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("backups by date range: %w", err)
	}
	return out, nil
}

// DeleteBackupsBeyond removes every record except the keep highest versions
// in one statement and returns the removed records.
func (s *Store) DeleteBackupsBeyond(ctx context.Context, transcriptionID string, keep int) ([]*Backup, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	out, err := s.queryBackups(ctx,
		`DELETE FROM transcription_backups
		 WHERE transcription_id = ? AND id NOT IN (
		     SELECT id FROM transcription_backups
		     WHERE transcription_id = ?
		     ORDER BY version_number DESC
		     LIMIT ?)
		 RETURNING `+backupColumns,
		transcriptionID, transcriptionID, keep)
	if err != nil {
		return nil, fmt.Errorf("prune backups: %w", err)
	}
	return out, nil
}

// DeleteBackup removes one record by id.
func (s *Store) DeleteBackup(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM transcription_backups WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete backup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats counts rows across the main tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT
		(SELECT COUNT(1) FROM projects),
		(SELECT COUNT(1) FROM transcriptions WHERE is_active = 1),
		(SELECT COUNT(1) FROM transcription_backups),
		(SELECT COUNT(1) FROM media_files)`,
	).Scan(&st.Projects, &st.Transcriptions, &st.Backups, &st.MediaFiles)
	if err != nil {
		return Stats{}, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}
