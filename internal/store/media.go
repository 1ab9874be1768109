package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const mediaColumns = "m.id, m.user_id, m.project_id, m.slot_id, m.file_name, m.url, m.kind, m.created_at"

func scanMedia(scanner rowScanner, extra ...any) (*MediaFile, error) {
	var (
		m         MediaFile
		projectID sql.NullString
		slotID    sql.NullString
		url       sql.NullString
		createdAt string
	)
	dest := append([]any{&m.ID, &m.UserID, &projectID, &slotID, &m.FileName, &url, &m.Kind, &createdAt}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	m.ProjectID = projectID.String
	m.SlotID = slotID.String
	m.URL = url.String
	m.CreatedAt = parseTimeOrZero(createdAt)
	return &m, nil
}

// CreateMedia inserts a media file record. An empty ID is replaced with a new
// UUID and an empty kind defaults to local.
func (s *Store) CreateMedia(ctx context.Context, m MediaFile) (*MediaFile, error) {
	m.FileName = strings.TrimSpace(m.FileName)
	if m.UserID == "" || m.FileName == "" {
		return nil, errors.New("media requires user and file name")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Kind == "" {
		m.Kind = "local"
	}
	m.CreatedAt = s.now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO media_files (id, user_id, project_id, slot_id, file_name, url, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, nullableString(m.ProjectID), nullableString(m.SlotID), m.FileName,
		nullableString(m.URL), m.Kind, formatTime(m.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return &m, nil
}

// GetMedia fetches a media record by id.
func (s *Store) GetMedia(ctx context.Context, id string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+mediaColumns+" FROM media_files m WHERE m.id = ?", id)
	m, err := scanMedia(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

// MediaBySlot fetches a project's media record by slot id.
func (s *Store) MediaBySlot(ctx context.Context, projectID, slotID string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+mediaColumns+" FROM media_files m WHERE m.project_id = ? AND m.slot_id = ?", projectID, slotID)
	m, err := scanMedia(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("media by slot: %w", err)
	}
	return m, nil
}

// ListProjectMedia returns a project's media records ordered by creation.
func (s *Store) ListProjectMedia(ctx context.Context, projectID string) ([]*MediaFile, error) {
	var out []*MediaFile
	err := s.queryWithRetry(ctx, func(rows *sql.Rows) error {
		out = out[:0]
		for rows.Next() {
			m, err := scanMedia(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	}, "SELECT "+mediaColumns+" FROM media_files m WHERE m.project_id = ? ORDER BY m.created_at, m.id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list project media: %w", err)
	}
	return out, nil
}

// DeleteMedia removes a media record and its transcription links.
func (s *Store) DeleteMedia(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM media_files WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LinkMedia attaches a media file to a transcription. Marking a link primary
// clears the flag on the transcription's other links.
func (s *Store) LinkMedia(ctx context.Context, transcriptionID, mediaID string, primary bool) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if primary {
			if _, err := tx.ExecContext(ctx,
				"UPDATE transcription_media SET is_primary = 0 WHERE transcription_id = ?", transcriptionID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transcription_media (transcription_id, media_id, position, is_primary)
			 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM transcription_media WHERE transcription_id = ?), ?)
			 ON CONFLICT (transcription_id, media_id) DO UPDATE SET is_primary = excluded.is_primary`,
			transcriptionID, mediaID, transcriptionID, boolToInt(primary)); err != nil {
			return fmt.Errorf("link media: %w", err)
		}
		return tx.Commit()
	})
}

// LinkedMedia returns the media attached to a transcription, primary first.
func (s *Store) LinkedMedia(ctx context.Context, transcriptionID string) ([]*MediaFile, error) {
	var out []*MediaFile
	err := s.queryWithRetry(ctx, func(rows *sql.Rows) error {
		out = out[:0]
		for rows.Next() {
			var primary int
			m, err := scanMedia(rows, &primary)
			if err != nil {
				return err
			}
			m.IsPrimary = primary != 0
			out = append(out, m)
		}
		return nil
	}, `SELECT `+mediaColumns+`, tm.is_primary
	    FROM transcription_media tm JOIN media_files m ON m.id = tm.media_id
	    WHERE tm.transcription_id = ?
	    ORDER BY tm.is_primary DESC, tm.position, m.id`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("linked media: %w", err)
	}
	return out, nil
}
