package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const transcriptionColumns = "t.id, t.user_id, t.project_id, t.title, t.current_version, t.last_backup_at, t.is_active, t.created_at, t.updated_at"

func scanTranscription(scanner rowScanner) (*Transcription, error) {
	var (
		t            Transcription
		projectID    sql.NullString
		lastBackupAt sql.NullString
		isActive     int
		createdAt    string
		updatedAt    string
	)
	if err := scanner.Scan(&t.ID, &t.UserID, &projectID, &t.Title, &t.CurrentVersion, &lastBackupAt, &isActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.ProjectID = projectID.String
	t.LastBackupAt = parseNullTime(lastBackupAt)
	t.IsActive = isActive != 0
	t.CreatedAt = parseTimeOrZero(createdAt)
	t.UpdatedAt = parseTimeOrZero(updatedAt)
	return &t, nil
}

// CreateTranscription inserts an active transcription. An empty ID is
// replaced with a new UUID.
func (s *Store) CreateTranscription(ctx context.Context, t Transcription) (*Transcription, error) {
	t.UserID = strings.TrimSpace(t.UserID)
	t.Title = strings.TrimSpace(t.Title)
	if t.UserID == "" {
		return nil, errors.New("transcription requires a user")
	}
	if t.Title == "" {
		return nil, errors.New("transcription requires a title")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt, t.IsActive = now, now, true
	_, err := s.execWithRetry(ctx,
		`INSERT INTO transcriptions (id, user_id, project_id, title, current_version, last_backup_at, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		t.ID, t.UserID, nullableString(t.ProjectID), t.Title, t.CurrentVersion, nullableTime(t.LastBackupAt),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transcription: %w", err)
	}
	return &t, nil
}

// GetTranscription fetches a transcription by id, active or not.
func (s *Store) GetTranscription(ctx context.Context, id string) (*Transcription, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+transcriptionColumns+" FROM transcriptions t WHERE t.id = ?", id)
	t, err := scanTranscription(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return t, nil
}

// ListTranscriptions returns a user's transcriptions, newest first.
func (s *Store) ListTranscriptions(ctx context.Context, userID string, includeInactive bool) ([]*Transcription, error) {
	query := "SELECT " + transcriptionColumns + " FROM transcriptions t WHERE t.user_id = ?"
	if !includeInactive {
		query += " AND t.is_active = 1"
	}
	query += " ORDER BY t.created_at DESC, t.id"

	var out []*Transcription
	err := s.queryWithRetry(ctx, func(rows *sql.Rows) error {
		out = out[:0]
		for rows.Next() {
			t, err := scanTranscription(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	}, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	return out, nil
}

// RecordVersion moves a transcription's current version forward after a new
// backup and stamps its last backup time.
func (s *Store) RecordVersion(ctx context.Context, id string, version int, at time.Time) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE transcriptions SET current_version = ?, last_backup_at = ?, updated_at = ? WHERE id = ?`,
		version, formatTime(at), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return requireAffected(res, "transcription", id)
}

// SetCurrentVersion points a transcription at an existing version without
// touching the last backup time.
func (s *Store) SetCurrentVersion(ctx context.Context, id string, version int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE transcriptions SET current_version = ?, updated_at = ? WHERE id = ?`,
		version, formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	return requireAffected(res, "transcription", id)
}

// DeactivateTranscription soft-deletes a transcription. Its backups remain.
func (s *Store) DeactivateTranscription(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE transcriptions SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		formatTime(s.now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate transcription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ProjectNameFor returns the name of the transcription's project, or "" when
// the transcription is standalone.
func (s *Store) ProjectNameFor(ctx context.Context, transcriptionID string) (string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT p.name FROM transcriptions t LEFT JOIN projects p ON p.id = t.project_id WHERE t.id = ?`,
		transcriptionID,
	).Scan(&name)
	if notFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("project name: %w", err)
	}
	return name.String, nil
}

// ErrNoRows reports that an update matched nothing.
var ErrNoRows = errors.New("no matching row")

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNoRows, kind, id)
	}
	return nil
}
