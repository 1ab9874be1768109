package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const projectColumns = "id, user_id, name, created_at"

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		p         Project
		createdAt string
	)
	if err := scanner.Scan(&p.ID, &p.UserID, &p.Name, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTimeOrZero(createdAt)
	return &p, nil
}

// EnsureProject returns the user's project with the given name, creating it
// when absent.
func (s *Store) EnsureProject(ctx context.Context, userID, name string) (*Project, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, errors.New("project requires user and name")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO projects (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, name) DO NOTHING`,
		uuid.NewString(), userID, name, formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? AND name = ?", userID, name)
	project, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return project, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	project, err := scanProject(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns a user's projects ordered by name.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	var projects []*Project
	err := s.queryWithRetry(ctx, func(rows *sql.Rows) error {
		projects = projects[:0]
		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			projects = append(projects, p)
		}
		return nil
	}, "SELECT "+projectColumns+" FROM projects WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}
