// Package tasklist persists the agent's working task list in SQLite and
// exposes it to the model as local tools.
package tasklist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	ref        TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	done       INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	done_at    TIMESTAMP
);
`

// Task is one task-list entry
type Task struct {
	Ref       string     `json:"ref"`
	Title     string     `json:"title"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// Store is a SQLite-backed task list
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open creates or opens a task list database at the given path
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open task database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize task schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a task and returns its reference
func (s *Store) Add(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("task title cannot be empty")
	}

	ref, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	ref = "t_" + ref

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO tasks (ref, title, done, created_at) VALUES (?, ?, 0, ?)",
		ref, title, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	s.logger.Debug().Str("ref", ref).Str("title", title).Msg("Task added")
	return ref, nil
}

// List returns tasks, optionally including completed ones
func (s *Store) List(ctx context.Context, includeDone bool) ([]Task, error) {
	query := "SELECT ref, title, done, created_at, done_at FROM tasks"
	if !includeDone {
		query += " WHERE done = 0"
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var done int
		var doneAt sql.NullTime
		if err := rows.Scan(&t.Ref, &t.Title, &done, &t.CreatedAt, &doneAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Done = done != 0
		if doneAt.Valid {
			t.DoneAt = &doneAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkDone completes a task by reference
func (s *Store) MarkDone(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET done = 1, done_at = ? WHERE ref = ? AND done = 0",
		time.Now().UTC(), ref)
	if err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no open task with ref %s", ref)
	}
	return nil
}
