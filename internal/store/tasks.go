package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `id, title, priority, completed, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var completed int
	var completedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Title, &t.Priority, &completed, &completedAt, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	t.Completed = completed == 1
	if completedAt.Valid {
		ts, _ := time.Parse(time.RFC3339, completedAt.String)
		t.CompletedAt = &ts
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return t, nil
}

func (s *Store) CreateTask(title, priority string) (*Task, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, priority, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title, priority, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTask(id)
}

func (s *Store) GetTask(id int64) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns open tasks first, then completed ones, newest first
// within each group.
func (s *Store) ListTasks(f TaskFilter) ([]Task, error) {
	var where []string
	var args []any
	if f.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, boolInt(*f.Completed))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, f.Priority)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY completed, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(id int64, title, priority string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.execOne(
		fmt.Sprintf("update task %d", id),
		`UPDATE tasks SET title = ?, priority = ?, updated_at = ? WHERE id = ?`,
		title, priority, now, id,
	)
}

// SetTaskCompleted flips the completion flag, stamping or clearing
// completed_at to match.
func (s *Store) SetTaskCompleted(id int64, completed bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var completedAt any
	if completed {
		completedAt = now
	}
	return s.execOne(
		fmt.Sprintf("complete task %d", id),
		`UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		boolInt(completed), completedAt, now, id,
	)
}

func (s *Store) DeleteTask(id int64) error {
	return s.execOne(fmt.Sprintf("delete task %d", id), `DELETE FROM tasks WHERE id = ?`, id)
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(op, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
