package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ArchiveFilter is used to filter archived activities in queries.
type ArchiveFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

const archiveColumns = `id, user_id, type, task_id, points, payload, created_at`

// archiveTimeLayout is fixed width so created_at sorts as text.
const archiveTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanArchived(row rowScanner) (ArchivedActivity, error) {
	var a ArchivedActivity
	var createdAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.TaskID, &a.Points, &a.Payload, &createdAt); err != nil {
		return ArchivedActivity{}, err
	}
	a.CreatedAt, _ = time.Parse(archiveTimeLayout, createdAt)
	return a, nil
}

// ArchiveActivities inserts rows in one transaction. Rows whose ID is
// already archived are skipped.
func (s *Store) ArchiveActivities(rows []ArchivedActivity) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO activity_archive (` + archiveColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	defer stmt.Close()

	for _, a := range rows {
		_, err := stmt.Exec(a.ID, a.UserID, a.Type, a.TaskID, a.Points, a.Payload,
			a.CreatedAt.UTC().Format(archiveTimeLayout))
		if err != nil {
			return fmt.Errorf("archive activity %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// LatestTaskActivity returns the newest archived completion or
// un-completion for taskID.
func (s *Store) LatestTaskActivity(userID, taskID string) (*ArchivedActivity, error) {
	a, err := scanArchived(s.db.QueryRow(`
		SELECT `+archiveColumns+`
		FROM activity_archive
		WHERE user_id = ? AND task_id = ?
		  AND (type LIKE 'task_completed_%' OR type = 'task_uncompleted')
		ORDER BY created_at DESC
		LIMIT 1`, userID, taskID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest activity for task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest activity for task %s: %w", taskID, err)
	}
	return &a, nil
}

// ListArchived returns archived activities, newest first.
func (s *Store) ListArchived(f ArchiveFilter) ([]ArchivedActivity, error) {
	query := `SELECT ` + archiveColumns + ` FROM activity_archive WHERE 1=1`
	var args []any

	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, f.From.UTC().Format(archiveTimeLayout))
	}
	if f.To != nil {
		query += ` AND created_at < ?`
		args = append(args, f.To.UTC().Format(archiveTimeLayout))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list archived: %w", err)
	}
	defer rows.Close()

	var out []ArchivedActivity
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountArchived() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM activity_archive`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archived: %w", err)
	}
	return n, nil
}
