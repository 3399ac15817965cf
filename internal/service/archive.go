package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/priyanshu00007/moment/internal/progress"
	"github.com/priyanshu00007/moment/internal/store"
)

// archive stores ledger evictions in the activity_archive table.
type archive struct {
	store *store.Store
}

func (a archive) ArchiveActivities(events []progress.ActivityEvent) error {
	rows := make([]store.ArchivedActivity, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode activity %s: %w", e.ID, err)
		}
		rows = append(rows, store.ArchivedActivity{
			ID:        e.ID,
			UserID:    e.UserID,
			Type:      string(e.Type),
			TaskID:    e.TaskID,
			Points:    e.Points,
			Payload:   string(payload),
			CreatedAt: e.Timestamp,
		})
	}
	return a.store.ArchiveActivities(rows)
}

func (a archive) LatestActivityForTask(userID, taskID string) (progress.ActivityEvent, bool, error) {
	row, err := a.store.LatestTaskActivity(userID, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return progress.ActivityEvent{}, false, nil
	}
	if err != nil {
		return progress.ActivityEvent{}, false, err
	}
	e, err := decodeArchived(*row)
	if err != nil {
		return progress.ActivityEvent{}, false, err
	}
	return e, true, nil
}

// list returns userID's archived events, newest first.
func (a archive) list(userID string, limit int) ([]progress.ActivityEvent, error) {
	rows, err := a.store.ListArchived(store.ArchiveFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	events := make([]progress.ActivityEvent, 0, len(rows))
	for _, r := range rows {
		e, err := decodeArchived(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func decodeArchived(r store.ArchivedActivity) (progress.ActivityEvent, error) {
	var e progress.ActivityEvent
	if err := json.Unmarshal([]byte(r.Payload), &e); err != nil {
		return progress.ActivityEvent{}, fmt.Errorf("decode archived activity %s: %w", r.ID, err)
	}
	return e, nil
}
