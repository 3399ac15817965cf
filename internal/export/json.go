package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/priyanshu00007/moment/internal/progress"
)

type jsonExport struct {
	ExportedAt string         `json:"exported_at"`
	Profile    jsonProfile    `json:"profile"`
	Count      int            `json:"count"`
	Activities []jsonActivity `json:"activities"`
}

type jsonProfile struct {
	UserID         string `json:"user_id"`
	TotalXP        int    `json:"total_xp"`
	Rank           string `json:"rank"`
	Tier           string `json:"tier"`
	Streak         int    `json:"streak"`
	TasksCompleted int    `json:"tasks_completed"`
	Sessions       int    `json:"sessions"`
	FocusSeconds   int64  `json:"focus_seconds"`
	FocusTime      string `json:"focus_time"`
}

type jsonActivity struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
	Date        string `json:"date"`
	Points      int    `json:"points"`
	TaskID      string `json:"task_id,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	Description string `json:"description"`
}

func ToJSON(events []progress.ActivityEvent, stats progress.UserStats, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, events, stats); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// WriteJSON writes the profile summary and events as indented JSON.
func WriteJSON(w io.Writer, events []progress.ActivityEvent, stats progress.UserStats) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Profile: jsonProfile{
			UserID:         stats.UserID,
			TotalXP:        stats.TotalXP,
			Rank:           stats.Rank,
			Tier:           stats.Tier,
			Streak:         stats.StreakCount,
			TasksCompleted: stats.TasksCompleted,
			Sessions:       stats.TotalSessions,
			FocusSeconds:   stats.TotalFocusTimeSeconds,
			FocusTime:      formatDuration(stats.TotalFocusTimeSeconds),
		},
		Count:      len(events),
		Activities: []jsonActivity{},
	}

	for _, e := range events {
		export.Activities = append(export.Activities, jsonActivity{
			ID:          e.ID,
			Type:        string(e.Type),
			Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
			Date:        e.Date,
			Points:      e.Points,
			TaskID:      e.TaskID,
			SessionType: e.SessionType,
			Description: e.Description,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
