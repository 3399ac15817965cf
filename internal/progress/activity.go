package progress

import (
	"strings"
	"time"
)

// Storage keys of the progression blobs.
const (
	KeyUserStats  = "user_stats"
	KeyActivities = "user-activities-data"
)

// KV is the key-value persistence port. Get reports ok=false for a key
// that was never written.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// ActivityType names what earned (or cost) XP. The string values double as
// keys into the rank reward table.
type ActivityType string

const (
	TaskCompletedLow         ActivityType = "task_completed_low"
	TaskCompletedMedium      ActivityType = "task_completed_medium"
	TaskCompletedHigh        ActivityType = "task_completed_high"
	TaskUncompleted          ActivityType = "task_uncompleted"
	SessionStarted           ActivityType = "session_started"
	FocusSessionCompleted    ActivityType = "focus_session_completed"
	PomodoroSessionCompleted ActivityType = "pomodoro_session_completed"
	DailyStreak              ActivityType = "daily_streak"
	RankUp                   ActivityType = "rank_up"
)

const taskCompletedPrefix = "task_completed_"

// TaskCompleted returns the completion type for a task priority
// ("low", "medium", "high").
func TaskCompleted(priority string) ActivityType {
	return ActivityType(taskCompletedPrefix + strings.ToLower(priority))
}

// IsTaskCompletion reports whether t records a task being completed.
func (t ActivityType) IsTaskCompletion() bool {
	return strings.HasPrefix(string(t), taskCompletedPrefix)
}

// IsSessionCompletion reports whether t records finished focus time.
func (t ActivityType) IsSessionCompletion() bool {
	return t == FocusSessionCompleted || t == PomodoroSessionCompleted
}

// Activity is what a caller reports to LogActivity.
type Activity struct {
	Type         ActivityType
	TaskID       string
	TaskTitle    string
	Priority     string
	SessionType  string
	FocusSeconds int64
	Description  string
}

// ActivityEvent is one ledger entry. Points is the signed XP delta.
type ActivityEvent struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Type        ActivityType `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
	Date        string       `json:"date"`
	Points      int          `json:"points"`
	TaskID      string       `json:"taskId,omitempty"`
	SessionType string       `json:"sessionType,omitempty"`
	Description string       `json:"description"`
}

func describe(a Activity) string {
	if a.Description != "" {
		return a.Description
	}
	switch {
	case a.Type.IsTaskCompletion():
		if a.TaskTitle != "" {
			return "Completed task: " + a.TaskTitle
		}
		return "Completed a task"
	case a.Type == SessionStarted:
		return "Started a " + orDefault(a.SessionType, "focus") + " session"
	case a.Type == FocusSessionCompleted:
		return "Finished a focus period"
	case a.Type == PomodoroSessionCompleted:
		return "Finished a pomodoro cycle"
	case a.Type == DailyStreak:
		return "Kept the daily streak"
	}
	return string(a.Type)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
