package store

import "time"

type Task struct {
	ID          int64
	Title       string
	Priority    string // low, medium, high
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Setting struct {
	Key   string
	Value string
}

// ArchivedActivity is a ledger event evicted from the kv blob. Payload is
// the event's JSON as the ledger wrote it.
type ArchivedActivity struct {
	ID        string
	UserID    string
	Type      string
	TaskID    string
	Points    int
	Payload   string
	CreatedAt time.Time
}

// TaskFilter is used to filter tasks in queries.
type TaskFilter struct {
	Completed *bool
	Priority  string
	Limit     int
}
