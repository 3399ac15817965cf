package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/priyanshu00007/moment/internal/outcome"
)

// DefaultLedgerCapacity is how many events the ledger blob keeps.
const DefaultLedgerCapacity = 100

// Archive receives events evicted from the ledger blob and answers the
// reversal lookups the blob can no longer answer.
type Archive interface {
	ArchiveActivities(events []ActivityEvent) error
	LatestActivityForTask(userID, taskID string) (ActivityEvent, bool, error)
}

// Ledger is the bounded, newest-first audit trail of XP changes. It is not
// the ledger of record: UserStats.TotalXP is.
type Ledger struct {
	kv       KV
	archive  Archive
	capacity int

	mu sync.Mutex
}

// NewLedger returns a ledger over kv. A nil archive drops evicted events.
func NewLedger(kv KV, capacity int, archive Archive) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Ledger{kv: kv, archive: archive, capacity: capacity}
}

// Load returns the retained events, newest first. A missing blob is an
// empty ledger; an unreadable or corrupt one is recovered as empty.
func (l *Ledger) Load() outcome.Result[[]ActivityEvent] {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.load()
	if err != nil {
		return outcome.Recovered[[]ActivityEvent](nil, outcome.CorruptState, err)
	}
	return res
}

// load returns an error only when the store could not be read.
func (l *Ledger) load() (outcome.Result[[]ActivityEvent], error) {
	raw, ok, err := l.kv.Get(KeyActivities)
	if err != nil {
		slog.Warn("activity ledger unreadable", "key", KeyActivities, "error", err)
		return outcome.Result[[]ActivityEvent]{}, fmt.Errorf("read activities: %w", err)
	}
	if !ok || raw == "" {
		return outcome.Ok[[]ActivityEvent](nil), nil
	}
	var events []ActivityEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		slog.Warn("activity ledger corrupt, starting empty", "key", KeyActivities, "error", err)
		return outcome.Recovered[[]ActivityEvent](nil, outcome.CorruptState, err), nil
	}
	return outcome.Ok(events), nil
}

// Append records events given in chronological order. Events pushed past
// the capacity are handed to the archive.
func (l *Ledger) Append(events ...ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	loaded, err := l.load()
	if err != nil {
		return err
	}
	current := loaded.Value
	next := make([]ActivityEvent, 0, len(current)+len(events))
	for i := len(events) - 1; i >= 0; i-- {
		next = append(next, events[i])
	}
	next = append(next, current...)

	if len(next) > l.capacity {
		evicted := next[l.capacity:]
		next = next[:l.capacity]
		if l.archive != nil {
			if err := l.archive.ArchiveActivities(evicted); err != nil {
				slog.Warn("archive evicted activities", "count", len(evicted), "error", err)
			}
		}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode activities: %w", err)
	}
	if err := l.kv.Set(KeyActivities, string(data)); err != nil {
		return fmt.Errorf("save activities: %w", err)
	}
	return nil
}

// Recent returns up to n of userID's newest events. An empty userID
// matches every user.
func (l *Ledger) Recent(userID string, n int) []ActivityEvent {
	var out []ActivityEvent
	for _, e := range l.Load().Value {
		if n > 0 && len(out) >= n {
			break
		}
		if userID == "" || e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// FindLatestForTask returns the newest completion or un-completion event
// recorded for taskID, looking in the archive when the ledger has none.
func (l *Ledger) FindLatestForTask(userID, taskID string) (ActivityEvent, bool) {
	e, ok, err := l.findLatestForTask(userID, taskID)
	if err != nil {
		slog.Warn("task activity lookup failed", "task_id", taskID, "error", err)
		return ActivityEvent{}, false
	}
	return e, ok
}

func (l *Ledger) findLatestForTask(userID, taskID string) (ActivityEvent, bool, error) {
	if taskID == "" {
		return ActivityEvent{}, false, nil
	}
	l.mu.Lock()
	res, err := l.load()
	l.mu.Unlock()
	if err != nil {
		return ActivityEvent{}, false, err
	}
	for _, e := range res.Value {
		if e.UserID != userID || e.TaskID != taskID {
			continue
		}
		if e.Type.IsTaskCompletion() || e.Type == TaskUncompleted {
			return e, true, nil
		}
	}
	if l.archive == nil {
		return ActivityEvent{}, false, nil
	}
	e, ok, err := l.archive.LatestActivityForTask(userID, taskID)
	if err != nil {
		return ActivityEvent{}, false, fmt.Errorf("archive lookup: %w", err)
	}
	return e, ok, nil
}
