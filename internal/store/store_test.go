package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// archived builds an archive row for a completion at the given offset.
func archived(id, userID, typ, taskID string, points int, at time.Time) ArchivedActivity {
	return ArchivedActivity{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		TaskID:    taskID,
		Points:    points,
		Payload:   fmt.Sprintf(`{"id":%q}`, id),
		CreatedAt: at,
	}
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Should have run migration v1
	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/moment.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: data survives and migration is not rerun
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, ok, err := s2.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected persisted value, got %q %v %v", v, ok, err)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "moment.db") {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Key-value
// ============================================================

func TestKVMissing(t *testing.T) {
	s := newTestStore(t)
	v, ok, err := s.Get("nothing")
	if err != nil || ok || v != "" {
		t.Fatalf("expected clean miss, got %q %v %v", v, ok, err)
	}
}

func TestKVSetOverwrite(t *testing.T) {
	s := newTestStore(t)

	s.Set("user_stats", `{"a":1}`)
	s.Set("user_stats", `{"a":2}`)
	v, ok, _ := s.Get("user_stats")
	if !ok || v != `{"a":2}` {
		t.Fatalf("expected overwrite, got %q", v)
	}
}

func TestKVDelete(t *testing.T) {
	s := newTestStore(t)
	s.Set("k", "v")
	if err := s.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Fatal("expected key to be gone")
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
}

func TestKVConcurrentWriters(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Set(fmt.Sprintf("k%d", i), "v"); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n)
	if n != 20 {
		t.Fatalf("expected 20 keys, got %d", n)
	}
}

func TestKVClosedStore(t *testing.T) {
	s, _ := NewMemory()
	s.Close()
	if _, _, err := s.Get("k"); err == nil {
		t.Fatal("expected error from closed store")
	}
	if err := s.Set("k", "v"); err == nil {
		t.Fatal("expected error from closed store")
	}
}

// ============================================================
// Tasks
// ============================================================

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)

	task, err := s.CreateTask("Write report", "high")
	if err != nil {
		t.Fatal(err)
	}
	if task.ID == 0 || task.Title != "Write report" || task.Priority != "high" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Completed || task.CompletedAt != nil {
		t.Fatal("new task should be open")
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("expected created_at")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != task.Title {
		t.Fatalf("expected %q, got %q", task.Title, got.Title)
	}
}

func TestCreateTaskInvalidPriority(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateTask("Bad", "urgent"); err == nil {
		t.Fatal("expected check constraint error")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetTaskCompleted(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Ship", "medium")

	if err := s.SetTaskCompleted(task.ID, true); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(task.ID)
	if !got.Completed || got.CompletedAt == nil {
		t.Fatalf("expected completed task, got %+v", got)
	}

	if err := s.SetTaskCompleted(task.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetTask(task.ID)
	if got.Completed || got.CompletedAt != nil {
		t.Fatalf("expected reopened task, got %+v", got)
	}
}

func TestSetTaskCompletedNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetTaskCompleted(42, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Draft", "low")

	if err := s.UpdateTask(task.ID, "Final", "high"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Title != "Final" || got.Priority != "high" {
		t.Fatalf("unexpected task after update: %+v", got)
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Tmp", "low")

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteTask(task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListTasks(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask("A", "low")
	b, _ := s.CreateTask("B", "high")
	c, _ := s.CreateTask("C", "high")
	s.SetTaskCompleted(b.ID, true)

	all, err := s.ListTasks(TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	// Open first (newest first), then completed
	if all[0].ID != c.ID || all[1].ID != a.ID || all[2].ID != b.ID {
		t.Fatalf("unexpected order: %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}

	open := false
	pending, _ := s.ListTasks(TaskFilter{Completed: &open})
	if len(pending) != 2 {
		t.Fatalf("expected 2 open tasks, got %d", len(pending))
	}

	high, _ := s.ListTasks(TaskFilter{Priority: "high"})
	if len(high) != 2 {
		t.Fatalf("expected 2 high tasks, got %d", len(high))
	}

	limited, _ := s.ListTasks(TaskFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected 1 task with limit, got %d", len(limited))
	}
}

func TestListTasksEmpty(t *testing.T) {
	s := newTestStore(t)
	tasks, err := s.ListTasks(TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

// ============================================================
// Activity archive
// ============================================================

func TestArchiveAndLookup(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	err := s.ArchiveActivities([]ArchivedActivity{
		archived("e1", "u1", "task_completed_high", "7", 15, base),
		archived("e2", "u1", "session_started", "", 2, base.Add(time.Minute)),
		archived("e3", "u1", "task_uncompleted", "7", -7, base.Add(2*time.Minute)),
		archived("e4", "u2", "task_completed_low", "7", 5, base.Add(3*time.Minute)),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestTaskActivity("u1", "7")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "e3" || got.Points != -7 || !got.CreatedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected latest activity: %+v", got)
	}
	if got.Payload != `{"id":"e3"}` {
		t.Fatalf("payload not preserved: %q", got.Payload)
	}

	if _, err := s.LatestTaskActivity("u1", "8"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveIgnoresSessionEventsForTaskLookup(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	s.ArchiveActivities([]ArchivedActivity{archived("e1", "u1", "session_started", "9", 2, now)})

	if _, err := s.LatestTaskActivity("u1", "9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveDuplicateIDsSkipped(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	row := archived("dup", "u1", "task_completed_low", "1", 5, now)

	if err := s.ArchiveActivities([]ArchivedActivity{row}); err != nil {
		t.Fatal(err)
	}
	if err := s.ArchiveActivities([]ArchivedActivity{row}); err != nil {
		t.Fatal(err)
	}
	n, _ := s.CountArchived()
	if n != 1 {
		t.Fatalf("expected 1 archived row, got %d", n)
	}
}

func TestListArchived(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.ArchiveActivities([]ArchivedActivity{
		archived("a", "u1", "session_started", "", 2, base),
		// sub-second offsets must still sort correctly
		archived("b", "u1", "session_started", "", 2, base.Add(500*time.Millisecond)),
		archived("c", "u2", "session_started", "", 2, base.Add(time.Hour)),
		archived("d", "u1", "daily_streak", "", 5, base.Add(48*time.Hour)),
	})

	all, err := s.ListArchived(ArchiveFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].ID != "d" || all[2].ID != "b" || all[3].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	mine, _ := s.ListArchived(ArchiveFilter{UserID: "u1"})
	if len(mine) != 3 {
		t.Fatalf("expected 3 for u1, got %d", len(mine))
	}

	from := base.Add(time.Minute)
	to := base.Add(24 * time.Hour)
	window, _ := s.ListArchived(ArchiveFilter{From: &from, To: &to})
	if len(window) != 1 || window[0].ID != "c" {
		t.Fatalf("unexpected window: %+v", window)
	}

	limited, _ := s.ListArchived(ArchiveFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected 2 with limit, got %d", len(limited))
	}
}

func TestArchiveEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.ArchiveActivities(nil); err != nil {
		t.Fatal(err)
	}
	n, _ := s.CountArchived()
	if n != 0 {
		t.Fatalf("expected empty archive, got %d", n)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsStartEmpty(t *testing.T) {
	s := newTestStore(t)
	all, err := s.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no settings, got %d", len(all))
	}
}

func TestSetSetting(t *testing.T) {
	s := newTestStore(t)

	s.SetSetting(SettingWork, "3000")
	val, _ := s.GetSetting(SettingWork)
	if val != "3000" {
		t.Fatalf("expected 3000, got %s", val)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)

	s.SetSetting("key", "v1")
	s.SetSetting("key", "v2")
	val, _ := s.GetSetting("key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSetting("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSettingInt(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.GetSettingInt(SettingGrace); ok || err != nil {
		t.Fatalf("expected unset, got ok=%v err=%v", ok, err)
	}

	s.SetSetting(SettingGrace, "15")
	v, ok, err := s.GetSettingInt(SettingGrace)
	if err != nil || !ok || v != 15 {
		t.Fatalf("expected 15, got %d %v %v", v, ok, err)
	}

	s.SetSetting(SettingGrace, "soon")
	if _, _, err := s.GetSettingInt(SettingGrace); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetAllSettings(t *testing.T) {
	s := newTestStore(t)
	s.SetSetting(SettingWork, "1200")
	s.SetSetting(SettingCycleLength, "3")
	s.SetSetting(SettingGrace, "5")

	all, err := s.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 settings, got %d", len(all))
	}
	// Should be sorted by key
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %s >= %s", all[i-1].Key, all[i].Key)
		}
	}
}

// ============================================================
// Close
// ============================================================

func TestCloseStore(t *testing.T) {
	s, _ := NewMemory()
	err := s.Close()
	if err != nil {
		t.Fatalf("first close: %v", err)
	}
}
