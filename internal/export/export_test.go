package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/priyanshu00007/moment/internal/progress"
)

func sampleData() ([]progress.ActivityEvent, progress.UserStats) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	events := []progress.ActivityEvent{
		{
			ID:          "e3",
			UserID:      "u1",
			Type:        progress.TaskUncompleted,
			Timestamp:   now,
			Date:        "2026-03-14",
			Points:      -7,
			TaskID:      "4",
			Description: "Un-completed a task",
		},
		{
			ID:          "e2",
			UserID:      "u1",
			Type:        progress.FocusSessionCompleted,
			Timestamp:   now.Add(-30 * time.Minute),
			Date:        "2026-03-14",
			Points:      20,
			SessionType: "work",
			Description: "Finished a focus period",
		},
		{
			ID:          "e1",
			UserID:      "u1",
			Type:        progress.TaskCompletedHigh,
			Timestamp:   now.Add(-time.Hour),
			Date:        "2026-03-14",
			Points:      15,
			TaskID:      "4",
			Description: "Completed task: Write report",
		},
	}

	stats := progress.UserStats{
		UserID:                "u1",
		TotalXP:               28,
		Rank:                  "Bronze I",
		Tier:                  "Bronze",
		StreakCount:           2,
		TasksCompleted:        0,
		TotalSessions:         1,
		TotalFocusTimeSeconds: 1500,
	}

	return events, stats
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return records
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	events, _ := sampleData()
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(events, path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	records := readCSV(t, path)

	// header + 3 data rows
	if len(records) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(records))
	}

	for i, h := range csvHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "e3" || row[3] != "task_uncompleted" || row[4] != "-7" || row[5] != "4" {
		t.Fatalf("unexpected first row: %v", row)
	}
	if row[1] != "2026-03-14" {
		t.Fatalf("Date = %q", row[1])
	}

	session := records[2]
	if session[6] != "work" || session[5] != "" {
		t.Fatalf("unexpected session row: %v", session)
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	if err := ToCSV(nil, path); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}
}

func TestToCSVBadPath(t *testing.T) {
	err := ToCSV(nil, "/nonexistent/dir/file.csv")
	if err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	events := []progress.ActivityEvent{{
		ID:          "x",
		Type:        progress.TaskCompletedLow,
		Timestamp:   time.Now(),
		Points:      5,
		Description: `Completed task: "quotes" and, commas`,
	}}
	path := filepath.Join(t.TempDir(), "special.csv")

	if err := ToCSV(events, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][7] != `Completed task: "quotes" and, commas` {
		t.Fatalf("description mangled: %q", records[1][7])
	}
}

func TestWriteCSVToWriter(t *testing.T) {
	events, _ := sampleData()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, events); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 4 {
		t.Fatalf("expected 4 lines, got %d", lines)
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	events, stats := sampleData()
	path := filepath.Join(t.TempDir(), "test.json")

	if err := ToJSON(events, stats, path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Count != 3 || len(result.Activities) != 3 {
		t.Fatalf("count = %d, activities = %d, want 3", result.Count, len(result.Activities))
	}
	if result.ExportedAt == "" {
		t.Fatal("exported_at should not be empty")
	}

	p := result.Profile
	if p.UserID != "u1" || p.TotalXP != 28 || p.Rank != "Bronze I" || p.Streak != 2 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.FocusSeconds != 1500 || p.FocusTime != "00:25:00" {
		t.Fatalf("unexpected focus time: %+v", p)
	}

	a := result.Activities[2]
	if a.ID != "e1" || a.Type != "task_completed_high" || a.Points != 15 || a.TaskID != "4" {
		t.Fatalf("unexpected activity: %+v", a)
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	if err := ToJSON(nil, progress.UserStats{}, path); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"activities": []`) {
		t.Fatalf("empty export should have an empty array:\n%s", data)
	}
	var result jsonExport
	json.Unmarshal(data, &result)
	if result.Count != 0 {
		t.Fatalf("count = %d, want 0", result.Count)
	}
}

func TestToJSONBadPath(t *testing.T) {
	err := ToJSON(nil, progress.UserStats{}, "/nonexistent/dir/file.json")
	if err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretty.json")
	ToJSON(nil, progress.UserStats{}, path)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n") {
		t.Fatal("JSON should be pretty-printed with newlines")
	}
	if !strings.Contains(string(data), "  ") {
		t.Fatal("JSON should be indented with spaces")
	}
}

func TestToJSONValidTimestamps(t *testing.T) {
	events, stats := sampleData()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, events, stats); err != nil {
		t.Fatal(err)
	}

	var result jsonExport
	json.Unmarshal(buf.Bytes(), &result)

	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
	for _, a := range result.Activities {
		if _, err := time.Parse(time.RFC3339, a.Timestamp); err != nil {
			t.Fatalf("timestamp is not valid RFC3339: %q", a.Timestamp)
		}
	}
}

// ============================================================
// formatDuration (internal helper)
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{1, "00:00:01"},
		{60, "00:01:00"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{86400, "24:00:00"},
		{90061, "25:01:01"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.secs)
		if got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
