package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/priyanshu00007/moment/internal/progress"
)

var csvHeader = []string{"ID", "Date", "Time", "Type", "Points", "Task", "Session", "Description"}

func ToCSV(events []progress.ActivityEvent, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, events)
}

// WriteCSV writes one row per event with a header row.
func WriteCSV(out io.Writer, events []progress.ActivityEvent) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			e.ID,
			e.Date,
			e.Timestamp.Local().Format(time.RFC3339),
			string(e.Type),
			strconv.Itoa(e.Points),
			e.TaskID,
			e.SessionType,
			e.Description,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
