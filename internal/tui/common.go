package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/priyanshu00007/moment/internal/eventbus"
)

// viewState represents the currently active view.
type viewState int

const (
	viewFocus viewState = iota
	viewTasks
	viewProfile
	viewActivity
	viewSettings
)

var viewNames = []string{"Focus", "Tasks", "Profile", "Activity", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// hubMsg is one event received from the progression hub.
type hubMsg struct {
	event eventbus.Event
	ok    bool
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func errStatus(prefix string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
	}
}

func status(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text} }
}
