package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/service"
)

type focusModel struct {
	svc    *service.Service
	timer  *pomodoro.Timer
	width  int
	height int

	bar progress.Model
}

func newFocusModel(svc *service.Service, t *pomodoro.Timer) focusModel {
	return focusModel{
		svc:   svc,
		timer: t,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

func (f *focusModel) setSize(w, h int) {
	f.width = w
	f.height = h
	f.bar.Width = max(10, min(60, w-12))
}

func (f focusModel) update(msg tea.Msg) (focusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return f, f.apply(f.timer.Tick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Toggle):
			if _, err := f.svc.ToggleTimer(f.timer); err != nil {
				return f, errStatus("Start session", err)
			}
			if !f.timer.State().Running {
				return f, status("Paused")
			}
			return f, nil
		case key.Matches(msg, keys.Reset):
			if !f.timer.Reset() {
				return f, lockedStatus()
			}
			return f, status("Phase reset")
		case key.Matches(msg, keys.Stop):
			if !f.timer.Stop() {
				return f, lockedStatus()
			}
			return f, func() tea.Msg { return sessionLeftMsg{} }
		case key.Matches(msg, keys.Skip):
			s := f.timer.State()
			if !s.Phase.IsBreak() {
				return f, status("Only breaks can be skipped")
			}
			effects := f.timer.Skip()
			if effects == nil {
				return f, lockedStatus()
			}
			return f, f.apply(effects)
		case key.Matches(msg, keys.NewCycle):
			if f.timer.State().Running {
				return f, status("Pause the timer before starting a new cycle")
			}
			f.timer.NewCycle()
			return f, status(fmt.Sprintf("Cycle #%d", f.timer.State().SessionOrdinal))
		}
	}
	return f, nil
}

// apply hands timer effects to the service, which awards XP and publishes
// the phase events.
func (f focusModel) apply(effects []pomodoro.Effect) tea.Cmd {
	if len(effects) == 0 {
		return nil
	}
	if _, err := f.svc.ApplyTimerEffects(effects); err != nil {
		return errStatus("Award XP", err)
	}
	for _, e := range effects {
		if e.Kind == pomodoro.GraceExpired {
			return status("Focus locked until the phase ends")
		}
	}
	return nil
}

type sessionLeftMsg struct{}

func lockedStatus() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: "Locked: finish the phase or pause first", isError: true}
	}
}

func (f focusModel) view() string {
	w := f.width - 4
	s := f.timer.State()
	d := f.timer.Durations()

	title := titleStyle.Render(fmt.Sprintf("Focus  %s", mutedStyle.Render(fmt.Sprintf("cycle #%d", s.SessionOrdinal))))

	phaseStyle := accentStyle
	switch s.Phase {
	case pomodoro.ShortBreak:
		phaseStyle = successStyle
	case pomodoro.LongBreak:
		phaseStyle = highlightStyle
	}
	timeDisplay := phaseStyle.Bold(true).Width(w - 6).Align(lipgloss.Center).Render(formatPomodoroTime(s.TimeLeft))
	phaseLabel := phaseStyle.Bold(true).Render(s.Phase.String())

	total := d.For(s.Phase)
	done := 0.0
	if total > 0 {
		done = float64(total-s.TimeLeft) / float64(total)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		"",
		timeDisplay,
		phaseLabel,
		"",
		f.bar.ViewAs(done),
		"",
		f.renderLock(s),
		f.renderProgress(s, d.CycleLength),
	)

	panel := panelStyle
	switch {
	case s.Locked():
		panel = lockedPanelStyle
	case s.Running:
		panel = activePanelStyle
	}
	return panel.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, content, "", mutedStyle.Render(f.controls(s))),
	)
}

func (f focusModel) renderLock(s pomodoro.State) string {
	switch {
	case s.GracePeriodActive:
		return warningStyle.Render(fmt.Sprintf("◌  GRACE %ds  reset and stop still allowed", s.GraceRemaining))
	case s.Locked():
		return accentStyle.Render("●  LOCKED")
	case s.Running:
		return successStyle.Render("●  RUNNING")
	}
	return mutedStyle.Render("■  PAUSED")
}

func (f focusModel) renderProgress(s pomodoro.State, cycle int) string {
	var parts []string
	for i := 0; i < cycle; i++ {
		if i < s.CompletedWorkPeriods {
			parts = append(parts, successStyle.Render("●"))
		} else if i == s.CompletedWorkPeriods && s.Phase == pomodoro.Work && s.Running {
			parts = append(parts, accentStyle.Render("◐"))
		} else {
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d/%d", s.CompletedWorkPeriods, cycle))
	return strings.Join(parts, " ") + counter
}

func (f focusModel) controls(s pomodoro.State) string {
	if s.Locked() {
		return "space: pause"
	}
	hints := []string{"space: start/pause", "r: reset", "x: stop"}
	if s.Phase.IsBreak() {
		hints = append(hints, "s: skip break")
	}
	if !s.Running {
		hints = append(hints, "c: new cycle")
	}
	return strings.Join(hints, "  ")
}

func formatPomodoroTime(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
