package tui

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/service"
)

type settingsModel struct {
	svc    *service.Service
	timer  *pomodoro.Timer
	width  int
	height int

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	work        *string
	shortBreak  *string
	longBreak   *string
	grace       *string
	cycleLength *string
}

func newSettingsModel(svc *service.Service, t *pomodoro.Timer) settingsModel {
	w, sb, lb, g, c := "", "", "", "", ""
	return settingsModel{
		svc:         svc,
		timer:       t,
		work:        &w,
		shortBreak:  &sb,
		longBreak:   &lb,
		grace:       &g,
		cycleLength: &c,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	d := s.timer.Durations()
	*s.work = secsToMin(d.Work)
	*s.shortBreak = secsToMin(d.ShortBreak)
	*s.longBreak = secsToMin(d.LongBreak)
	*s.grace = strconv.Itoa(d.Grace)
	*s.cycleLength = strconv.Itoa(d.CycleLength)

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Work (min)").Value(s.work).Validate(positiveInt),
			huh.NewInput().Title("Short break (min)").Value(s.shortBreak).Validate(positiveInt),
			huh.NewInput().Title("Long break (min)").Value(s.longBreak).Validate(positiveInt),
			huh.NewInput().Title("Work periods before long break").Value(s.cycleLength).Validate(positiveInt),
		).Title("Pomodoro"),
		huh.NewGroup(
			huh.NewInput().Title("Grace period (sec)").
				Description("Reset and stop stay allowed this long after start. 0 locks at once.").
				Value(s.grace).Validate(nonNegativeInt),
		).Title("Focus lock"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		return s, s.save()
	}

	return s, cmd
}

// formDurations reads the form fields. Unparsable fields keep the timer's
// current value.
func (s settingsModel) formDurations() pomodoro.Durations {
	d := s.timer.Durations()
	d.Work = minToSecs(*s.work, d.Work)
	d.ShortBreak = minToSecs(*s.shortBreak, d.ShortBreak)
	d.LongBreak = minToSecs(*s.longBreak, d.LongBreak)
	if v, err := strconv.Atoi(*s.grace); err == nil {
		d.Grace = v
	}
	if v, err := strconv.Atoi(*s.cycleLength); err == nil {
		d.CycleLength = v
	}
	return d.Normalize()
}

func (s settingsModel) save() tea.Cmd {
	d := s.formDurations()
	if err := s.svc.SaveTimerDurations(d); err != nil {
		return errStatus("Save settings", err)
	}
	s.timer.SetDurations(d)
	return status("Settings saved")
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	d := s.timer.Durations()
	settings := []struct{ label, value string }{
		{"Work", formatMinutes(d.Work)},
		{"Short break", formatMinutes(d.ShortBreak)},
		{"Long break", formatMinutes(d.LongBreak)},
		{"Cycle length", fmt.Sprintf("%d work periods", d.CycleLength)},
		{"Grace period", fmt.Sprintf("%d sec", d.Grace)},
	}

	rows := []string{title, ""}
	for _, setting := range settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.label)
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(setting.value)))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatMinutes(secs int) string {
	if secs%60 == 0 {
		return fmt.Sprintf("%d min", secs/60)
	}
	return fmt.Sprintf("%d min %d sec", secs/60, secs%60)
}

func secsToMin(secs int) string {
	return strconv.Itoa(secs / 60)
}

func minToSecs(s string, fallback int) int {
	if mins, err := strconv.Atoi(s); err == nil {
		return mins * 60
	}
	return fallback
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.New("enter a whole number above 0")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.New("enter a whole number, 0 or more")
	}
	return nil
}
