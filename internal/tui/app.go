// Package tui is the Bubble Tea front end: the focus timer, the task list,
// the rank profile, XP history and timer settings.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/eventbus"
	"github.com/priyanshu00007/moment/internal/export"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/service"
)

// App is the root Bubble Tea model.
type App struct {
	svc    *service.Service
	timer  *pomodoro.Timer
	events <-chan eventbus.Event
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	exportDir     string

	focus    focusModel
	tasks    tasksModel
	profile  profileModel
	activity activityModel
	settings settingsModel

	help     help.Model
	status   string
	statusOK bool
}

// NewApp builds the root model. Progression events from the service's hub
// are shown in the status line until ctx is done.
func NewApp(ctx context.Context, svc *service.Service, t *pomodoro.Timer) App {
	h := help.New()
	h.ShowAll = false

	var events <-chan eventbus.Event
	if hub := svc.Hub(); hub != nil {
		events = hub.Subscribe(ctx, 32)
	}
	home, _ := os.UserHomeDir()

	return App{
		svc:        svc,
		timer:      t,
		events:     events,
		activeView: viewFocus,
		exportDir:  home,
		focus:      newFocusModel(svc, t),
		tasks:      newTasksModel(svc),
		profile:    newProfileModel(svc),
		activity:   newActivityModel(svc),
		settings:   newSettingsModel(svc, t),
		help:       h,
		statusOK:   true,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.tasks.refresh(),
		a.profile.refresh(),
		tickCmd(),
		waitForEvent(a.events),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the hub subscription. A nil channel never
// delivers, so the command simply never returns without a hub.
func waitForEvent(ch <-chan eventbus.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-ch
		return hubMsg{event: evt, ok: ok}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.focus.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.profile.setSize(a.width, contentHeight)
		a.activity.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewFocus)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewTasks)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewProfile)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewActivity)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		// The timer ticks whichever view is showing.
		cmds = append(cmds, tickCmd())
		var cmd tea.Cmd
		a.focus, cmd = a.focus.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case hubMsg:
		if !msg.ok {
			return a, nil
		}
		if text := describeEvent(msg.event); text != "" {
			a.status = text
			a.statusOK = true
		}
		return a, tea.Batch(waitForEvent(a.events), a.refreshCurrentView())

	case statusMsg:
		a.status = msg.text
		a.statusOK = !msg.isError
		return a, nil

	case sessionLeftMsg:
		a.status = "Left the focus session"
		a.statusOK = true
		return a.switchTo(viewTasks)

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusOK = true
		a.exportPicking = false
		return a, nil

	case tasksDataMsg:
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		return a, cmd

	case profileDataMsg:
		a.profile, _ = a.profile.update(msg)
		return a, nil

	case activityDataMsg:
		var cmd tea.Cmd
		a.activity, cmd = a.activity.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewFocus:
		a.focus, cmd = a.focus.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewProfile:
		a.profile, cmd = a.profile.update(msg)
	case viewActivity:
		a.activity, cmd = a.activity.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTasks:
		return a.tasks.refresh()
	case viewProfile:
		return a.profile.refresh()
	case viewActivity:
		return a.activity.refresh()
	}
	return nil
}

// describeEvent renders a hub event for the status line. Events that only
// matter to other views return "".
func describeEvent(evt eventbus.Event) string {
	d := evt.Data
	switch evt.Type {
	case eventbus.TypeRankUp:
		return fmt.Sprintf("Rank up! %v → %v (+%v XP bonus)", d["from"], d["to"], d["bonus"])
	case eventbus.TypeStreak:
		return fmt.Sprintf("%v day streak", d["streak"])
	case eventbus.TypeCycleComplete:
		return fmt.Sprintf("Cycle #%v complete, take the long break \a", d["session"])
	case eventbus.TypePhaseComplete:
		if d["to"] == string(pomodoro.Work) {
			return "Break over, back to work \a"
		}
		return "Work period done, take a break \a"
	case eventbus.TypeXPAwarded:
		return fmt.Sprintf("+%v XP (%v total)", d["points"], d["total_xp"])
	case eventbus.TypeXPReversed:
		return fmt.Sprintf("-%v XP (%v total)", d["points"], d["total_xp"])
	}
	return ""
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewFocus:
		content = a.focus.view()
	case viewTasks:
		content = a.tasks.view()
	case viewProfile:
		content = a.profile.view()
	case viewActivity:
		content = a.activity.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("moment")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	statusText := ""
	if a.status != "" {
		style := mutedStyle
		if !a.statusOK {
			style = errorStyle
		}
		statusText = style.Render(" " + a.status)
	}

	// Countdown indicator in the footer, visible from every view.
	timerInfo := ""
	if s := a.timer.State(); s.Running {
		clock := formatPomodoroTime(s.TimeLeft)
		switch {
		case s.Locked():
			timerInfo = accentStyle.Render(" ● " + clock)
		default:
			timerInfo = successStyle.Render(" ● " + clock)
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + statusText

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON"}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export Activity"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	svc, dir := a.svc, a.exportDir
	return func() tea.Msg {
		events, err := svc.History()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		stats := svc.Profile(0).Stats

		dateStr := time.Now().Format("2006-01-02")
		var path string
		if format == 0 {
			path = filepath.Join(dir, fmt.Sprintf("moment-export-%s.csv", dateStr))
			if err := export.ToCSV(events, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(dir, fmt.Sprintf("moment-export-%s.json", dateStr))
			if err := export.ToJSON(events, stats, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
