package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/service"
)

const recentActivities = 8

type profileModel struct {
	svc    *service.Service
	width  int
	height int

	profile service.Profile
	loaded  bool
	bar     progress.Model
}

func newProfileModel(svc *service.Service) profileModel {
	return profileModel{
		svc: svc,
		bar: progress.New(progress.WithDefaultGradient()),
	}
}

func (p *profileModel) setSize(w, h int) {
	p.width = w
	p.height = h
	p.bar.Width = max(10, min(50, w-16))
}

type profileDataMsg struct {
	profile service.Profile
}

func (p profileModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return profileDataMsg{profile: p.svc.Profile(recentActivities)}
	}
}

func (p profileModel) update(msg tea.Msg) (profileModel, tea.Cmd) {
	if msg, ok := msg.(profileDataMsg); ok {
		p.profile = msg.profile
		p.loaded = true
	}
	return p, nil
}

func (p profileModel) view() string {
	if p.width < 20 {
		return "Terminal too small"
	}
	w := p.width - 4
	if !p.loaded {
		return panelStyle.Width(w).Render(mutedStyle.Render("Loading profile..."))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		p.renderRankPanel(w),
		p.renderStatsPanel(w),
		p.renderRecentPanel(w),
	)
}

func (p profileModel) renderRankPanel(w int) string {
	st := p.profile.Stats
	prog := p.profile.Progress

	badge := tierStyle(st.Tier).Render(st.Rank)
	header := fmt.Sprintf("%s  %s  %s", titleStyle.Render("Rank"), badge, mutedStyle.Render(fmt.Sprintf("level %d", st.Level)))

	next := successStyle.Render("Top rank reached")
	if prog.Next != nil {
		next = mutedStyle.Render(fmt.Sprintf("%d XP to %s", prog.XPNeeded, prog.Next.Name))
	}

	rows := []string{
		header,
		"",
		highlightStyle.Render(fmt.Sprintf("%d XP", st.TotalXP)),
		p.bar.ViewAs(prog.Percent / 100),
		next,
	}
	if p.profile.Reason != "" {
		rows = append(rows, "", warningStyle.Render("Stats were restored: "+string(p.profile.Reason)))
	}
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (p profileModel) renderStatsPanel(w int) string {
	st := p.profile.Stats
	streak := mutedStyle.Render("no streak")
	if st.StreakCount > 0 {
		streak = warningStyle.Render(fmt.Sprintf("%d day streak", st.StreakCount))
	}

	label := lipgloss.NewStyle().Width(18)
	rows := []string{
		titleStyle.Render("Totals") + "  " + streak,
		fmt.Sprintf("  %s %s", label.Render("Tasks completed"), highlightStyle.Render(fmt.Sprint(st.TasksCompleted))),
		fmt.Sprintf("  %s %s", label.Render("Focus sessions"), highlightStyle.Render(fmt.Sprint(st.TotalSessions))),
		fmt.Sprintf("  %s %s", label.Render("Focus time"), highlightStyle.Render(formatHours(st.TotalFocusTimeSeconds))),
	}
	if !st.JoinDate.IsZero() {
		rows = append(rows, fmt.Sprintf("  %s %s", label.Render("Member since"), mutedStyle.Render(st.JoinDate.Local().Format("Jan 02, 2006"))))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p profileModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Activity")
	if len(p.profile.Recent) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("Nothing yet. Complete a task or a focus period."),
		))
	}

	rows := []string{title}
	for _, e := range p.profile.Recent {
		points := successStyle.Render(fmt.Sprintf("%+5d", e.Points))
		if e.Points < 0 {
			points = errorStyle.Render(fmt.Sprintf("%+5d", e.Points))
		}
		at := e.Timestamp.Local().Format("Jan 02 15:04")
		rows = append(rows, fmt.Sprintf("  %s  %s  %s", mutedStyle.Render(at), points, e.Description))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
