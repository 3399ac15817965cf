package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/progress"
	"github.com/priyanshu00007/moment/internal/service"
)

const activityDays = 7

// xpCategory groups activity types into the stacked segments of a bar.
type xpCategory int

const (
	xpTasks xpCategory = iota
	xpFocus
	xpBonus
)

var xpCategories = []struct {
	name  string
	color lipgloss.Color
}{
	{"Tasks", colorWarning},
	{"Focus", colorAccent},
	{"Bonus", colorHighlight},
}

func categorize(t progress.ActivityType) xpCategory {
	switch {
	case t.IsTaskCompletion():
		return xpTasks
	case t.IsSessionCompletion(), t == progress.SessionStarted:
		return xpFocus
	}
	return xpBonus
}

// dayXP is the XP earned and lost on one calendar day.
type dayXP struct {
	date    time.Time
	earned  [3]int
	lost    int
	entries int
}

func (d dayXP) total() int {
	return d.earned[xpTasks] + d.earned[xpFocus] + d.earned[xpBonus] - d.lost
}

// dailyXP buckets events into the days starting at from. Events outside
// the window are ignored.
func dailyXP(events []progress.ActivityEvent, from time.Time, days int) []dayXP {
	out := make([]dayXP, days)
	index := make(map[string]int, days)
	for i := range out {
		out[i].date = from.AddDate(0, 0, i)
		index[out[i].date.Format("2006-01-02")] = i
	}
	for _, e := range events {
		i, ok := index[e.Date]
		if !ok {
			continue
		}
		out[i].entries++
		if e.Points < 0 {
			out[i].lost -= e.Points
			continue
		}
		out[i].earned[categorize(e.Type)] += e.Points
	}
	return out
}

type activityModel struct {
	svc    *service.Service
	width  int
	height int

	offset int // 7-day blocks back from today
	days   []dayXP
	now    func() time.Time

	chart barchart.Model
}

func newActivityModel(svc *service.Service) activityModel {
	return activityModel{
		svc:   svc,
		now:   time.Now,
		chart: barchart.New(60, 12),
	}
}

func (a *activityModel) setSize(w, h int) {
	a.width = w
	a.height = h
	a.buildChart()
}

type activityDataMsg struct {
	events []progress.ActivityEvent
	err    error
}

func (a activityModel) refresh() tea.Cmd {
	return func() tea.Msg {
		events, err := a.svc.History()
		return activityDataMsg{events: events, err: err}
	}
}

func (a activityModel) window() time.Time {
	now := a.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, 1-activityDays-activityDays*a.offset)
}

func (a activityModel) update(msg tea.Msg) (activityModel, tea.Cmd) {
	switch msg := msg.(type) {
	case activityDataMsg:
		if msg.err != nil {
			return a, errStatus("Load activity", msg.err)
		}
		a.days = dailyXP(msg.events, a.window(), activityDays)
		a.buildChart()
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			a.offset++
			return a, a.refresh()
		case key.Matches(msg, keys.Right):
			if a.offset > 0 {
				a.offset--
			}
			return a, a.refresh()
		}
	}
	return a, nil
}

func (a *activityModel) buildChart() {
	chartWidth := max(20, a.width-8)
	chartHeight := 12
	if a.height > 30 {
		chartHeight = 16
	}
	a.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, d := range a.days {
		var values []barchart.BarValue
		for i, c := range xpCategories {
			if d.earned[i] == 0 {
				continue
			}
			values = append(values, barchart.BarValue{
				Name:  c.name,
				Value: float64(d.earned[i]),
				Style: lipgloss.NewStyle().Foreground(c.color),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}
		bars = append(bars, barchart.BarData{Label: d.date.Format("Mon 02"), Values: values})
	}

	a.chart.PushAll(bars)
	a.chart.Draw()
}

func (a activityModel) view() string {
	w := a.width - 4

	from := a.window()
	to := from.AddDate(0, 0, activityDays-1)
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("XP per day"), "  ",
		mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.Format("Jan 02, 2006"))),
	)

	nav := mutedStyle.Render("  ←/→: navigate")
	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", a.chart.View(), "", renderLegend(), "", a.renderTable(w), "", nav,
		),
	)
}

func (a activityModel) renderTable(w int) string {
	total := 0
	for _, d := range a.days {
		total += d.entries
	}
	if total == 0 {
		return mutedStyle.Render("  No activity in this period")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-12s %8s %8s %8s %8s", "Date", "Earned", "Lost", "Net", "Events")),
		mutedStyle.Render("  " + strings.Repeat("─", max(0, min(w-6, 50)))),
	}
	for _, d := range a.days {
		if d.entries == 0 {
			continue
		}
		earned := d.total() + d.lost
		rows = append(rows, fmt.Sprintf("  %-12s %8d %8d %8d %8d",
			d.date.Format("2006-01-02"), earned, d.lost, d.total(), d.entries,
		))
	}
	return strings.Join(rows, "\n")
}

func renderLegend() string {
	var items []string
	for _, c := range xpCategories {
		dot := lipgloss.NewStyle().Foreground(c.color).Render("●")
		items = append(items, dot+" "+c.name)
	}
	return "  " + strings.Join(items, "  ")
}
