package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/priyanshu00007/moment/internal/service"
	"github.com/priyanshu00007/moment/internal/store"
)

var taskPriorities = []string{"low", "medium", "high"}

type tasksModel struct {
	svc    *service.Service
	width  int
	height int

	tasks  []store.Task
	cursor int

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formTitle    *string
	formPriority *string
}

func newTasksModel(svc *service.Service) tasksModel {
	title, priority := "", "medium"
	return tasksModel{
		svc:          svc,
		formTitle:    &title,
		formPriority: &priority,
	}
}

func (t *tasksModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

type tasksDataMsg struct {
	tasks []store.Task
	err   error
}

func (t tasksModel) refresh() tea.Cmd {
	return func() tea.Msg {
		tasks, err := t.svc.ListTasks(store.TaskFilter{})
		return tasksDataMsg{tasks: tasks, err: err}
	}
}

func (t tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if t.formActive && t.form != nil {
		return t.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tasksDataMsg:
		if msg.err != nil {
			return t, errStatus("Load tasks", msg.err)
		}
		t.tasks = msg.tasks
		if t.cursor >= len(t.tasks) {
			t.cursor = max(0, len(t.tasks)-1)
		}
		return t, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if t.cursor > 0 {
				t.cursor--
			}
		case key.Matches(msg, keys.Down):
			if t.cursor < len(t.tasks)-1 {
				t.cursor++
			}
		case key.Matches(msg, keys.New):
			return t.showNewTaskForm()
		case key.Matches(msg, keys.Complete):
			if len(t.tasks) > 0 {
				return t, t.toggleCompleted(t.tasks[t.cursor])
			}
		case key.Matches(msg, keys.Delete):
			if len(t.tasks) > 0 {
				task := t.tasks[t.cursor]
				if err := t.svc.DeleteTask(task.ID); err != nil {
					return t, errStatus("Delete task", err)
				}
				return t, tea.Batch(t.refresh(), status("Deleted "+task.Title))
			}
		}
	}
	return t, nil
}

// toggleCompleted completes an open task or reopens a done one. XP and
// streak changes reach the status line through the event hub.
func (t tasksModel) toggleCompleted(task store.Task) tea.Cmd {
	if task.Completed {
		res, err := t.svc.UncompleteTask(task.ID)
		if err != nil {
			return errStatus("Reopen task", err)
		}
		return tea.Batch(t.refresh(), status(fmt.Sprintf("Reopened %s (-%d XP)", task.Title, res.Deducted)))
	}
	c, err := t.svc.CompleteTask(task.ID)
	if err != nil {
		return errStatus("Complete task", err)
	}
	return tea.Batch(t.refresh(), status(fmt.Sprintf("Completed %s (+%d XP)", task.Title, c.Reward.XPReward)))
}

func (t tasksModel) showNewTaskForm() (tasksModel, tea.Cmd) {
	*t.formTitle = ""
	*t.formPriority = "medium"

	options := make([]huh.Option[string], len(taskPriorities))
	for i, p := range taskPriorities {
		options[i] = huh.NewOption(p, p)
	}

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task").Value(t.formTitle).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return service.ErrEmptyTitle
				}
				return nil
			}),
			huh.NewSelect[string]().Title("Priority").Options(options...).Value(t.formPriority),
		),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.formActive = false
			t.form = nil
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		t.form = nil
		if _, err := t.svc.CreateTask(*t.formTitle, *t.formPriority); err != nil {
			return t, errStatus("Create task", err)
		}
		return t, t.refresh()
	}

	return t, cmd
}

func (t tasksModel) view() string {
	w := t.width - 4

	if t.formActive && t.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("New Task"), "", t.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Tasks")
	if len(t.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	open := 0
	for _, task := range t.tasks {
		if !task.Completed {
			open++
		}
	}

	var rows []string
	rows = append(rows, fmt.Sprintf("%s  %s", title, mutedStyle.Render(fmt.Sprintf("%d open", open))))
	rows = append(rows, "")

	for i, task := range t.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == t.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		check := "[ ]"
		name := style.Render(task.Title)
		if task.Completed {
			check = successStyle.Render("[✓]")
			name = doneItemStyle.Render(task.Title)
		}
		marker := priorityStyle(task.Priority).Render(fmt.Sprintf("%-6s", task.Priority))
		rows = append(rows, fmt.Sprintf("%s%s %s %s", style.Render(cursor), check, marker, name))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  enter: done/undo  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
