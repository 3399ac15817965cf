package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/priyanshu00007/moment/internal/config"
	"github.com/priyanshu00007/moment/internal/export"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/service"
	"github.com/priyanshu00007/moment/internal/store"
	"github.com/spf13/cobra"
)

// ============================================================
// task
// ============================================================

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskDoneCmd())
	cmd.AddCommand(taskUndoCmd())
	cmd.AddCommand(taskDeleteCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var priority string

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task (prompts when no title is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			if title == "" {
				if err := promptTask(&title, &priority); err != nil {
					return err
				}
			}
			task, err := svc.CreateTask(title, priority)
			if err != nil {
				return err
			}
			fmt.Printf("Added #%d %s (%s)\n", task.ID, task.Title, task.Priority)
			return nil
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	return cmd
}

func promptTask(title, priority *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Task").
				Value(title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return service.ErrEmptyTitle
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Priority").
				Options(huh.NewOptions("low", "medium", "high")...).
				Value(priority),
		),
	)
	return form.Run()
}

func taskListCmd() *cobra.Command {
	var all, done bool
	var priority string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.TaskFilter{Priority: priority}
			if !all {
				f.Completed = &done
			}
			tasks, err := svc.ListTasks(f)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}
			for _, t := range tasks {
				mark := "[ ]"
				if t.Completed {
					mark = "[x]"
				}
				fmt.Printf("%s %4d  %-6s  %s\n", mark, t.ID, t.Priority, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	cmd.Flags().BoolVar(&done, "done", false, "only completed tasks")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Complete a task and collect its XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := svc.CompleteTask(id)
			if err != nil {
				return taskError(id, err)
			}
			fmt.Printf("Completed %s: +%d XP (%d total)\n", c.Task.Title, c.Reward.XPReward, c.Reward.Stats.TotalXP)
			if c.Reward.RankUp {
				fmt.Printf("Rank up: %s -> %s\n", c.Reward.RankBefore.Name, c.Reward.RankAfter.Name)
			}
			if c.Streak.Streak > c.Streak.Previous {
				fmt.Printf("Streak: %d days\n", c.Streak.Streak)
			}
			return nil
		},
	}
}

func taskUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo ID",
		Short: "Reopen a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := svc.UncompleteTask(id)
			if err != nil {
				return taskError(id, err)
			}
			fmt.Printf("Reopened #%d: -%d XP (%d total)\n", id, res.Deducted, res.Stats.TotalXP)
			return nil
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := svc.DeleteTask(id); err != nil {
				return taskError(id, err)
			}
			fmt.Printf("Deleted #%d\n", id)
			return nil
		},
	}
}

func taskError(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("task #%d not found", id)
	}
	return err
}

// ============================================================
// stats / history
// ============================================================

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show rank, XP and streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := svc.Profile(0)
			s := p.Stats
			fmt.Printf("%s (level %d)\n", p.Progress.Current.Name, p.Progress.Current.Level)
			if p.Progress.Next != nil {
				fmt.Printf("  %d XP, %.0f%% to %s (%d XP needed)\n", s.TotalXP, p.Progress.Percent, p.Progress.Next.Name, p.Progress.XPNeeded)
			} else {
				fmt.Printf("  %d XP, top rank reached\n", s.TotalXP)
			}
			fmt.Printf("  Streak:     %d days\n", s.StreakCount)
			fmt.Printf("  Tasks:      %d\n", s.TasksCompleted)
			fmt.Printf("  Sessions:   %d\n", s.TotalSessions)
			fmt.Printf("  Focus time: %s\n", time.Duration(s.TotalFocusTimeSeconds)*time.Second)
			if !s.JoinDate.IsZero() {
				fmt.Printf("  Since:      %s\n", s.JoinDate.Local().Format("2006-01-02"))
			}
			if p.Reason != "" {
				fmt.Printf("  (stats recovered: %s)\n", p.Reason)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent XP activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := svc.History()
			if err != nil {
				return err
			}
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}
			if len(events) == 0 {
				fmt.Println("No activity yet.")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%s  %+5d  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Points, e.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries, 0 for all")
	return cmd
}

// ============================================================
// export
// ============================================================

func exportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export activity history as CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := svc.History()
			if err != nil {
				return err
			}
			stats := svc.Profile(0).Stats

			switch format {
			case "csv":
				if out == "-" {
					return export.WriteCSV(os.Stdout, events)
				}
				err = export.ToCSV(events, out)
			case "json":
				if out == "-" {
					return export.WriteJSON(os.Stdout, events, stats)
				}
				err = export.ToJSON(events, stats, out)
			default:
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(events), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

// ============================================================
// focus
// ============================================================

func focusCmd() *cobra.Command {
	var phases int

	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Run the pomodoro timer without the TUI",
		Long:  "Runs phases back to back and prints each transition. The focus lock still applies: once the grace period ends, only Ctrl+C (which pauses and saves the session) leaves early.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			timer := openTimer()
			defer func() {
				if err := timer.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "save session: %v\n", err)
				}
			}()

			if _, err := svc.StartTimer(timer); err != nil {
				return err
			}
			printPhase(timer.State())

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			remaining := phases
			var sinkErr error
			err := timer.Run(ctx, ticker.C, func(effects []pomodoro.Effect) {
				results, err := svc.ApplyTimerEffects(effects)
				if err != nil {
					sinkErr = err
					cancel()
					return
				}
				for _, r := range results {
					fmt.Printf("  +%d XP (%d total)\n", r.XPReward, r.Stats.TotalXP)
				}
				for _, e := range effects {
					switch e.Kind {
					case pomodoro.GraceExpired:
						fmt.Println("  locked")
					case pomodoro.CycleComplete:
						fmt.Printf("  cycle #%d complete\n", e.SessionOrdinal)
					case pomodoro.PhaseCompleted:
						remaining--
						if remaining <= 0 {
							cancel()
							return
						}
						if _, err := svc.StartTimer(timer); err != nil {
							sinkErr = err
							cancel()
							return
						}
						printPhase(timer.State())
					}
				}
			})
			if sinkErr != nil {
				return sinkErr
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&phases, "phases", "p", 1, "number of phases to run")
	return cmd
}

func printPhase(s pomodoro.State) {
	fmt.Printf("%s  %02d:%02d  (cycle #%d, %d done)\n",
		s.Phase, s.TimeLeft/60, s.TimeLeft%60, s.SessionOrdinal, s.CompletedWorkPeriods)
}

// ============================================================
// config
// ============================================================

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the config file",
		Annotations: map[string]string{noStore: "true"},
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configPathCmd())
	return cmd
}

func configFilePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the defaults",
		Annotations: map[string]string{noStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			if err := config.WriteFile(path, config.Default(), force); err != nil {
				if errors.Is(err, config.ErrExists) {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Annotations: map[string]string{noStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}
