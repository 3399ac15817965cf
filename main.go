package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/priyanshu00007/moment/internal/config"
	"github.com/priyanshu00007/moment/internal/eventbus"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/service"
	"github.com/priyanshu00007/moment/internal/store"
	"github.com/priyanshu00007/moment/internal/tui"
	"github.com/spf13/cobra"
)

// noStore marks commands that run without opening the database.
const noStore = "no-store"

var (
	cfgFile   string
	cfg       *config.Config
	st        *store.Store
	svc       *service.Service
	logCloser io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "moment",
		Short:        "Focus timer and task list with XP, ranks and streaks",
		Long:         `moment runs a pomodoro timer with a focus lock next to a task list. Finished work periods and tasks earn XP that moves you up the rank table.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setup(cmd, cmd == rootCmd)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		teardown()
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.config/moment/config.yaml)")

	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(focusCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		teardown()
		os.Exit(1)
	}
}

// setup loads the config, installs the logger and opens the store. The TUI
// logs to a file so log lines do not draw over the screen.
func setup(cmd *cobra.Command, interactive bool) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logPath := cfg.App.LogPath
	if logPath == "" && interactive {
		if dir, err := config.DefaultConfigDir(); err == nil {
			logPath = filepath.Join(dir, "moment.log")
		}
	}
	logCloser, err = config.SetupLogger(config.LoggerOptions{Level: cfg.App.LogLevel, Path: logPath})
	if err != nil {
		return err
	}

	if cmd.Annotations[noStore] != "" {
		return nil
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	}
	st, err = store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	slog.Debug("store opened", "path", dbPath)

	svc = service.New(st, service.Options{
		UserID:         cfg.User.ID,
		Rank:           cfg.RankOptions(),
		ReversalRate:   cfg.Progression.ReversalRate,
		LedgerCapacity: cfg.Progression.LedgerCapacity,
		Hub:            eventbus.NewHub(),
	})
	return nil
}

func teardown() {
	if st != nil {
		st.Close()
		st = nil
	}
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

// openTimer restores the persisted session with the configured durations
// and any overrides saved from the settings view.
func openTimer() *pomodoro.Timer {
	t, res := pomodoro.Open(st, svc.TimerDurations(cfg.Durations()), nil)
	if res.IsRecovered() {
		slog.Info("focus session restored", "reason", res.Reason)
	}
	return t
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	timer := openTimer()
	defer func() {
		if err := timer.Close(); err != nil {
			slog.Error("save focus session", "error", err)
		}
	}()

	go watchConfig(ctx, timer)

	p := tea.NewProgram(tui.NewApp(ctx, svc, timer), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// watchConfig applies log level and timer duration changes from the config
// file while the app runs.
func watchConfig(ctx context.Context, timer *pomodoro.Timer) {
	path := cfgFile
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		slog.Debug("config file not watched", "path", path, "error", err)
		return
	}

	err := config.Watch(ctx, path, func(c *config.Config) {
		config.SetLevel(c.App.LogLevel)
		timer.SetDurations(svc.TimerDurations(c.Durations()))
	})
	if err != nil {
		slog.Warn("config watch stopped", "error", err)
	}
}
