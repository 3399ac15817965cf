// Package service ties tasks, the focus timer and progression together for
// a single local user.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/priyanshu00007/moment/internal/eventbus"
	"github.com/priyanshu00007/moment/internal/outcome"
	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/progress"
	"github.com/priyanshu00007/moment/internal/rank"
	"github.com/priyanshu00007/moment/internal/store"
)

var priorities = []string{"low", "medium", "high"}

type Options struct {
	UserID         string
	Rank           rank.Options
	ReversalRate   float64
	LedgerCapacity int
	// Hub receives progression events. Nil disables publishing.
	Hub *eventbus.Hub
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Service struct {
	store   *store.Store
	userID  string
	engine  *rank.Engine
	ledger  *progress.Ledger
	stats   *progress.StatsStore
	streaks *progress.StreakTracker
	archive archive
	hub     *eventbus.Hub
}

func New(st *store.Store, opts Options) *Service {
	if opts.UserID == "" {
		opts.UserID = "local"
	}
	engine := rank.New(opts.Rank)
	if err := rank.Validate(engine.Ranks()); err != nil {
		slog.Warn("rank table is malformed, lookups will recover", "error", err)
	}

	arch := archive{store: st}
	ledger := progress.NewLedger(st, opts.LedgerCapacity, arch)
	stats := progress.NewStatsStore(st, engine, ledger, opts.ReversalRate)
	if opts.Now != nil {
		stats.Now = opts.Now
	}

	return &Service{
		store:   st,
		userID:  opts.UserID,
		engine:  engine,
		ledger:  ledger,
		stats:   stats,
		streaks: progress.NewStreakTracker(stats),
		archive: arch,
		hub:     opts.Hub,
	}
}

func (s *Service) UserID() string { return s.userID }
func (s *Service) Engine() *rank.Engine { return s.engine }
func (s *Service) Store() *store.Store { return s.store }
func (s *Service) Hub() *eventbus.Hub { return s.hub }
func (s *Service) Ledger() *progress.Ledger { return s.ledger }

// ============================================================
// Tasks
// ============================================================

// NormalizePriority lower-cases p and defaults an empty value to medium.
func NormalizePriority(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "medium", nil
	}
	for _, known := range priorities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%q: %w", p, ErrUnknownPriority)
}

func (s *Service) CreateTask(title, priority string) (*store.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	p, err := NormalizePriority(priority)
	if err != nil {
		return nil, err
	}
	return s.store.CreateTask(title, p)
}

func (s *Service) ListTasks(f store.TaskFilter) ([]store.Task, error) {
	return s.store.ListTasks(f)
}

func (s *Service) DeleteTask(id int64) error {
	return s.store.DeleteTask(id)
}

// Completion reports everything CompleteTask changed.
type Completion struct {
	Task   *store.Task
	Reward progress.LogResult
	Streak progress.StreakResult
}

// CompleteTask marks the task done, awards its priority's XP and touches
// the daily streak.
func (s *Service) CompleteTask(id int64) (Completion, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return Completion{}, err
	}
	if task.Completed {
		return Completion{}, fmt.Errorf("task %d: %w", id, ErrTaskAlreadyCompleted)
	}
	if err := s.store.SetTaskCompleted(id, true); err != nil {
		return Completion{}, err
	}

	reward, err := s.stats.LogActivity(s.userID, progress.Activity{
		Type:      progress.TaskCompleted(task.Priority),
		TaskID:    taskKey(id),
		TaskTitle: task.Title,
		Priority:  task.Priority,
	})
	if err != nil {
		if rbErr := s.store.SetTaskCompleted(id, false); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return Completion{}, fmt.Errorf("award task %d: %w", id, err)
	}
	s.publishReward(reward)

	streak, err := s.streaks.Touch(s.userID)
	if err != nil {
		return Completion{}, fmt.Errorf("touch streak: %w", err)
	}
	s.publishStreak(streak)

	task, err = s.store.GetTask(id)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Task: task, Reward: reward, Streak: streak}, nil
}

// UncompleteTask reopens the task and takes back part of its reward.
func (s *Service) UncompleteTask(id int64) (progress.ReverseResult, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return progress.ReverseResult{}, err
	}
	if !task.Completed {
		return progress.ReverseResult{}, fmt.Errorf("task %d: %w", id, ErrTaskNotCompleted)
	}
	if err := s.store.SetTaskCompleted(id, false); err != nil {
		return progress.ReverseResult{}, err
	}

	res, err := s.stats.ReverseActivity(s.userID, taskKey(id))
	if err != nil {
		if rbErr := s.store.SetTaskCompleted(id, true); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return progress.ReverseResult{}, fmt.Errorf("reverse task %d: %w", id, err)
	}
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeXPReversed,
		Data: map[string]any{"task_id": id, "points": res.Deducted, "total_xp": res.Stats.TotalXP},
	})
	return res, nil
}

func taskKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ============================================================
// Focus sessions
// ============================================================

// StartTimer starts t and awards session_started when the start begins a
// fresh work phase rather than resuming one.
func (s *Service) StartTimer(t *pomodoro.Timer) (*progress.LogResult, error) {
	before := t.State()
	if before.Running {
		return nil, nil
	}
	t.Start()

	if before.Phase != pomodoro.Work || before.Started {
		return nil, nil
	}
	res, err := s.stats.LogActivity(s.userID, progress.Activity{
		Type:        progress.SessionStarted,
		SessionType: "pomodoro",
	})
	if err != nil {
		return nil, err
	}
	s.publishReward(res)
	return &res, nil
}

// ToggleTimer is the play button: it pauses a running timer and starts a
// stopped one through StartTimer.
func (s *Service) ToggleTimer(t *pomodoro.Timer) (*progress.LogResult, error) {
	if t.State().Running {
		t.Pause()
		return nil, nil
	}
	return s.StartTimer(t)
}

// ApplyTimerEffects awards XP for finished work periods. The work period
// that closes a cycle is logged as pomodoro_session_completed instead of
// focus_session_completed, so each period counts once.
func (s *Service) ApplyTimerEffects(effects []pomodoro.Effect) ([]progress.LogResult, error) {
	cycle := false
	for _, e := range effects {
		if e.Kind == pomodoro.CycleComplete {
			cycle = true
		}
	}

	var results []progress.LogResult
	for _, e := range effects {
		switch e.Kind {
		case pomodoro.PhaseCompleted:
			s.hub.Publish(eventbus.Event{
				Type: eventbus.TypePhaseComplete,
				Data: map[string]any{"from": string(e.From), "to": string(e.To)},
			})
			if e.From != pomodoro.Work {
				continue
			}
			a := progress.Activity{
				Type:         progress.FocusSessionCompleted,
				SessionType:  "work",
				FocusSeconds: int64(e.Seconds),
			}
			if cycle {
				a.Type = progress.PomodoroSessionCompleted
				a.SessionType = "pomodoro"
			}
			res, err := s.stats.LogActivity(s.userID, a)
			if err != nil {
				return results, err
			}
			s.publishReward(res)
			results = append(results, res)
		case pomodoro.CycleComplete:
			s.hub.Publish(eventbus.Event{
				Type: eventbus.TypeCycleComplete,
				Data: map[string]any{"session": e.SessionOrdinal, "periods": e.CompletedWorkPeriods},
			})
		}
	}
	return results, nil
}

// ============================================================
// Timer settings
// ============================================================

var durationSettings = []struct {
	key   string
	field func(*pomodoro.Durations) *int
}{
	{store.SettingWork, func(d *pomodoro.Durations) *int { return &d.Work }},
	{store.SettingShortBreak, func(d *pomodoro.Durations) *int { return &d.ShortBreak }},
	{store.SettingLongBreak, func(d *pomodoro.Durations) *int { return &d.LongBreak }},
	{store.SettingGrace, func(d *pomodoro.Durations) *int { return &d.Grace }},
	{store.SettingCycleLength, func(d *pomodoro.Durations) *int { return &d.CycleLength }},
}

// TimerDurations applies the settings table's overrides to base. Unreadable
// overrides are skipped.
func (s *Service) TimerDurations(base pomodoro.Durations) pomodoro.Durations {
	d := base
	for _, ds := range durationSettings {
		v, ok, err := s.store.GetSettingInt(ds.key)
		if err != nil {
			slog.Warn("ignoring timer setting", "key", ds.key, "error", err)
			continue
		}
		if ok {
			*ds.field(&d) = v
		}
	}
	return d.Normalize()
}

// SaveTimerDurations stores d as overrides.
func (s *Service) SaveTimerDurations(d pomodoro.Durations) error {
	d = d.Normalize()
	for _, ds := range durationSettings {
		if err := s.store.SetSetting(ds.key, strconv.Itoa(*ds.field(&d))); err != nil {
			return fmt.Errorf("save %s: %w", ds.key, err)
		}
	}
	return nil
}

// ============================================================
// Profile and history
// ============================================================

type Profile struct {
	Stats    progress.UserStats
	Progress rank.Progress
	Recent   []progress.ActivityEvent
	// Reason is set when the stats had to be recovered.
	Reason outcome.Reason
}

// Profile returns the user's stats, rank progress and the newest recent
// ledger entries.
func (s *Service) Profile(recent int) Profile {
	res := s.stats.Get(s.userID)
	return Profile{
		Stats:    res.Value,
		Progress: s.engine.ProgressToNext(res.Value.TotalXP),
		Recent:   s.ledger.Recent(s.userID, recent),
		Reason:   res.Reason,
	}
}

// History returns the user's full activity history, newest first: the
// ledger followed by archived events.
func (s *Service) History() ([]progress.ActivityEvent, error) {
	events := s.ledger.Recent(s.userID, 0)
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		seen[e.ID] = true
	}
	archived, err := s.archive.list(s.userID, 0)
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	for _, e := range archived {
		if !seen[e.ID] {
			events = append(events, e)
		}
	}
	return events, nil
}

// ============================================================
// Events
// ============================================================

func (s *Service) publishReward(res progress.LogResult) {
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeXPAwarded,
		Data: map[string]any{
			"activity": string(res.Activity.Type),
			"points":   res.XPReward,
			"total_xp": res.Stats.TotalXP,
		},
	})
	if res.RankUp {
		s.hub.Publish(eventbus.Event{
			Type: eventbus.TypeRankUp,
			Data: map[string]any{
				"from":  res.RankBefore.Name,
				"to":    res.RankAfter.Name,
				"bonus": res.Bonus,
			},
		})
	}
}

func (s *Service) publishStreak(res progress.StreakResult) {
	if res.Reward == nil {
		return
	}
	s.publishReward(*res.Reward)
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeStreak,
		Data: map[string]any{"streak": res.Streak, "previous": res.Previous},
	})
}
