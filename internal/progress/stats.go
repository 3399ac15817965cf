// Package progress keeps per-user XP totals, the activity ledger and daily
// streaks, and applies the rank engine's reward policy to them.
package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/priyanshu00007/moment/internal/outcome"
	"github.com/priyanshu00007/moment/internal/rank"
)

// DefaultReversalRate is the share of a completion's points taken back when
// the task is un-completed.
const DefaultReversalRate = 0.5

// UserStats is the per-user aggregate. Rank, Tier and Level are derived
// from TotalXP on every read and write.
type UserStats struct {
	UserID                string     `json:"userId"`
	TotalXP               int        `json:"totalXP"`
	JoinDate              time.Time  `json:"joinDate"`
	LastActiveAt          time.Time  `json:"lastActiveAt"`
	StreakCount           int        `json:"streakCount"`
	LastCompletionDate    *time.Time `json:"lastCompletionDate,omitempty"`
	TotalFocusTimeSeconds int64      `json:"totalFocusTimeSeconds"`
	TotalSessions         int        `json:"totalSessions"`
	TasksCompleted        int        `json:"tasksCompleted"`

	Rank  string `json:"rank"`
	Tier  string `json:"tier"`
	Level int    `json:"level"`
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	TotalXP               *int
	StreakCount           *int
	LastCompletionDate    *time.Time
	TotalFocusTimeSeconds *int64
	TotalSessions         *int
	TasksCompleted        *int
}

// LogResult reports what LogActivity changed. RankAfter is the rank
// reached by the base reward; Stats reflects the bonus as well.
type LogResult struct {
	Activity   ActivityEvent
	XPReward   int
	RankUp     bool
	Bonus      int
	RankBefore rank.Rank
	RankAfter  rank.Rank
	Stats      UserStats
}

// ReverseResult reports what ReverseActivity took back.
type ReverseResult struct {
	Stats    UserStats
	Deducted int
	Activity ActivityEvent
	// Reason is outcome.MissingReference when no un-reversed completion
	// was found and nothing was deducted.
	Reason outcome.Reason
}

// StatsStore persists UserStats under KeyUserStats. Every read-modify-write
// holds the store's mutex so concurrent callers cannot lose updates.
type StatsStore struct {
	kv           KV
	engine       *rank.Engine
	ledger       *Ledger
	reversalRate float64

	// Now is the clock; tests replace it.
	Now func() time.Time

	mu sync.Mutex
}

func NewStatsStore(kv KV, engine *rank.Engine, ledger *Ledger, reversalRate float64) *StatsStore {
	if reversalRate <= 0 || reversalRate > 1 {
		reversalRate = DefaultReversalRate
	}
	return &StatsStore{
		kv:           kv,
		engine:       engine,
		ledger:       ledger,
		reversalRate: reversalRate,
		Now:          time.Now,
	}
}

// Engine exposes the rank engine the store derives ranks with.
func (s *StatsStore) Engine() *rank.Engine {
	return s.engine
}

// Ledger exposes the activity ledger the store appends to.
func (s *StatsStore) Ledger() *Ledger {
	return s.ledger
}

// Get returns userID's stats, creating a zero record on first read. A
// failed or corrupt read is recovered with defaults and nothing is written.
func (s *StatsStore) Get(userID string) outcome.Result[UserStats] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID)
}

// Update merges p into the persisted record and returns the result.
func (s *StatsStore) Update(userID string, p Patch) (UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(userID, p)
}

// LogActivity awards the tiered XP for a, grants a rank-up bonus when the
// award crosses into a new rank, and appends both to the ledger.
func (s *StatsStore) LogActivity(userID string, a Activity) (LogResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logActivityLocked(userID, a)
}

func (s *StatsStore) logActivityLocked(userID string, a Activity) (LogResult, error) {
	cur, err := s.readLocked(userID)
	if err != nil {
		return LogResult{}, err
	}
	before := s.engine.RankFor(cur.TotalXP)
	reward := s.engine.XPReward(before.Tier, string(a.Type))

	p := Patch{TotalXP: ptr(cur.TotalXP + reward)}
	switch {
	case a.Type.IsTaskCompletion():
		p.TasksCompleted = ptr(cur.TasksCompleted + 1)
	case a.Type.IsSessionCompletion():
		p.TotalSessions = ptr(cur.TotalSessions + 1)
		if a.FocusSeconds > 0 {
			p.TotalFocusTimeSeconds = ptr(cur.TotalFocusTimeSeconds + a.FocusSeconds)
		}
	}
	st, err := s.updateLocked(userID, p)
	if err != nil {
		return LogResult{}, err
	}

	now := s.Now()
	after := s.engine.RankFor(st.TotalXP)
	res := LogResult{XPReward: reward, RankBefore: before, RankAfter: after}
	events := []ActivityEvent{s.newEvent(userID, now, a.Type, reward, a.TaskID, a.SessionType, describe(a))}

	if after.Name != before.Name {
		res.RankUp = true
		res.Bonus = s.engine.RankUpBonus(after)
		if res.Bonus > 0 {
			st, err = s.updateLocked(userID, Patch{TotalXP: ptr(st.TotalXP + res.Bonus)})
			if err != nil {
				return LogResult{}, err
			}
		}
		events = append(events, s.newEvent(userID, now, RankUp, res.Bonus, "", "", "Reached "+after.Name))
		slog.Info("rank up", "user_id", userID, "from", before.Name, "to", after.Name, "bonus", res.Bonus)
	}

	if err := s.ledger.Append(events...); err != nil {
		return LogResult{}, err
	}
	res.Activity = events[0]
	res.Stats = st
	return res, nil
}

// ReverseActivity takes back ReversalRate of the newest completion logged
// for taskID, never driving TotalXP below zero. A missing or already
// reversed completion deducts nothing.
func (s *StatsStore) ReverseActivity(userID, taskID string) (ReverseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.readLocked(userID)
	if err != nil {
		return ReverseResult{}, err
	}
	var res ReverseResult
	p := Patch{}

	found, ok, err := s.ledger.findLatestForTask(userID, taskID)
	if err != nil {
		return ReverseResult{}, err
	}
	if ok && found.Type.IsTaskCompletion() {
		deduct := int(math.Floor(float64(found.Points) * s.reversalRate))
		next := cur.TotalXP - deduct
		if next < 0 {
			next = 0
		}
		res.Deducted = cur.TotalXP - next
		p.TotalXP = ptr(next)
		if cur.TasksCompleted > 0 {
			p.TasksCompleted = ptr(cur.TasksCompleted - 1)
		}
	} else {
		res.Reason = outcome.MissingReference
		slog.Warn("no completion to reverse", "user_id", userID, "task_id", taskID)
	}

	st, err := s.updateLocked(userID, p)
	if err != nil {
		return ReverseResult{}, err
	}
	ev := s.newEvent(userID, s.Now(), TaskUncompleted, -res.Deducted, taskID, "", "Un-completed a task")
	if err := s.ledger.Append(ev); err != nil {
		return ReverseResult{}, err
	}
	res.Stats = st
	res.Activity = ev
	return res, nil
}

func (s *StatsStore) getLocked(userID string) outcome.Result[UserStats] {
	all, err := s.loadAll()
	if err != nil {
		return outcome.Recovered(s.derive(s.defaultStats(userID)), outcome.CorruptState, err)
	}
	rec, ok := all.Value[userID]
	if !ok {
		rec = s.defaultStats(userID)
		if !all.IsRecovered() {
			all.Value[userID] = rec
			if err := s.saveAll(all.Value); err != nil {
				slog.Warn("persist new user stats", "user_id", userID, "error", err)
			}
		}
	}
	rec = s.derive(sanitize(rec))
	if all.IsRecovered() {
		return outcome.Recovered(rec, all.Reason, all.Cause)
	}
	return outcome.Ok(rec)
}

// readLocked is the current record for a read-modify-write. Unlike
// getLocked it fails when the store cannot be read.
func (s *StatsStore) readLocked(userID string) (UserStats, error) {
	all, err := s.loadAll()
	if err != nil {
		return UserStats{}, err
	}
	rec, ok := all.Value[userID]
	if !ok {
		rec = s.defaultStats(userID)
	}
	return s.derive(sanitize(rec)), nil
}

func (s *StatsStore) updateLocked(userID string, p Patch) (UserStats, error) {
	loaded, err := s.loadAll()
	if err != nil {
		return UserStats{}, err
	}
	all := loaded.Value
	rec, ok := all[userID]
	if !ok {
		rec = s.defaultStats(userID)
	}

	if p.TotalXP != nil {
		rec.TotalXP = *p.TotalXP
	}
	if p.StreakCount != nil {
		rec.StreakCount = *p.StreakCount
	}
	if p.LastCompletionDate != nil {
		t := *p.LastCompletionDate
		rec.LastCompletionDate = &t
	}
	if p.TotalFocusTimeSeconds != nil {
		rec.TotalFocusTimeSeconds = *p.TotalFocusTimeSeconds
	}
	if p.TotalSessions != nil {
		rec.TotalSessions = *p.TotalSessions
	}
	if p.TasksCompleted != nil {
		rec.TasksCompleted = *p.TasksCompleted
	}
	rec.LastActiveAt = s.Now()
	rec = s.derive(sanitize(rec))

	all[userID] = rec
	if err := s.saveAll(all); err != nil {
		return UserStats{}, err
	}
	return rec, nil
}

// loadAll returns an error only when the store could not be read. A blob
// that is not valid JSON is recovered as empty.
func (s *StatsStore) loadAll() (outcome.Result[map[string]UserStats], error) {
	raw, ok, err := s.kv.Get(KeyUserStats)
	if err != nil {
		slog.Warn("user stats unreadable", "key", KeyUserStats, "error", err)
		return outcome.Result[map[string]UserStats]{}, fmt.Errorf("read user stats: %w", err)
	}
	if !ok || raw == "" {
		return outcome.Ok(map[string]UserStats{}), nil
	}

	all := map[string]UserStats{}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		slog.Warn("user stats corrupt, using defaults", "key", KeyUserStats, "error", err)
		return outcome.Recovered(map[string]UserStats{}, outcome.CorruptState, err), nil
	}
	if all == nil {
		all = map[string]UserStats{}
	}
	return outcome.Ok(all), nil
}

func (s *StatsStore) saveAll(all map[string]UserStats) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode user stats: %w", err)
	}
	if err := s.kv.Set(KeyUserStats, string(data)); err != nil {
		return fmt.Errorf("save user stats: %w", err)
	}
	return nil
}

func (s *StatsStore) defaultStats(userID string) UserStats {
	now := s.Now()
	return UserStats{UserID: userID, JoinDate: now, LastActiveAt: now}
}

func (s *StatsStore) derive(st UserStats) UserStats {
	r := s.engine.RankFor(st.TotalXP)
	st.Rank, st.Tier, st.Level = r.Name, r.Tier, r.Level
	return st
}

func (s *StatsStore) newEvent(userID string, at time.Time, t ActivityType, points int, taskID, sessionType, desc string) ActivityEvent {
	return ActivityEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        t,
		Timestamp:   at,
		Date:        at.Format("2006-01-02"),
		Points:      points,
		TaskID:      taskID,
		SessionType: sessionType,
		Description: desc,
	}
}

// sanitize clamps counters that an edited blob may have driven negative.
func sanitize(st UserStats) UserStats {
	if st.TotalXP < 0 {
		st.TotalXP = 0
	}
	if st.StreakCount < 0 {
		st.StreakCount = 0
	}
	if st.TotalFocusTimeSeconds < 0 {
		st.TotalFocusTimeSeconds = 0
	}
	if st.TotalSessions < 0 {
		st.TotalSessions = 0
	}
	if st.TasksCompleted < 0 {
		st.TasksCompleted = 0
	}
	return st
}

func ptr[T any](v T) *T {
	return &v
}
