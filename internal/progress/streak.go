package progress

import "time"

// StreakResult reports a Touch. Reward is set when the touch was the first
// completion of its calendar day.
type StreakResult struct {
	Stats    UserStats
	Previous int
	Streak   int
	Reward   *LogResult
}

// StreakTracker counts consecutive calendar days with a completion.
type StreakTracker struct {
	stats *StatsStore
}

func NewStreakTracker(stats *StatsStore) *StreakTracker {
	return &StreakTracker{stats: stats}
}

// Touch records a completion now. Days are compared in the clock's
// location: same day keeps the streak, yesterday extends it, anything
// older (or no prior completion) starts over at 1. The first touch of a
// day also logs a daily_streak reward.
func (t *StreakTracker) Touch(userID string) (StreakResult, error) {
	s := t.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	cur, err := s.readLocked(userID)
	if err != nil {
		return StreakResult{}, err
	}
	next, firstToday := nextStreak(cur.StreakCount, cur.LastCompletionDate, now)

	st, err := s.updateLocked(userID, Patch{StreakCount: ptr(next), LastCompletionDate: &now})
	if err != nil {
		return StreakResult{}, err
	}
	res := StreakResult{Stats: st, Previous: cur.StreakCount, Streak: next}

	if firstToday {
		reward, err := s.logActivityLocked(userID, Activity{Type: DailyStreak})
		if err != nil {
			return StreakResult{}, err
		}
		res.Reward = &reward
		res.Stats = reward.Stats
	}
	return res, nil
}

func nextStreak(streak int, last *time.Time, now time.Time) (int, bool) {
	if last == nil {
		return 1, true
	}
	today := calendarDay(now)
	lastDay := calendarDay(last.In(now.Location()))

	switch {
	case !lastDay.Before(today):
		if streak < 1 {
			streak = 1
		}
		return streak, false
	case lastDay.Equal(today.AddDate(0, 0, -1)):
		return streak + 1, true
	default:
		return 1, true
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
