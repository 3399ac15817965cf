package pomodoro

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/priyanshu00007/moment/internal/outcome"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// short durations keep the cycle tests small
var quick = Durations{Work: 3, ShortBreak: 2, LongBreak: 4, Grace: 1, CycleLength: 4}

func countKind(effects []Effect, k EffectKind) int {
	n := 0
	for _, e := range effects {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// ============================================================
// Grace period and focus lock
// ============================================================

func TestStartOpensGracePeriod(t *testing.T) {
	d := DefaultDurations()
	s := Start(NewState(d), d)

	if !s.Running || !s.GracePeriodActive || s.GraceRemaining != 10 {
		t.Fatalf("unexpected state after start: %+v", s)
	}
	if s.Locked() {
		t.Fatal("should not be locked during grace")
	}
}

func TestGraceExpiresAfterTenTicks(t *testing.T) {
	d := DefaultDurations()
	s := Start(NewState(d), d)

	s, effects := Advance(s, d, 9)
	if !s.GracePeriodActive || s.GraceRemaining != 1 || len(effects) != 0 {
		t.Fatalf("grace should still be active: %+v %v", s, effects)
	}
	s, effects = Tick(s, d)
	if s.GracePeriodActive || s.GraceRemaining != 0 {
		t.Fatalf("grace should be over: %+v", s)
	}
	if countKind(effects, GraceExpired) != 1 {
		t.Fatalf("expected one GraceExpired, got %v", effects)
	}
	if s.TimeLeft != 1490 {
		t.Fatalf("expected 1490 left, got %d", s.TimeLeft)
	}
	if !s.Locked() {
		t.Fatal("expected focus lock")
	}
}

func TestResetAllowedDuringGrace(t *testing.T) {
	d := DefaultDurations()
	s, _ := Advance(Start(NewState(d), d), d, 5)

	s, effects := Reset(s, d)
	if countKind(effects, Rejected) != 0 {
		t.Fatal("reset during grace should be allowed")
	}
	if s.TimeLeft != 1500 {
		t.Fatalf("expected refill to 1500, got %d", s.TimeLeft)
	}
}

func TestResetAndStopRejectedUnderLock(t *testing.T) {
	d := DefaultDurations()
	s, _ := Advance(Start(NewState(d), d), d, 12)

	after, effects := Reset(s, d)
	if countKind(effects, Rejected) != 1 || after != s {
		t.Fatalf("reset under lock should be rejected and leave state alone: %v", effects)
	}
	after, effects = Stop(s, testNow)
	if countKind(effects, Rejected) != 1 || after.LastStoppedAt != nil {
		t.Fatalf("stop under lock should be rejected: %v", effects)
	}
}

func TestPauseAlwaysAllowed(t *testing.T) {
	d := DefaultDurations()
	s, _ := Advance(Start(NewState(d), d), d, 30)

	s = Pause(s)
	if s.Running || s.GracePeriodActive {
		t.Fatalf("pause should stop everything: %+v", s)
	}
	s, effects := Reset(s, d)
	if countKind(effects, Rejected) != 0 || s.TimeLeft != 1500 {
		t.Fatalf("reset after pause should be allowed: %+v %v", s, effects)
	}
}

func TestStopStampsTime(t *testing.T) {
	d := DefaultDurations()
	s := Start(NewState(d), d)

	s, effects := Stop(s, testNow)
	if countKind(effects, Exit) != 1 {
		t.Fatalf("expected Exit, got %v", effects)
	}
	if s.Running || s.LastStoppedAt == nil || !s.LastStoppedAt.Equal(testNow) {
		t.Fatalf("unexpected state after stop: %+v", s)
	}
}

func TestZeroGraceLocksImmediately(t *testing.T) {
	d := DefaultDurations()
	d.Grace = 0
	s := Start(NewState(d), d)
	if s.GracePeriodActive || !s.Locked() {
		t.Fatalf("expected immediate lock: %+v", s)
	}
}

// ============================================================
// Phases and cycles
// ============================================================

func TestWorkCompletesIntoShortBreak(t *testing.T) {
	d := DefaultDurations()
	s, effects := Advance(Start(NewState(d), d), d, 1500)

	if s.Phase != ShortBreak || s.Running || s.TimeLeft != 300 {
		t.Fatalf("unexpected state: %+v", s)
	}
	if s.CompletedWorkPeriods != 1 || s.SessionOrdinal != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	var done *Effect
	for i := range effects {
		if effects[i].Kind == PhaseCompleted {
			done = &effects[i]
		}
	}
	if done == nil || done.From != Work || done.To != ShortBreak || done.Seconds != 1500 {
		t.Fatalf("unexpected completion effect: %+v", done)
	}
}

func TestFullCycle(t *testing.T) {
	s := NewState(quick)
	var all []Effect
	run := func() {
		var e []Effect
		s, e = Advance(Start(s, quick), quick, 100)
		all = append(all, e...)
	}

	for i := 1; i <= 3; i++ {
		run()
		if s.Phase != ShortBreak || s.CompletedWorkPeriods != i {
			t.Fatalf("work %d: unexpected state %+v", i, s)
		}
		run()
		if s.Phase != Work || s.SessionOrdinal != i+1 {
			t.Fatalf("break %d: unexpected state %+v", i, s)
		}
	}
	if countKind(all, CycleComplete) != 0 {
		t.Fatal("cycle completed too early")
	}

	run()
	if s.Phase != LongBreak || s.Running || s.CompletedWorkPeriods != 4 {
		t.Fatalf("after fourth work: %+v", s)
	}
	if countKind(all, CycleComplete) != 1 {
		t.Fatalf("expected exactly one CycleComplete, got %d", countKind(all, CycleComplete))
	}

	run()
	if s.Phase != Work || s.CompletedWorkPeriods != 0 || s.SessionOrdinal != 5 {
		t.Fatalf("after long break: %+v", s)
	}
	if countKind(all, CycleComplete) != 1 {
		t.Fatal("long break should not fire CycleComplete")
	}
}

func TestStartAtZeroRefills(t *testing.T) {
	d := DefaultDurations()
	s := NewState(d)
	s.TimeLeft = 0

	s = Start(s, d)
	if s.TimeLeft != 1500 || !s.Running {
		t.Fatalf("expected refilled running state: %+v", s)
	}
	if s.CompletedWorkPeriods != 0 {
		t.Fatal("refill must not count a completion")
	}
}

func TestSkip(t *testing.T) {
	d := DefaultDurations()
	if _, effects := Skip(NewState(d), d); countKind(effects, Rejected) != 1 {
		t.Fatal("skipping work should be rejected")
	}

	s, _ := Advance(Start(NewState(d), d), d, 1500)
	s, effects := Skip(s, d)
	if countKind(effects, PhaseCompleted) != 1 || s.Phase != Work || s.SessionOrdinal != 2 {
		t.Fatalf("unexpected skip result: %+v %v", s, effects)
	}
}

func TestNewCycle(t *testing.T) {
	s := NewState(quick)
	s.Phase = LongBreak
	s.CompletedWorkPeriods = 4
	s.SessionOrdinal = 4

	s = NewCycle(s, quick)
	if s.Phase != Work || s.CompletedWorkPeriods != 0 || s.SessionOrdinal != 5 || s.TimeLeft != 3 {
		t.Fatalf("unexpected new cycle: %+v", s)
	}
}

func TestStartedSurvivesResetUntilComplete(t *testing.T) {
	s := Start(NewState(quick), quick)
	if !s.Started {
		t.Fatal("start should mark the phase started")
	}
	s = Pause(s)
	s, _ = Reset(s, quick)
	if !s.Started || s.TimeLeft != quick.Work {
		t.Fatalf("reset should refill but keep the phase started: %+v", s)
	}

	s, _ = Advance(Start(s, quick), quick, quick.Work)
	if s.Phase != ShortBreak || s.Started {
		t.Fatalf("completion should clear started for the next phase: %+v", s)
	}
}

func TestTickWhenStopped(t *testing.T) {
	d := DefaultDurations()
	s := NewState(d)
	next, effects := Tick(s, d)
	if next != s || effects != nil {
		t.Fatal("tick on a stopped timer should be a no-op")
	}
}

// ============================================================
// Rehydration
// ============================================================

func TestRehydrateChargesElapsed(t *testing.T) {
	d := DefaultDurations()
	stopped := testNow.Add(-90*time.Second - 700*time.Millisecond)
	s := NewState(d)
	s.TimeLeft = 600
	s.LastStoppedAt = &stopped

	res := Rehydrate(s, d, testNow)
	if res.IsRecovered() {
		t.Fatalf("unexpected recovery: %v", res.Reason)
	}
	if res.Value.TimeLeft != 510 {
		t.Fatalf("expected 510 left, got %d", res.Value.TimeLeft)
	}
	if res.Value.LastStoppedAt != nil || res.Value.Running {
		t.Fatalf("expected cleared stamp and stopped timer: %+v", res.Value)
	}
}

func TestRehydrateExpired(t *testing.T) {
	d := DefaultDurations()
	stopped := testNow.Add(-45 * time.Second)
	s := NewState(d)
	s.TimeLeft = 30
	s.LastStoppedAt = &stopped

	res := Rehydrate(s, d, testNow)
	if res.Reason != outcome.Expired || res.Value.TimeLeft != 0 {
		t.Fatalf("expected expired at zero, got %v %d", res.Reason, res.Value.TimeLeft)
	}
	if res.Value.CompletedWorkPeriods != 0 {
		t.Fatal("expired completion should be forfeited")
	}
	if next := Start(res.Value, d); next.TimeLeft != 1500 {
		t.Fatalf("start after expiry should refill, got %d", next.TimeLeft)
	}
}

func TestRehydrateClockSkew(t *testing.T) {
	d := DefaultDurations()
	future := testNow.Add(time.Hour)
	s := NewState(d)
	s.LastStoppedAt = &future

	res := Rehydrate(s, d, testNow)
	if res.Value.TimeLeft != 1500 {
		t.Fatalf("future stamp should charge nothing, got %d", res.Value.TimeLeft)
	}
}

func TestRehydrateClampsCompletedPeriods(t *testing.T) {
	d := DefaultDurations()
	d.CycleLength = 2
	s := State{Phase: Work, TimeLeft: 700, CompletedWorkPeriods: 3, SessionOrdinal: 4}

	res := Rehydrate(s, d, testNow)
	if res.IsRecovered() {
		t.Fatalf("a shorter cycle should not discard the session: %v", res.Reason)
	}
	v := res.Value
	if v.CompletedWorkPeriods != 2 || v.SessionOrdinal != 4 || v.TimeLeft != 700 {
		t.Fatalf("unexpected restored state: %+v", v)
	}
}

func TestRehydrateInvalidState(t *testing.T) {
	d := DefaultDurations()
	tests := []struct {
		name  string
		state State
	}{
		{"unknown phase", State{Phase: "nap", TimeLeft: 10, SessionOrdinal: 1}},
		{"negative time", State{Phase: Work, TimeLeft: -5, SessionOrdinal: 1}},
		{"negative periods", State{Phase: Work, TimeLeft: 10, CompletedWorkPeriods: -1, SessionOrdinal: 1}},
		{"zero ordinal", State{Phase: Work, TimeLeft: 10}},
		{"grace while stopped", State{Phase: Work, TimeLeft: 10, SessionOrdinal: 1, GracePeriodActive: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rehydrate(tt.state, d, testNow)
			if res.Reason != outcome.CorruptState {
				t.Fatalf("expected CorruptState, got %q", res.Reason)
			}
			if res.Value != NewState(d) {
				t.Fatalf("expected fresh state, got %+v", res.Value)
			}
		})
	}
}

// ============================================================
// Timer
// ============================================================

func openAt(t *testing.T, kv KV, at *time.Time) *Timer {
	t.Helper()
	tm, res := Open(kv, DefaultDurations(), func() time.Time { return *at })
	if res.IsRecovered() {
		t.Fatalf("unexpected recovery: %v", res.Reason)
	}
	return tm
}

func TestTimerFreshSessionPersisted(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)

	if tm.State() != NewState(DefaultDurations()) {
		t.Fatalf("unexpected fresh state: %+v", tm.State())
	}
	if _, ok, _ := kv.Get(StateKey); !ok {
		t.Fatal("expected session to be persisted on open")
	}
}

func TestTimerRoundTrip(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)
	tm.Start()
	for i := 0; i < 42; i++ {
		tm.Tick()
	}
	tm.Pause()

	again := openAt(t, kv, &now)
	if again.State().TimeLeft != 1458 {
		t.Fatalf("expected 1458 after round trip, got %d", again.State().TimeLeft)
	}
}

func TestTimerCloseChargesAway(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)
	tm.Start()
	if err := tm.Close(); err != nil {
		t.Fatal(err)
	}

	now = testNow.Add(5 * time.Second)
	again := openAt(t, kv, &now)
	st := again.State()
	if st.TimeLeft != 1495 || st.Running {
		t.Fatalf("expected 1495 stopped, got %+v", st)
	}
}

func TestTimerExpiredWhileAway(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)
	tm.Start()
	tm.Close()

	now = testNow.Add(time.Hour)
	again, res := Open(kv, DefaultDurations(), func() time.Time { return now })
	if res.Reason != outcome.Expired {
		t.Fatalf("expected Expired, got %q", res.Reason)
	}
	if again.State().TimeLeft != 0 {
		t.Fatalf("expected zero left, got %d", again.State().TimeLeft)
	}
}

func TestTimerCorruptBlob(t *testing.T) {
	kv := newMemKV()
	kv.Set(StateKey, "{nope")

	tm, res := Open(kv, DefaultDurations(), func() time.Time { return testNow })
	if res.Reason != outcome.CorruptState {
		t.Fatalf("expected CorruptState, got %q", res.Reason)
	}
	if tm.State() != NewState(DefaultDurations()) {
		t.Fatalf("expected fresh state, got %+v", tm.State())
	}
	raw, _, _ := kv.Get(StateKey)
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("corrupt blob should have been replaced: %v", err)
	}
}

func TestTimerResetStopGuards(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)
	tm.Start()
	if !tm.Reset() {
		t.Fatal("reset during grace should pass")
	}
	for i := 0; i < 11; i++ {
		tm.Tick()
	}
	if tm.Reset() || tm.Stop() {
		t.Fatal("reset and stop should be rejected under lock")
	}
	tm.Pause()
	if !tm.Stop() {
		t.Fatal("stop after pause should pass")
	}
}

func TestTimerSetDurationsRefillsUnstarted(t *testing.T) {
	kv := newMemKV()
	now := testNow
	tm := openAt(t, kv, &now)

	tm.SetDurations(Durations{Work: 600, ShortBreak: 60, LongBreak: 120, Grace: 5, CycleLength: 2})
	if tm.State().TimeLeft != 600 {
		t.Fatalf("expected refill to 600, got %d", tm.State().TimeLeft)
	}
}

func TestTimerSetDurationsCapsCompletedPeriods(t *testing.T) {
	kv := newMemKV()
	tm, _ := Open(kv, quick, func() time.Time { return testNow })
	for i := 0; i < 3; i++ {
		tm.Start()
		for tm.State().Running {
			tm.Tick()
		}
		tm.Start()
		for tm.State().Running {
			tm.Tick()
		}
	}
	if tm.State().CompletedWorkPeriods != 3 {
		t.Fatalf("expected 3 completed periods, got %d", tm.State().CompletedWorkPeriods)
	}

	shorter := quick
	shorter.CycleLength = 2
	tm.SetDurations(shorter)
	if tm.State().CompletedWorkPeriods != 2 {
		t.Fatalf("expected periods capped at 2, got %d", tm.State().CompletedWorkPeriods)
	}

	reopened, res := Open(kv, shorter, func() time.Time { return testNow })
	if res.IsRecovered() || reopened.State().SessionOrdinal != tm.State().SessionOrdinal {
		t.Fatalf("reopen should keep the session: %v %+v", res.Reason, reopened.State())
	}
}

func TestTimerRun(t *testing.T) {
	kv := newMemKV()
	d := Durations{Work: 2, ShortBreak: 1, LongBreak: 1, Grace: 0, CycleLength: 4}
	tm, _ := Open(kv, d, func() time.Time { return testNow })
	tm.Start()

	ticks := make(chan time.Time, 3)
	ticks <- testNow
	ticks <- testNow
	ticks <- testNow
	close(ticks)

	var got []Effect
	err := tm.Run(context.Background(), ticks, func(e []Effect) { got = append(got, e...) })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if countKind(got, PhaseCompleted) != 1 {
		t.Fatalf("expected one completion, got %v", got)
	}
	if tm.State().Phase != ShortBreak {
		t.Fatalf("expected short break, got %s", tm.State().Phase)
	}
}

func TestTimerRunCancel(t *testing.T) {
	tm, _ := Open(newMemKV(), DefaultDurations(), func() time.Time { return testNow })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tm.Run(ctx, make(chan time.Time), nil); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
