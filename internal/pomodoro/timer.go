package pomodoro

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/priyanshu00007/moment/internal/outcome"
)

// StateKey is the KV key the session is persisted under.
const StateKey = "pomodoroSession"

// KV is the persistence port the timer writes through.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Timer owns one session. Every transition is persisted before it returns.
type Timer struct {
	kv  KV
	now func() time.Time

	mu    sync.Mutex
	d     Durations
	state State
}

// Open restores the persisted session and rehydrates it at now(). The
// result reports whether the restore had to recover.
func Open(kv KV, d Durations, now func() time.Time) (*Timer, outcome.Result[State]) {
	if now == nil {
		now = time.Now
	}
	t := &Timer{kv: kv, now: now, d: d.Normalize()}

	res := t.load()
	if !res.IsRecovered() {
		res = Rehydrate(res.Value, t.d, now())
	}
	if res.IsRecovered() {
		slog.Warn("pomodoro session restored with recovery", "reason", res.Reason, "error", res.Cause)
	}
	t.state = res.Value
	t.persist()
	return t, res
}

func (t *Timer) load() outcome.Result[State] {
	raw, ok, err := t.kv.Get(StateKey)
	if err != nil {
		return outcome.Recovered(NewState(t.d), outcome.CorruptState, err)
	}
	if !ok || raw == "" {
		return outcome.Ok(NewState(t.d))
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return outcome.Recovered(NewState(t.d), outcome.CorruptState, err)
	}
	return outcome.Ok(s)
}

// persist is called with mu held or before the timer is shared.
func (t *Timer) persist() {
	data, err := json.Marshal(t.state)
	if err != nil {
		slog.Error("encode pomodoro session", "error", err)
		return
	}
	if err := t.kv.Set(StateKey, string(data)); err != nil {
		slog.Warn("persist pomodoro session", "error", err)
	}
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Durations() Durations {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.d
}

// SetDurations swaps the phase lengths. A stopped phase that has not been
// started yet is refilled with the new length, and the completed work
// periods are capped at the new cycle length.
func (t *Timer) SetDurations(d Durations) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d = d.Normalize()
	if !t.state.Running && t.state.TimeLeft == t.d.For(t.state.Phase) {
		t.state.TimeLeft = d.For(t.state.Phase)
	}
	t.state.CompletedWorkPeriods = min(t.state.CompletedWorkPeriods, d.CycleLength)
	t.d = d
	t.persist()
}

func (t *Timer) apply(fn func(State, Durations) (State, []Effect)) []Effect {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, effects := fn(t.state, t.d)
	t.state = next
	t.persist()
	return effects
}

func (t *Timer) Toggle() {
	t.apply(func(s State, d Durations) (State, []Effect) { return Toggle(s, d), nil })
}

func (t *Timer) Start() {
	t.apply(func(s State, d Durations) (State, []Effect) { return Start(s, d), nil })
}

func (t *Timer) Pause() {
	t.apply(func(s State, _ Durations) (State, []Effect) { return Pause(s), nil })
}

// Reset reports false when the focus lock rejected it.
func (t *Timer) Reset() bool {
	return !rejected(t.apply(Reset))
}

// Stop reports false when the focus lock rejected it.
func (t *Timer) Stop() bool {
	return !rejected(t.apply(func(s State, _ Durations) (State, []Effect) { return Stop(s, t.now()) }))
}

// Skip ends a break early and returns the completion effects, or nil when
// rejected.
func (t *Timer) Skip() []Effect {
	effects := t.apply(Skip)
	if rejected(effects) {
		return nil
	}
	return effects
}

func (t *Timer) NewCycle() {
	t.apply(func(s State, d Durations) (State, []Effect) { return NewCycle(s, d), nil })
}

func (t *Timer) Tick() []Effect {
	return t.apply(Tick)
}

// Close stamps a running session so the next Open charges the time spent
// away. Unlike Stop it ignores the focus lock.
func (t *Timer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Running {
		now := t.now()
		t.state = Pause(t.state)
		t.state.LastStoppedAt = &now
	}
	data, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("encode pomodoro session: %w", err)
	}
	if err := t.kv.Set(StateKey, string(data)); err != nil {
		return fmt.Errorf("persist pomodoro session: %w", err)
	}
	return nil
}

// Run ticks the timer once per value received on ticks and hands non-empty
// effect batches to sink. It returns when ctx is done or ticks is closed.
func (t *Timer) Run(ctx context.Context, ticks <-chan time.Time, sink func([]Effect)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if effects := t.Tick(); len(effects) > 0 && sink != nil {
				sink(effects)
			}
		}
	}
}

func rejected(effects []Effect) bool {
	for _, e := range effects {
		if e.Kind == Rejected {
			return true
		}
	}
	return false
}
