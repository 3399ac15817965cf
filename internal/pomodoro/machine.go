// Package pomodoro implements the focus session state machine: work and
// break phases, the 1 Hz countdown and the grace period after Start during
// which Reset and Stop stay allowed.
//
// Transitions are pure functions of (State, Durations) that return the next
// state plus the effects the caller must apply. Timer wraps them with
// persistence.
package pomodoro

import (
	"fmt"
	"time"

	"github.com/priyanshu00007/moment/internal/outcome"
)

type Phase string

const (
	Work       Phase = "work"
	ShortBreak Phase = "short_break"
	LongBreak  Phase = "long_break"
)

func (p Phase) String() string {
	switch p {
	case Work:
		return "WORK"
	case ShortBreak:
		return "SHORT BREAK"
	case LongBreak:
		return "LONG BREAK"
	}
	return string(p)
}

func (p Phase) IsBreak() bool {
	return p == ShortBreak || p == LongBreak
}

// Durations are in seconds. CycleLength is the number of work periods
// before the long break.
type Durations struct {
	Work        int `json:"work"`
	ShortBreak  int `json:"shortBreak"`
	LongBreak   int `json:"longBreak"`
	Grace       int `json:"grace"`
	CycleLength int `json:"cycleLength"`
}

func DefaultDurations() Durations {
	return Durations{Work: 1500, ShortBreak: 300, LongBreak: 900, Grace: 10, CycleLength: 4}
}

// Normalize replaces non-positive fields with the defaults. Grace may be 0.
func (d Durations) Normalize() Durations {
	def := DefaultDurations()
	if d.Work <= 0 {
		d.Work = def.Work
	}
	if d.ShortBreak <= 0 {
		d.ShortBreak = def.ShortBreak
	}
	if d.LongBreak <= 0 {
		d.LongBreak = def.LongBreak
	}
	if d.Grace < 0 {
		d.Grace = def.Grace
	}
	if d.CycleLength <= 0 {
		d.CycleLength = def.CycleLength
	}
	return d
}

// For returns the full length of phase p.
func (d Durations) For(p Phase) int {
	switch p {
	case ShortBreak:
		return d.ShortBreak
	case LongBreak:
		return d.LongBreak
	}
	return d.Work
}

// State is the persisted session. GracePeriodActive implies Running.
type State struct {
	Phase                Phase      `json:"phase"`
	TimeLeft             int        `json:"timeLeftSeconds"`
	CompletedWorkPeriods int        `json:"completedWorkPeriods"`
	SessionOrdinal       int        `json:"sessionOrdinal"`
	Running              bool       `json:"running"`
	GracePeriodActive    bool       `json:"gracePeriodActive"`
	GraceRemaining       int        `json:"gracePeriodRemaining"`
	LastStoppedAt        *time.Time `json:"lastStoppedAt,omitempty"`
	// Started is set by the first Start of a phase and cleared when the
	// phase completes. Reset keeps it.
	Started bool `json:"started,omitempty"`
}

// NewState is a fresh session at the start of a work phase.
func NewState(d Durations) State {
	return State{Phase: Work, TimeLeft: d.For(Work), SessionOrdinal: 1}
}

// Locked reports the focus lock: running with the grace period over.
func (s State) Locked() bool {
	return s.Running && !s.GracePeriodActive
}

// CanReset is the guard shared by Reset, Stop and Skip.
func (s State) CanReset() bool {
	return !s.Running || s.GracePeriodActive
}

type EffectKind string

const (
	GraceExpired   EffectKind = "grace_expired"
	PhaseCompleted EffectKind = "phase_completed"
	CycleComplete  EffectKind = "cycle_complete"
	Exit           EffectKind = "exit"
	Rejected       EffectKind = "rejected"
)

// Effect is a side effect requested by a transition. For PhaseCompleted,
// From is the finished phase and Seconds its full length.
type Effect struct {
	Kind                 EffectKind
	From                 Phase
	To                   Phase
	Seconds              int
	CompletedWorkPeriods int
	SessionOrdinal       int
}

// Start begins or resumes the countdown and opens the grace period. A
// countdown already at zero is refilled without firing completion.
func Start(s State, d Durations) State {
	if s.Running {
		return s
	}
	if s.TimeLeft <= 0 {
		s.TimeLeft = d.For(s.Phase)
	}
	s.Running = true
	s.Started = true
	s.GracePeriodActive = d.Grace > 0
	s.GraceRemaining = d.Grace
	s.LastStoppedAt = nil
	return s
}

// Pause stops the countdown and ends any grace period. Always allowed.
func Pause(s State) State {
	s.Running = false
	s.GracePeriodActive = false
	s.GraceRemaining = 0
	return s
}

// Toggle is the play button: Start when stopped, Pause when running.
func Toggle(s State, d Durations) State {
	if s.Running {
		return Pause(s)
	}
	return Start(s, d)
}

// Reset refills the current phase. Rejected under the focus lock.
func Reset(s State, d Durations) (State, []Effect) {
	if !s.CanReset() {
		return s, []Effect{{Kind: Rejected, From: s.Phase}}
	}
	s.TimeLeft = d.For(s.Phase)
	return s, nil
}

// Stop ends the visit: the countdown keeps its value and is stamped with
// the stop time so Rehydrate can charge the time spent away. Rejected
// under the focus lock.
func Stop(s State, now time.Time) (State, []Effect) {
	if !s.CanReset() {
		return s, []Effect{{Kind: Rejected, From: s.Phase}}
	}
	s = Pause(s)
	s.LastStoppedAt = &now
	return s, []Effect{{Kind: Exit, From: s.Phase}}
}

// Skip ends a break early. Work phases cannot be skipped.
func Skip(s State, d Durations) (State, []Effect) {
	if !s.Phase.IsBreak() || !s.CanReset() {
		return s, []Effect{{Kind: Rejected, From: s.Phase}}
	}
	return complete(s, d)
}

// NewCycle starts the next cycle at a fresh work phase.
func NewCycle(s State, d Durations) State {
	ordinal := s.SessionOrdinal + 1
	s = NewState(d)
	s.SessionOrdinal = ordinal
	return s
}

// Tick advances one second.
func Tick(s State, d Durations) (State, []Effect) {
	if !s.Running {
		return s, nil
	}
	var effects []Effect
	if s.GracePeriodActive {
		s.GraceRemaining--
		if s.GraceRemaining <= 0 {
			s.GraceRemaining = 0
			s.GracePeriodActive = false
			effects = append(effects, Effect{Kind: GraceExpired, From: s.Phase})
		}
	}
	s.TimeLeft--
	if s.TimeLeft <= 0 {
		s.TimeLeft = 0
		var done []Effect
		s, done = complete(s, d)
		effects = append(effects, done...)
	}
	return s, effects
}

// Advance applies up to n ticks, stopping early once the countdown halts.
func Advance(s State, d Durations, n int) (State, []Effect) {
	var effects []Effect
	for i := 0; i < n && s.Running; i++ {
		var e []Effect
		s, e = Tick(s, d)
		effects = append(effects, e...)
	}
	return s, effects
}

// complete finishes the current phase. The next phase always needs an
// explicit Start. The last work period of a cycle fires CycleComplete and
// leads into the long break; completedWorkPeriods resets when that break
// ends.
func complete(s State, d Durations) (State, []Effect) {
	from := s.Phase
	s = Pause(s)
	s.Started = false

	switch from {
	case Work:
		s.CompletedWorkPeriods++
		if s.CompletedWorkPeriods >= d.CycleLength {
			s.Phase = LongBreak
		} else {
			s.Phase = ShortBreak
		}
	case ShortBreak:
		s.Phase = Work
		s.SessionOrdinal++
	case LongBreak:
		s.Phase = Work
		s.SessionOrdinal++
		s.CompletedWorkPeriods = 0
	}
	s.TimeLeft = d.For(s.Phase)

	effects := []Effect{{
		Kind:                 PhaseCompleted,
		From:                 from,
		To:                   s.Phase,
		Seconds:              d.For(from),
		CompletedWorkPeriods: s.CompletedWorkPeriods,
		SessionOrdinal:       s.SessionOrdinal,
	}}
	if from == Work && s.CompletedWorkPeriods >= d.CycleLength {
		effects = append(effects, Effect{
			Kind:                 CycleComplete,
			From:                 from,
			To:                   s.Phase,
			CompletedWorkPeriods: s.CompletedWorkPeriods,
			SessionOrdinal:       s.SessionOrdinal,
		})
	}
	return s, effects
}

// Rehydrate prepares a persisted state for use at now. The countdown is
// charged the whole seconds elapsed since LastStoppedAt, floored at zero;
// a countdown that ran out while away is reported as outcome.Expired and
// its completion is forfeited. Invalid states are replaced by a fresh one.
func Rehydrate(s State, d Durations, now time.Time) outcome.Result[State] {
	if err := validate(s, d); err != nil {
		return outcome.Recovered(NewState(d), outcome.CorruptState, err)
	}
	s = Pause(s)
	s.CompletedWorkPeriods = min(s.CompletedWorkPeriods, d.CycleLength)
	if s.LastStoppedAt == nil {
		return outcome.Ok(s)
	}

	elapsed := int(now.Sub(*s.LastStoppedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	wasRunning := s.TimeLeft > 0
	s.TimeLeft -= elapsed
	if s.TimeLeft < 0 {
		s.TimeLeft = 0
	}
	s.LastStoppedAt = nil
	if wasRunning && s.TimeLeft == 0 {
		return outcome.Recovered(s, outcome.Expired, nil)
	}
	return outcome.Ok(s)
}

func validate(s State, d Durations) error {
	switch s.Phase {
	case Work, ShortBreak, LongBreak:
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	if s.TimeLeft < 0 {
		return fmt.Errorf("negative time left %d", s.TimeLeft)
	}
	if s.CompletedWorkPeriods < 0 {
		return fmt.Errorf("completed work periods %d out of range", s.CompletedWorkPeriods)
	}
	if s.SessionOrdinal < 1 {
		return fmt.Errorf("session ordinal %d below 1", s.SessionOrdinal)
	}
	if s.GracePeriodActive && !s.Running {
		return fmt.Errorf("grace period active while stopped")
	}
	return nil
}
