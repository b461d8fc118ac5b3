// Package timer implements the pomodoro work/break countdown engine.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Phase identifies the current pomodoro phase.
type Phase int

const (
	// PhaseWork is the focus phase.
	PhaseWork Phase = iota
	// PhaseBreak is the rest phase.
	PhaseBreak
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	if p == PhaseBreak {
		return "break"
	}
	return "work"
}

// SettleTicks is the number of ticks the engine holds at zero before
// flipping to the next phase.
const SettleTicks = 3

// ErrInvalidDuration is returned by SetDurations for non-positive values.
var ErrInvalidDuration = errors.New("phase duration must be positive")

// EventType classifies engine events.
type EventType int

const (
	// EventCompleted fires on the tick that reaches zero, once per crossing.
	EventCompleted EventType = iota
	// EventPhaseFlipped fires when the settle window ends and the next
	// phase begins.
	EventPhaseFlipped
)

// Event is delivered to subscribers on phase boundaries.
type Event struct {
	Type  EventType
	State State
}

// State is an immutable snapshot of the engine.
type State struct {
	RemainingSeconds int    `json:"remainingSeconds"`
	Phase            string `json:"phase"`
	CycleCount       int    `json:"cycleCount"`
	DisplayCycle     int    `json:"displayCycle"`
	Paused           bool   `json:"paused"`
	Completed        bool   `json:"completed"`
}

// CueFunc plays the audible completion cue for the phase that just ended.
// Errors are swallowed; a failing cue never stops the timer.
type CueFunc func(ended Phase) error

// Engine is a tick-driven pomodoro state machine. All methods are safe for
// concurrent use; ticks and state transitions are serialized by the mutex.
type Engine struct {
	mu sync.Mutex

	workSeconds  int
	breakSeconds int

	remaining int
	phase     Phase
	cycles    int
	paused    bool
	settle    int // ticks left in the settle window; completed while > 0

	cue  CueFunc
	subs []chan Event
}

// New creates an Engine in the work phase with the given phase durations in
// seconds. Non-positive durations fall back to 25/5 minutes.
func New(workSeconds, breakSeconds int) *Engine {
	if workSeconds <= 0 {
		workSeconds = 25 * 60
	}
	if breakSeconds <= 0 {
		breakSeconds = 5 * 60
	}
	return &Engine{
		workSeconds:  workSeconds,
		breakSeconds: breakSeconds,
		remaining:    workSeconds,
		phase:        PhaseWork,
	}
}

// SetCue installs the audible cue hook.
func (e *Engine) SetCue(cue CueFunc) {
	e.mu.Lock()
	e.cue = cue
	e.mu.Unlock()
}

// Subscribe registers an event channel. Events are dropped rather than
// blocking a slow subscriber.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Tick advances the countdown by one second. A no-op while paused.
// Reaching zero marks the state completed, fires the cue, and holds at zero
// for SettleTicks ticks before flipping the phase exactly once.
func (e *Engine) Tick() {
	e.mu.Lock()

	if e.paused {
		e.mu.Unlock()
		return
	}

	if e.settle > 0 {
		e.settle--
		if e.settle > 0 {
			e.mu.Unlock()
			return
		}
		// Settle window over: flip atomically.
		if e.phase == PhaseWork {
			e.phase = PhaseBreak
		} else {
			e.phase = PhaseWork
		}
		e.cycles++
		e.remaining = e.durationLocked(e.phase)
		ev := Event{Type: EventPhaseFlipped, State: e.snapshotLocked()}
		subs := e.subs
		e.mu.Unlock()
		broadcast(subs, ev)
		return
	}

	if e.remaining > 0 {
		e.remaining--
	}
	if e.remaining > 0 {
		e.mu.Unlock()
		return
	}

	e.settle = SettleTicks
	cue := e.cue
	ended := e.phase
	ev := Event{Type: EventCompleted, State: e.snapshotLocked()}
	subs := e.subs
	e.mu.Unlock()

	if cue != nil {
		_ = cue(ended)
	}
	broadcast(subs, ev)
}

// TogglePause flips the paused flag and returns the new value.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = !e.paused
	return e.paused
}

// Pause suspends the countdown.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume restarts the countdown where it left off.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Reset forces the engine back to a fresh work phase.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.phase = PhaseWork
	e.cycles = 0
	e.paused = false
	e.settle = 0
	e.remaining = e.workSeconds
	e.mu.Unlock()
}

// SetDurations updates the configured phase durations in seconds. While the
// countdown is running outside the settle window, the remaining time is
// rebased to the new duration for the current phase; progress is not
// preserved across a duration edit. While paused or settling, the new
// durations apply from the next rebase point.
func (e *Engine) SetDurations(workSeconds, breakSeconds int) error {
	if workSeconds <= 0 || breakSeconds <= 0 {
		return ErrInvalidDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.workSeconds = workSeconds
	e.breakSeconds = breakSeconds
	if !e.paused && e.settle == 0 {
		e.remaining = e.durationLocked(e.phase)
	}
	return nil
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Run drives Tick from a wall-clock ticker until the context is canceled.
// A non-positive interval means one second.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) durationLocked(p Phase) int {
	if p == PhaseBreak {
		return e.breakSeconds
	}
	return e.workSeconds
}

func (e *Engine) snapshotLocked() State {
	return State{
		RemainingSeconds: e.remaining,
		Phase:            e.phase.String(),
		CycleCount:       e.cycles,
		DisplayCycle:     e.cycles/2 + 1,
		Paused:           e.paused,
		Completed:        e.settle > 0,
	}
}

func broadcast(subs []chan Event, ev Event) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
