// Package loop implements the Deterministic Loop: a fixed-timestep
// wall-clock accumulator that dispatches whole simulation ticks only,
// as an explicit finite-state machine.
//
// States: Idle -> Initialising -> Running <-> RollingBack -> Faulted.
// Kept to a plain switch here rather than a generic state-machine
// engine, since this loop has five states and one real branch
// (rollback interrupting Running).
package loop

import (
	"context"
	"time"
)

// State is one of the Deterministic Loop's five states.
type State int

const (
	Idle State = iota
	Initialising
	Running
	RollingBack
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initialising:
		return "Initialising"
	case Running:
		return "Running"
	case RollingBack:
		return "RollingBack"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// slowHostBacklog is the number of whole ticks of accumulated backlog
// past which the loop emits a SlowHost diagnostic.
const slowHostBacklog = 4

// Diagnostic is a non-fatal condition the loop surfaces without
// changing state.
type Diagnostic struct {
	SlowHost    bool
	BacklogTicks int
}

// TickFunc simulates exactly one tick. An error transitions the loop to
// Faulted.
type TickFunc func(ctx context.Context) error

// RollbackFunc is invoked whenever the Rollback Session reports pending
// resimulation work; it must fully resolve before the loop resumes
// dispatching new ticks. An error transitions the loop to Faulted.
type RollbackFunc func(ctx context.Context) error

// PendingRollbackFunc reports whether a rollback is currently needed.
type PendingRollbackFunc func() bool

// Loop drives a fixed-timestep simulation from wall-clock time.
type Loop struct {
	state    State
	hz       int
	dt       time.Duration
	accum    time.Duration
	lastTime time.Time

	tick         TickFunc
	rollback     RollbackFunc
	hasPending   PendingRollbackFunc
	onDiagnostic func(Diagnostic)
	err          error
}

// New builds a loop at the given tick rate. onDiagnostic may be nil.
func New(hz int, tick TickFunc, rollback RollbackFunc, hasPending PendingRollbackFunc, onDiagnostic func(Diagnostic)) *Loop {
	if onDiagnostic == nil {
		onDiagnostic = func(Diagnostic) {}
	}
	return &Loop{
		state:        Idle,
		hz:           hz,
		dt:           time.Second / time.Duration(hz),
		tick:         tick,
		rollback:     rollback,
		hasPending:   hasPending,
		onDiagnostic: onDiagnostic,
	}
}

// State returns the current FSM state.
func (l *Loop) State() State { return l.state }

// Err returns the error that drove the loop into Faulted, if any.
func (l *Loop) Err() error { return l.err }

// Start transitions Idle -> Initialising -> Running and resets the
// wall-clock accumulator, so the first Advance call after Start never
// replays stale elapsed time.
func (l *Loop) Start() {
	l.state = Initialising
	l.accum = 0
	l.lastTime = time.Now()
	l.state = Running
}

// Advance folds the wall-clock delta since the last call into the
// accumulator and dispatches as many whole ticks as have accrued. Each
// tick first checks for pending rollback work and resolves it before
// dispatching the next new tick, matching RollingBack's position
// between ticks in the FSM rather than mid-tick.
func (l *Loop) Advance(ctx context.Context) error {
	if l.state != Running {
		return nil
	}
	now := time.Now()
	elapsed := now.Sub(l.lastTime)
	l.lastTime = now
	l.accum += elapsed

	ticksThisFrame := 0
	for l.accum >= l.dt {
		if l.hasPending != nil && l.hasPending() {
			l.state = RollingBack
			if err := l.rollback(ctx); err != nil {
				l.state = Faulted
				l.err = err
				return err
			}
			l.state = Running
		}

		if err := l.tick(ctx); err != nil {
			l.state = Faulted
			l.err = err
			return err
		}

		l.accum -= l.dt
		ticksThisFrame++
	}

	if ticksThisFrame > slowHostBacklog {
		l.onDiagnostic(Diagnostic{SlowHost: true, BacklogTicks: ticksThisFrame})
	}
	return nil
}

// Interpolation returns the fraction of a tick remaining in the
// accumulator, for Render calls between ticks.
func (l *Loop) Interpolation() float32 {
	return float32(l.accum) / float32(l.dt)
}

// Stop transitions back to Idle. A Faulted loop cannot be Stopped back
// into service; it must be rebuilt with New.
func (l *Loop) Stop() {
	if l.state == Faulted {
		return
	}
	l.state = Idle
}
