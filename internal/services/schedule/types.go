package schedule

import (
	"context"
	"time"
)

// Runnable is the action bound to a worker. The scheduler never inspects
// which variant it holds (purge, scan, ...).
type Runnable interface {
	Run(ctx context.Context) error
}

// RunnableFunc adapts a plain function to Runnable.
type RunnableFunc func(ctx context.Context) error

func (f RunnableFunc) Run(ctx context.Context) error { return f(ctx) }

// RemindFunc is called by a worker's loop when the reminder ladder says a
// reminder is due. remaining is the time left until the trigger.
type RemindFunc func(ctx context.Context, kind ReminderKind, remaining time.Duration)

// State is a worker's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Status is a point-in-time snapshot of one worker.
type Status struct {
	Name      string
	State     State
	Manual    bool // interval 0: never fires on a timer
	Interval  time.Duration
	Next      time.Time     // zero when stopped or manual-only
	Remaining time.Duration // zero when Next is zero
}

// Entry pairs a registered worker name with its status, in registration
// order.
type Entry struct {
	Name   string
	Status Status
}
