package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// defaultWakeEvery is the suspend granularity: how often a running worker
// wakes to re-check the reminder ladder while waiting for its boundary.
const defaultWakeEvery = time.Minute

// Worker is a single named periodic task bound to one IntervalSpec. It owns
// its running/stopped state and a cancellable timer loop.
type Worker struct {
	name   string
	spec   IntervalSpec
	action Runnable
	remind RemindFunc
	log    *slog.Logger

	now       func() time.Time
	wakeEvery time.Duration

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}
	next   time.Time

	// runMu serializes action executions so a manual trigger can never
	// overlap a scheduled run (and vice versa).
	runMu sync.Mutex
}

// WorkerOptions tune a worker beyond the required name/spec/action triple.
type WorkerOptions struct {
	// Remind, when non-nil, receives reminder-ladder callbacks between
	// triggers. Scan workers leave it nil; the purge worker sets it.
	Remind RemindFunc
	Logger *slog.Logger

	// Now and WakeEvery exist for tests; zero values mean time.Now and
	// the one-minute default.
	Now       func() time.Time
	WakeEvery time.Duration
}

func NewWorker(name string, spec IntervalSpec, action Runnable, opts WorkerOptions) *Worker {
	w := &Worker{
		name:      name,
		spec:      spec,
		action:    action,
		remind:    opts.Remind,
		log:       opts.Logger,
		now:       opts.Now,
		wakeEvery: opts.WakeEvery,
	}
	if w.log == nil {
		w.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.wakeEvery <= 0 {
		w.wakeEvery = defaultWakeEvery
	}
	return w
}

func (w *Worker) Name() string { return w.name }

// Spec returns the worker's validated interval.
func (w *Worker) Spec() IntervalSpec { return w.spec }

// Start launches the timer loop. No-op if already running or if the spec is
// manual-only (nothing to schedule).
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRunning || w.spec.Manual() {
		return
	}
	w.state = StateRunning
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx, w.stopCh, w.done)
	w.log.Info("worker started", slog.String("worker", w.name), slog.Int("interval_hours", w.spec.Hours()))
}

// Stop interrupts the suspend wait immediately and returns once the loop has
// exited. An action already executing is never interrupted: the current run
// completes, then the loop observes the stop and exits without rescheduling.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	w.state = StateStopped
	w.next = time.Time{}
	close(w.stopCh)
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Info("worker stopped", slog.String("worker", w.name))
}

// TriggerNow executes the bound action once, immediately, regardless of
// state and without altering the schedule.
func (w *Worker) TriggerNow(ctx context.Context) error {
	return w.runOnce(ctx, "manual")
}

// Status is a pure query, valid in any state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Name:     w.name,
		State:    w.state,
		Manual:   w.spec.Manual(),
		Interval: w.spec.Interval(),
	}
	if w.state == StateRunning && !w.next.IsZero() {
		st.Next = w.next
		if rem := w.next.Sub(w.now()); rem > 0 {
			st.Remaining = rem
		}
	}
	return st
}

func (w *Worker) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		next, err := w.spec.NextTrigger(w.now())
		if err != nil {
			// Manual-only specs never reach here (Start refuses), so
			// this is belt and braces.
			return
		}
		w.setNext(next)

		// Remaining time at the last reminder; starts at the full
		// interval so the first boundary crossing fires exactly once.
		lastRemind := w.spec.Interval()

		for {
			remaining := next.Sub(w.now())
			if remaining <= 0 {
				break
			}
			wait := w.wakeEvery
			if remaining < wait {
				wait = remaining
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				w.markStopped()
				return
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}

			if w.remind == nil {
				continue
			}
			rem := next.Sub(w.now())
			if rem <= 0 {
				continue
			}
			if kind := ShouldRemind(rem, lastRemind); kind != RemindNone {
				w.remind(ctx, kind, rem)
				lastRemind = rem
			}
		}

		// Natural wake-up: fire exactly once. A failure does not stop
		// the worker; the next boundary is computed fresh afterwards,
		// so a slow action delays but never skips or double-fires.
		_ = w.runOnce(ctx, "schedule")

		select {
		case <-stop:
			return
		case <-ctx.Done():
			w.markStopped()
			return
		default:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, cause string) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := time.Now()
	err := w.action.Run(ctx)
	if err != nil {
		w.log.Warn("action failed",
			slog.String("worker", w.name),
			slog.String("cause", cause),
			slog.Duration("dur", time.Since(start)),
			slog.Any("err", err))
		return err
	}
	w.log.Debug("action completed",
		slog.String("worker", w.name),
		slog.String("cause", cause),
		slog.Duration("dur", time.Since(start)))
	return nil
}

func (w *Worker) setNext(t time.Time) {
	w.mu.Lock()
	w.next = t
	w.mu.Unlock()
}

func (w *Worker) markStopped() {
	w.mu.Lock()
	w.state = StateStopped
	w.next = time.Time{}
	w.mu.Unlock()
}
