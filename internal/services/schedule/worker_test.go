package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingAction struct {
	mu     sync.Mutex
	runs   int
	active int
	peak   int
	block  time.Duration
	err    error
	fired  chan struct{}
}

func (a *countingAction) Run(ctx context.Context) error {
	a.mu.Lock()
	a.runs++
	a.active++
	if a.active > a.peak {
		a.peak = a.active
	}
	block := a.block
	a.mu.Unlock()

	if block > 0 {
		time.Sleep(block)
	}
	if a.fired != nil {
		select {
		case a.fired <- struct{}{}:
		default:
		}
	}

	a.mu.Lock()
	a.active--
	err := a.err
	a.mu.Unlock()
	return err
}

func (a *countingAction) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runs
}

func mustSpec(t *testing.T, hours int) IntervalSpec {
	t.Helper()
	spec, err := Validate(hours)
	if err != nil {
		t.Fatalf("Validate(%d): %v", hours, err)
	}
	return spec
}

func TestStoppedWorkerNeverFires(t *testing.T) {
	t.Parallel()
	act := &countingAction{}
	w := NewWorker("purge", mustSpec(t, 1), act, WorkerOptions{WakeEvery: time.Millisecond})

	time.Sleep(30 * time.Millisecond)
	if n := act.count(); n != 0 {
		t.Fatalf("stopped worker executed %d times", n)
	}
	if st := w.Status(); st.State != StateStopped || !st.Next.IsZero() {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStopInterruptsSuspendImmediately(t *testing.T) {
	t.Parallel()
	act := &countingAction{}
	// Next boundary is up to an hour away; Stop must not wait for it.
	w := NewWorker("purge", mustSpec(t, 1), act, WorkerOptions{})
	w.Start(context.Background())

	if st := w.Status(); st.State != StateRunning {
		t.Fatalf("state after Start = %v", st.State)
	}

	begin := time.Now()
	w.Stop()
	if took := time.Since(begin); took > time.Second {
		t.Fatalf("Stop took %v, want immediate return", took)
	}
	if st := w.Status(); st.State != StateStopped {
		t.Fatalf("state after Stop = %v", st.State)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()
	act := &countingAction{}
	w := NewWorker("scan:day", mustSpec(t, 2), act, WorkerOptions{})

	w.Stop() // no-op while stopped
	w.Start(context.Background())
	w.Start(context.Background()) // no-op while running
	w.Stop()
	w.Stop()
	if n := act.count(); n != 0 {
		t.Fatalf("lifecycle churn executed the action %d times", n)
	}
}

func TestManualOnlyWorkerHasNoSchedule(t *testing.T) {
	t.Parallel()
	act := &countingAction{}
	w := NewWorker("purge", mustSpec(t, 0), act, WorkerOptions{})

	w.Start(context.Background())
	st := w.Status()
	if st.State != StateStopped || !st.Manual {
		t.Fatalf("manual worker status = %+v", st)
	}
	if !st.Next.IsZero() || st.Remaining != 0 {
		t.Fatalf("manual worker reports a scheduled time: %+v", st)
	}

	// Manual trigger still works.
	if err := w.TriggerNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := act.count(); n != 1 {
		t.Fatalf("TriggerNow executed %d times, want 1", n)
	}
}

func TestTriggerNowDoesNotAlterSchedule(t *testing.T) {
	t.Parallel()
	act := &countingAction{err: errors.New("boom")}
	w := NewWorker("scan:day", mustSpec(t, 4), act, WorkerOptions{})
	w.Start(context.Background())
	defer w.Stop()

	// The loop publishes its target shortly after Start.
	var before Status
	deadline := time.Now().Add(time.Second)
	for {
		before = w.Status()
		if !before.Next.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never published a next trigger")
		}
		time.Sleep(time.Millisecond)
	}

	if err := w.TriggerNow(context.Background()); err == nil {
		t.Fatal("expected action error to propagate from TriggerNow")
	}
	after := w.Status()
	if after.State != StateRunning {
		t.Fatalf("state changed to %v after manual trigger failure", after.State)
	}
	if !after.Next.Equal(before.Next) {
		t.Fatalf("next trigger moved from %v to %v", before.Next, after.Next)
	}
}

func TestWorkerFiresAtBoundary(t *testing.T) {
	t.Parallel()
	boundary := time.Date(2026, 8, 20, 6, 0, 0, 0, ReferenceZone)
	start := time.Now()
	clock := func() time.Time {
		return boundary.Add(-50 * time.Millisecond).Add(time.Since(start))
	}

	act := &countingAction{fired: make(chan struct{}, 1)}
	w := NewWorker("purge", mustSpec(t, 6), act, WorkerOptions{
		Now:       clock,
		WakeEvery: 5 * time.Millisecond,
	})
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-act.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not fire at the boundary")
	}

	// After firing, the loop must reschedule for the next boundary, not
	// re-fire.
	time.Sleep(50 * time.Millisecond)
	if n := act.count(); n != 1 {
		t.Fatalf("action ran %d times, want 1", n)
	}
	if st := w.Status(); st.State != StateRunning || !st.Next.After(boundary) {
		t.Fatalf("post-fire status = %+v", st)
	}
}

func TestActionFailureDoesNotStopWorker(t *testing.T) {
	t.Parallel()
	boundary := time.Date(2026, 8, 20, 12, 0, 0, 0, ReferenceZone)
	start := time.Now()
	clock := func() time.Time {
		return boundary.Add(-30 * time.Millisecond).Add(time.Since(start))
	}

	act := &countingAction{err: errors.New("scan exploded"), fired: make(chan struct{}, 1)}
	w := NewWorker("scan:day", mustSpec(t, 12), act, WorkerOptions{
		Now:       clock,
		WakeEvery: 5 * time.Millisecond,
	})
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-act.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not fire")
	}
	time.Sleep(20 * time.Millisecond)
	if st := w.Status(); st.State != StateRunning {
		t.Fatalf("worker stopped after action failure: %+v", st)
	}
}

func TestRemindersFireDuringSuspend(t *testing.T) {
	t.Parallel()
	// Accelerated clock: one real millisecond is one simulated minute.
	// The worker starts two simulated hours before its boundary, so the
	// loop should walk the hourly tier and then the fine-grained tier.
	boundary := time.Date(2026, 8, 20, 12, 0, 0, 0, ReferenceZone)
	start := time.Now()
	clock := func() time.Time {
		elapsed := time.Duration(time.Since(start).Milliseconds()) * time.Minute
		return boundary.Add(-2 * time.Hour).Add(elapsed)
	}

	var hourly, fine atomic.Int64
	act := &countingAction{fired: make(chan struct{}, 1)}
	w := NewWorker("purge", mustSpec(t, 6), act, WorkerOptions{
		Now:       clock,
		WakeEvery: time.Millisecond,
		Remind: func(ctx context.Context, kind ReminderKind, remaining time.Duration) {
			if remaining <= 0 {
				t.Errorf("reminder with non-positive remaining %v", remaining)
			}
			switch kind {
			case RemindHourly:
				if remaining < time.Hour {
					t.Errorf("hourly reminder inside final hour (%v left)", remaining)
				}
				hourly.Add(1)
			case RemindFineGrained:
				if remaining >= time.Hour {
					t.Errorf("fine-grained reminder outside final hour (%v left)", remaining)
				}
				fine.Add(1)
			default:
				t.Errorf("reminder callback with kind %v", kind)
			}
		},
	})
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-act.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not reach the boundary")
	}
	if hourly.Load() == 0 && fine.Load() == 0 {
		t.Fatal("no reminders fired during a two-hour countdown")
	}
	if fine.Load() == 0 {
		t.Fatal("no fine-grained reminder inside the final hour")
	}
}

func TestRunsNeverOverlap(t *testing.T) {
	t.Parallel()
	act := &countingAction{block: 20 * time.Millisecond}
	w := NewWorker("purge", mustSpec(t, 1), act, WorkerOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.TriggerNow(context.Background())
		}()
	}
	wg.Wait()

	act.mu.Lock()
	defer act.mu.Unlock()
	if act.peak > 1 {
		t.Fatalf("observed %d concurrent runs, want 1", act.peak)
	}
	if act.runs != 4 {
		t.Fatalf("runs = %d, want 4", act.runs)
	}
}
