package confirm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrentAcknowledgementsExecuteOnce(t *testing.T) {
	t.Parallel()
	g := NewGate(Options{Window: time.Second})

	var runs atomic.Int64
	ticket, err := g.Request(context.Background(), "purge", "owner", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	const acks = 8
	outcomes := make([]Outcome, acks)
	var wg sync.WaitGroup
	for i := 0; i < acks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = g.Acknowledge(context.Background(), ticket, "owner")
		}(i)
	}
	wg.Wait()

	var executed, ignored int
	for _, o := range outcomes {
		switch o {
		case Executed:
			executed++
		case Ignored:
			ignored++
		default:
			t.Fatalf("unexpected outcome %v", o)
		}
	}
	if executed != 1 {
		t.Fatalf("executed = %d, want exactly 1", executed)
	}
	if ignored != acks-1 {
		t.Fatalf("ignored = %d, want %d", ignored, acks-1)
	}
	if runs.Load() != 1 {
		t.Fatalf("action ran %d times, want 1", runs.Load())
	}
}

func TestLateAcknowledgementExpires(t *testing.T) {
	t.Parallel()
	expired := make(chan *Ticket, 1)
	g := NewGate(Options{
		Window:   20 * time.Millisecond,
		OnExpire: func(_ context.Context, tk *Ticket) { expired <- tk },
	})

	var runs atomic.Int64
	ticket, err := g.Request(context.Background(), "purge", "owner", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// The ticket must self-cancel and notify the initiator, not vanish.
	select {
	case tk := <-expired:
		if tk != ticket {
			t.Fatal("expire callback got a different ticket")
		}
	case <-time.After(time.Second):
		t.Fatal("expire callback never fired")
	}

	out, _ := g.Acknowledge(context.Background(), ticket, "owner")
	if out != Expired {
		t.Fatalf("late acknowledgement = %v, want Expired", out)
	}
	if runs.Load() != 0 {
		t.Fatal("action executed despite expiry")
	}
}

func TestWrongResponderLeavesTicketPending(t *testing.T) {
	t.Parallel()
	g := NewGate(Options{Window: time.Second})

	var runs atomic.Int64
	ticket, err := g.Request(context.Background(), "purge", "owner", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	out, _ := g.Acknowledge(context.Background(), ticket, "bystander")
	if out != WrongResponder {
		t.Fatalf("bystander acknowledgement = %v, want WrongResponder", out)
	}
	if runs.Load() != 0 {
		t.Fatal("bystander executed the action")
	}

	// The initiator can still confirm afterwards.
	out, err = g.Acknowledge(context.Background(), ticket, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if out != Executed || runs.Load() != 1 {
		t.Fatalf("initiator acknowledgement = %v (runs=%d), want Executed once", out, runs.Load())
	}
}

func TestSecondRequestRejectedWhilePending(t *testing.T) {
	t.Parallel()
	g := NewGate(Options{Window: time.Second})

	noop := func(context.Context) error { return nil }
	first, err := g.Request(context.Background(), "purge", "owner", noop)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Request(context.Background(), "purge", "owner", noop); !errors.Is(err, ErrConfirmationPending) {
		t.Fatalf("second request = %v, want ErrConfirmationPending", err)
	}

	// A different initiator or scope is independent.
	if _, err := g.Request(context.Background(), "purge", "other-user", noop); err != nil {
		t.Fatalf("different initiator rejected: %v", err)
	}
	if _, err := g.Request(context.Background(), "scan:day", "owner", noop); err != nil {
		t.Fatalf("different scope rejected: %v", err)
	}

	// Once resolved, the slot frees up.
	if out, _ := g.Acknowledge(context.Background(), first, "owner"); out != Executed {
		t.Fatalf("acknowledge = %v, want Executed", out)
	}
	if _, err := g.Request(context.Background(), "purge", "owner", noop); err != nil {
		t.Fatalf("request after resolution rejected: %v", err)
	}
}

func TestActionErrorSurfacesWithExecuted(t *testing.T) {
	t.Parallel()
	g := NewGate(Options{Window: time.Second})

	boom := errors.New("purge failed")
	ticket, err := g.Request(context.Background(), "purge", "owner", func(context.Context) error { return boom })
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Acknowledge(context.Background(), ticket, "owner")
	if out != Executed {
		t.Fatalf("outcome = %v, want Executed", out)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the action error", err)
	}
}

func TestDoneClosesOnResolution(t *testing.T) {
	t.Parallel()
	g := NewGate(Options{Window: 20 * time.Millisecond})

	ticket, err := g.Request(context.Background(), "purge", "owner", func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-ticket.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after expiry")
	}
}
