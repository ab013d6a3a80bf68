package schedule

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryGetUnknownName(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	// Strategy "day" with a blank channel is never registered, so it must
	// not exist as a queryable entity.
	if _, err := r.Get("scan:day"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Get on unregistered name = %v, want ErrNotConfigured", err)
	}
}

func TestRegistryPreservesInsertionOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	names := []string{"purge", "scan:day", "scan:swing", "scan:long"}
	for _, n := range names {
		w := NewWorker(n, mustSpec(t, 6), RunnableFunc(func(context.Context) error { return nil }), WorkerOptions{})
		if err := r.Register(w); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}

	entries := r.All()
	if len(entries) != len(names) {
		t.Fatalf("All() returned %d entries, want %d", len(entries), len(names))
	}
	for i, e := range entries {
		if e.Name != names[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Name, names[i])
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	w := NewWorker("purge", mustSpec(t, 6), RunnableFunc(func(context.Context) error { return nil }), WorkerOptions{})
	if err := r.Register(w); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(w); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistryStartStopAll(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	auto := NewWorker("scan:day", mustSpec(t, 1), RunnableFunc(func(context.Context) error { return nil }), WorkerOptions{})
	manual := NewWorker("purge", mustSpec(t, 0), RunnableFunc(func(context.Context) error { return nil }), WorkerOptions{})
	if err := r.Register(auto); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(manual); err != nil {
		t.Fatal(err)
	}

	r.StartAll(context.Background())
	if st := auto.Status(); st.State != StateRunning {
		t.Fatalf("auto worker state = %v, want running", st.State)
	}
	if st := manual.Status(); st.State != StateStopped {
		t.Fatalf("manual worker state = %v, want stopped", st.State)
	}

	r.StopAll()
	if st := auto.Status(); st.State != StateStopped {
		t.Fatalf("auto worker state after StopAll = %v", st.State)
	}
}
