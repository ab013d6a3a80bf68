package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotConfigured is returned when a worker name was never registered,
// typically because its channel configuration was left blank. It is surfaced
// to the operator as "not set up", distinct from "configured but stopped".
var ErrNotConfigured = errors.New("worker not configured")

// Registry owns every ScheduledWorker in the process, keyed by name.
// Registration happens once at startup before any loop starts; after that
// the registry is read-only (new workers require a restart).
type Registry struct {
	mu      sync.RWMutex
	order   []string
	workers map[string]*Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: map[string]*Worker{}}
}

// Register adds a worker. Duplicate names are a wiring bug.
func (r *Registry) Register(w *Worker) error {
	if w == nil {
		return errors.New("nil worker")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.workers[w.Name()]; dup {
		return fmt.Errorf("worker %q already registered", w.Name())
	}
	r.workers[w.Name()] = w
	r.order = append(r.order, w.Name())
	return nil
}

func (r *Registry) Get(name string) (*Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, name)
	}
	return w, nil
}

// Names returns registered worker names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns every worker's status in insertion order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	workers := make([]*Worker, 0, len(names))
	for _, n := range names {
		workers = append(workers, r.workers[n])
	}
	r.mu.RUnlock()

	out := make([]Entry, 0, len(workers))
	for i, w := range workers {
		out = append(out, Entry{Name: names[i], Status: w.Status()})
	}
	return out
}

// StartAll starts every registered worker (manual-only specs stay stopped).
func (r *Registry) StartAll(ctx context.Context) {
	for _, name := range r.Names() {
		if w, err := r.Get(name); err == nil {
			w.Start(ctx)
		}
	}
}

// StopAll stops every worker, waiting for in-flight actions to finish.
func (r *Registry) StopAll() {
	for _, name := range r.Names() {
		if w, err := r.Get(name); err == nil {
			w.Stop()
		}
	}
}
