// Package confirm implements the single-use interactive handshake required
// before a manually requested action executes: the gate presents a pending
// action, waits a bounded window for one acknowledgement, then executes or
// auto-cancels.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Window is the acknowledgement deadline. Fixed, not exposed in
// configuration.
const Window = 15 * time.Second

// ErrConfirmationPending is returned when a second request arrives for the
// same (scope, initiator) pair while one is outstanding. Policy: reject, do
// not replace or queue.
var ErrConfirmationPending = errors.New("a confirmation is already pending")

// Outcome is the result of an acknowledgement attempt.
type Outcome int

const (
	// Executed: the window was open, this was the first acknowledgement,
	// and the action ran.
	Executed Outcome = iota
	// Ignored: the action was already consumed by a prior acknowledgement.
	Ignored
	// Expired: the deadline elapsed before this acknowledgement.
	Expired
	// WrongResponder: someone other than the initiator answered; the
	// ticket stays pending.
	WrongResponder
)

func (o Outcome) String() string {
	switch o {
	case Executed:
		return "executed"
	case Ignored:
		return "ignored"
	case Expired:
		return "expired"
	case WrongResponder:
		return "wrong responder"
	default:
		return "unknown"
	}
}

// Ticket state values. The execution slot is claimed by a single CAS on
// state, which is what makes execute-once hold under concurrent
// acknowledgements.
const (
	statePending int32 = iota
	stateExecuted
	stateExpired
)

// Ticket is one ephemeral pending confirmation.
type Ticket struct {
	scope     string // worker or action identifier
	initiator string
	deadline  time.Time
	action    func(ctx context.Context) error

	state atomic.Int32
	timer *time.Timer
	done  chan struct{} // closed once resolved (executed or expired)
}

func (t *Ticket) Scope() string       { return t.scope }
func (t *Ticket) Initiator() string   { return t.initiator }
func (t *Ticket) Deadline() time.Time { return t.deadline }

// Done is closed when the ticket is resolved either way. Callers waiting on
// a reaction can select on it to stop waiting early.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// ExpireFunc notifies the initiator that a ticket timed out without an
// acknowledgement. The operation must never be dropped silently.
type ExpireFunc func(ctx context.Context, t *Ticket)

// Gate issues and resolves confirmation tickets.
type Gate struct {
	log      *slog.Logger
	window   time.Duration
	onExpire ExpireFunc

	mu      sync.Mutex
	pending map[string]*Ticket // key: scope + "\x00" + initiator
}

// Options tune the gate. Window overrides exist for tests only.
type Options struct {
	Logger   *slog.Logger
	OnExpire ExpireFunc
	Window   time.Duration
}

func NewGate(opts Options) *Gate {
	g := &Gate{
		log:      opts.Logger,
		window:   opts.Window,
		onExpire: opts.OnExpire,
		pending:  map[string]*Ticket{},
	}
	if g.log == nil {
		g.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.window <= 0 {
		g.window = Window
	}
	return g
}

func key(scope, initiator string) string { return scope + "\x00" + initiator }

// Request creates a confirmation ticket and starts its deadline countdown
// immediately. At most one ticket per (scope, initiator) may be outstanding.
func (g *Gate) Request(ctx context.Context, scope, initiator string, action func(ctx context.Context) error) (*Ticket, error) {
	if action == nil {
		return nil, errors.New("nil action")
	}

	t := &Ticket{
		scope:     scope,
		initiator: initiator,
		action:    action,
		done:      make(chan struct{}),
	}

	g.mu.Lock()
	if _, exists := g.pending[key(scope, initiator)]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w for %s", ErrConfirmationPending, scope)
	}
	t.deadline = time.Now().Add(g.window)
	g.pending[key(scope, initiator)] = t
	g.mu.Unlock()

	// Self-cancel on deadline. The CAS loses against a concurrent
	// acknowledgement, in which case the ticket already executed.
	t.timer = time.AfterFunc(g.window, func() {
		if !t.state.CompareAndSwap(statePending, stateExpired) {
			return
		}
		g.remove(t)
		close(t.done)
		g.log.Info("confirmation expired",
			slog.String("scope", t.scope),
			slog.String("initiator", t.initiator))
		if g.onExpire != nil {
			g.onExpire(ctx, t)
		}
	})

	g.log.Debug("confirmation requested",
		slog.String("scope", scope),
		slog.String("initiator", initiator),
		slog.Time("deadline", t.deadline))
	return t, nil
}

// Acknowledge resolves a ticket. Exactly one acknowledgement can win the
// execution slot; the action's error (if any) is returned alongside
// Executed. A non-initiator responder leaves the ticket pending.
func (g *Gate) Acknowledge(ctx context.Context, t *Ticket, responder string) (Outcome, error) {
	if t == nil {
		return Ignored, nil
	}
	if responder != t.initiator {
		return WrongResponder, nil
	}

	if !t.state.CompareAndSwap(statePending, stateExecuted) {
		if t.state.Load() == stateExpired {
			return Expired, nil
		}
		return Ignored, nil
	}

	t.timer.Stop()
	g.remove(t)
	close(t.done)

	g.log.Info("confirmation acknowledged",
		slog.String("scope", t.scope),
		slog.String("initiator", t.initiator))
	return Executed, t.action(ctx)
}

func (g *Gate) remove(t *Ticket) {
	g.mu.Lock()
	if cur := g.pending[key(t.scope, t.initiator)]; cur == t {
		delete(g.pending, key(t.scope, t.initiator))
	}
	g.mu.Unlock()
}
