// Package supervisor manages named goroutines tied to a shared context,
// with panic recovery and optional restart-on-failure.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	errOnce  sync.Once
	firstErr atomic.Value // error

	doneOnce sync.Once
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

func New(parent context.Context, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		doneCh: make(chan struct{}),
	}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Err returns the first error any goroutine reported.
func (s *Supervisor) Err() error {
	if v := s.firstErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Go runs fn under the supervisor context. Panics are recovered and
// recorded, never propagated.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("goroutine panicked",
					slog.String("name", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				s.setErr(fmt.Errorf("panic in %s: %v", name, r))
			}
		}()

		s.log.Debug("goroutine started", slog.String("name", name))
		err := fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
			s.log.Error("goroutine failed", slog.String("name", name), slog.Any("err", err))
		}
		s.log.Debug("goroutine stopped", slog.String("name", name))
	}()
}

// GoRestart runs fn and restarts it on error or panic with exponential
// backoff, until ctx is cancelled or fn returns nil. Intended for
// long-running loops (watchers, pumps) that should self-heal.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error) {
	const (
		minBackoff = 250 * time.Millisecond
		maxBackoff = 30 * time.Second
	)
	s.Go(name+".restart", func(ctx context.Context) error {
		backoff := minBackoff
		for {
			if ctx.Err() != nil {
				return nil
			}

			startedAt := time.Now()
			err := runRecovered(ctx, fn)
			if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
				return nil
			}

			// A run that survived a while earns a fresh backoff window.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = minBackoff
			}
			s.log.Warn("goroutine restarting",
				slog.String("name", name),
				slog.Duration("backoff", backoff),
				slog.Any("err", err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}

func runRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Stop cancels the supervisor context and waits for every goroutine, or
// until ctx expires.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}
