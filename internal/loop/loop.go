// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package loop provides the control loop that owns all mutable front-end
// state. Closures posted from any goroutine run one at a time on the
// goroutine that called Run, so the state they touch needs no locks.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrStopped is returned when work is posted to a loop that has stopped.
	ErrStopped = errors.New("control loop stopped")
	// ErrPanicked is returned by Do when the closure panicked.
	ErrPanicked = errors.New("closure panicked")
)

// Loop serially executes posted closures.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
	logger  zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered panics.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger.With().Str("component", "loop").Logger()
	}
}

// New creates a loop. buffer sizes the initial queue; the queue grows as
// needed so Post never blocks, even when called from the loop itself.
func New(buffer int, opts ...Option) *Loop {
	l := &Loop{
		pending: make([]func(), 0, buffer),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run processes posted closures until ctx ends or Stop is called. It
// returns ctx.Err() when the context ended and nil after Stop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()

			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
			l.drain(ctx)
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil || l.Stopped() {
			return
		}

		fn := l.next()
		if fn == nil {
			return
		}

		l.invoke(fn)
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}

	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]

	return fn
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic in control loop")
		}
	}()

	fn()
}

// Post enqueues fn. It is safe from any goroutine and never blocks. The
// result is false once the loop has stopped; fn is then dropped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.Stopped() {
		l.mu.Unlock()

		return false
	}

	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	var panicErr error

	posted := l.Post(func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("%w: %v", ErrPanicked, r)
				l.logger.Error().Err(panicErr).Msg("recovered panic in control loop")
			}
		}()

		fn()
	})
	if !posted {
		return ErrStopped
	}

	select {
	case <-finished:
		return panicErr
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run. Queued closures that have not started are dropped.
func (l *Loop) Stop() {
	l.stop.Do(func() { close(l.done) })
}

// Stopped reports whether the loop has stopped.
func (l *Loop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Spawn runs work on a new goroutine and posts done with its result back to
// the loop. work must not touch loop-owned state.
func Spawn[T any](l *Loop, work func() T, done func(T)) {
	go func() {
		result := work()

		l.Post(func() { done(result) })
	}()
}
