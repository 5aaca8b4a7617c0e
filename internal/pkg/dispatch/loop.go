// Package dispatch provides the owner loop: a single goroutine on which all
// map state is touched and all listeners run.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

// ErrClosed is returned by Call once the loop has stopped.
var ErrClosed = errors.New("dispatch loop closed")

// Loop runs posted tasks one at a time, in posting order.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a Loop. Tasks only run once Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It never blocks and is safe for concurrent use. Tasks
// posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		metrics.DispatchDropped.Inc()
		return
	}
	l.queue = append(l.queue, fn)
	depth := len(l.queue)
	l.mu.Unlock()

	metrics.DispatchQueueDepth.Set(float64(depth))
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call posts fn and waits until it has run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return nil
	case <-l.done:
		// fn may have run right before the loop stopped.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is cancelled or Close is called. Tasks still
// queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			l.run(fn)
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()

		if dropped > 0 {
			metrics.DispatchDropped.Add(float64(dropped))
		}
		metrics.DispatchQueueDepth.Set(0)
		close(l.done)
	})
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.closed {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	metrics.DispatchQueueDepth.Set(float64(len(l.queue)))
	return fn, true
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchPanics.Inc()
			slog.Error("dispatch task panicked", "panic", r)
		}
	}()
	fn()
	metrics.DispatchTasks.Inc()
}
