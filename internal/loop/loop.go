// Package loop provides the single logical thread that owns all editor
// state. Blocking capability calls run on their own goroutine and post their
// continuation back onto the loop, so state is only touched from Run.
package loop

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

// ErrStopped is returned when work is posted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop is a FIFO queue of closures executed by one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New creates a loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks, so it is safe to call from the loop
// itself. Returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		batch := l.take()
		for _, fn := range batch {
			l.invoke(fn)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) take() []func() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	return batch
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("LOOP: recovered panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ch := make(chan struct{})
	if !l.Post(func() {
		defer close(ch)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Await posts start onto the loop and blocks until start's done callback
// fires. done may be called from the loop at any later point; extra calls
// are ignored.
func (l *Loop) Await(ctx context.Context, start func(done func(error))) error {
	ch := make(chan error, 1)
	var once sync.Once
	done := func(err error) {
		once.Do(func() { ch <- err })
	}
	if !l.Post(func() { start(done) }) {
		return ErrStopped
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Async runs work on its own goroutine and posts then(result) back onto
// the loop. If the loop has stopped by the time work finishes, then is
// dropped.
func Async[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), then func(T, error)) {
	go func() {
		v, err := work(ctx)
		l.Post(func() { then(v, err) })
	}()
}
