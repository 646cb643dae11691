// Package lock provides keyed mutual exclusion with a bounded wait.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired before the wait expired.
var ErrTimeout = errors.New("lock: acquisition timed out")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires a named lock, waiting at most until ctx is done or the
// locker's own wait bound elapses.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// Noop never blocks. Used when the store transaction is the only boundary.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Unlock, error) {
	return func() {}, nil
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process keyed lock. Each key owns a one-slot semaphore that
// is dropped once nobody holds or waits for it.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// NewLocal returns a Local lock. wait bounds every acquisition; zero means
// only the caller's context bounds it.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		entries: make(map[string]*entry),
		wait:    wait,
	}
}

func (l *Local) Acquire(ctx context.Context, key string) (Unlock, error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	e := l.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, errors.Join(ErrTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key)
		})
	}, nil
}

func (l *Local) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
