// Package lock provides keyed mutual exclusion for the receive workflow,
// either inside one process or across service replicas through Redis.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// Release gives a held lock back. Calling it more than once is harmless.
type Release func()

// Locker acquires exclusive locks by key. A wait of zero blocks until the
// lock is free or ctx is done; a positive wait bounds the blocking and
// fails with a concurrent modification error when it expires.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (Release, error)
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free, ctx is done or wait elapses.
func (l *Local) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	s := l.join(key)

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.leave(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.leave(key, s)
		return nil, ctx.Err()
	case <-timeout:
		l.leave(key, s)
		return nil, errors.ConcurrentModification(key)
	}
}

// Held reports whether key is currently locked or awaited. Used by tests.
func (l *Local) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.slots[key]
	return ok
}

func (l *Local) join(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) leave(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
