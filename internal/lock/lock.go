// Package lock provides advisory locks keyed by string, used to serialise
// schedule application for one calendar day.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock for key. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// caller holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *LocalLocker) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
