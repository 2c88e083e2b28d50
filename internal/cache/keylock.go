package cache

import (
	"sync"
)

// KeyLocker is an arena of per-key mutexes. The persistent tier gives no
// atomicity across a read-then-write on the same key; callers that need
// check-then-act semantics serialize through here. Locks are created on
// demand and reclaimed when the last holder releases.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocker creates an empty lock arena.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the lock for key is held and returns the release
// function. Release must be called exactly once.
func (l *KeyLocker) Acquire(key string) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	return func() {
		kl.mu.Unlock()

		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
