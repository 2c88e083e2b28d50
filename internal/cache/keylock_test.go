package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockerSerializesSameKey(t *testing.T) {
	locker := NewKeyLocker()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locker.Acquire("k")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyLockerReclaimsReleasedLocks(t *testing.T) {
	locker := NewKeyLocker()

	release := locker.Acquire("k")
	release()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}

func TestKeyLockerIndependentKeys(t *testing.T) {
	locker := NewKeyLocker()

	releaseA := locker.Acquire("a")
	defer releaseA()

	// A held lock on another key must not block this acquire.
	done := make(chan struct{})
	go func() {
		releaseB := locker.Acquire("b")
		releaseB()
		close(done)
	}()
	<-done
}
