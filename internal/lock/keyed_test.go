package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedSerialisesSameKey(t *testing.T) {
	var (
		k       Keyed
		inside  int32
		overlap int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("room-1")
			defer unlock()
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlap), "two holders of the same key at once")
	assert.Zero(t, k.Len(), "entries must be released once unused")
}

func TestKeyedDistinctKeysDoNotBlock(t *testing.T) {
	var k Keyed
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
	assert.Equal(t, 1, k.Len())
}

func TestLockAllOrdersAndDedupes(t *testing.T) {
	var (
		k  Keyed
		wg sync.WaitGroup
	)
	// opposite argument orders would deadlock without sorting
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			k.LockAll("x", "y", "x")()
		}()
		go func() {
			defer wg.Done()
			k.LockAll("y", "x")()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
	assert.Zero(t, k.Len())
}
