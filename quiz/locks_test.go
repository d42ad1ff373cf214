package quiz

import (
	"sync"
	"testing"
	"time"
)

func TestUserLocksSerializeSameUser(t *testing.T) {
	l := newUserLocks()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(1)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("%d goroutines held the same user lock at once", maxSeen)
	}
	if l.size() != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", l.size())
	}
}

func TestUserLocksIndependentUsers(t *testing.T) {
	l := newUserLocks()
	unlockA := l.Lock(1)
	done := make(chan struct{})

	go func() {
		unlockB := l.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on user 2 blocked behind user 1")
	}
	unlockA()
}
