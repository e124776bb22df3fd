package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func TestSeenMessageDeduplicates(t *testing.T) {
	g := NewGuard(10)
	if g.SeenMessage("SM1") {
		t.Fatal("first delivery must not be seen")
	}
	if !g.SeenMessage("SM1") {
		t.Fatal("redelivery must be seen")
	}
	if g.SeenMessage("") {
		t.Fatal("empty ids are never deduplicated")
	}
}

func TestSeenMessageEvictsWholesaleAtCapacity(t *testing.T) {
	g := NewGuard(3)
	for i := 0; i < 3; i++ {
		g.SeenMessage(fmt.Sprintf("SM%d", i))
	}
	// Set is full; the next new id clears it entirely.
	if g.SeenMessage("SM3") {
		t.Fatal("new id at capacity must not read as seen")
	}
	if g.SeenMessage("SM0") {
		t.Fatal("evicted id must read as new again")
	}
	if !g.SeenMessage("SM3") {
		t.Fatal("id recorded after eviction must be remembered")
	}
}

func TestLockSerializesPerUser(t *testing.T) {
	g := NewGuard(10)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := g.Lock("user-a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestLockIsIndependentAcrossUsers(t *testing.T) {
	g := NewGuard(10)
	unlockA := g.Lock("user-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := g.Lock("user-b")
		unlockB()
		close(done)
	}()
	<-done
}
