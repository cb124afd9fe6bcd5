package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"math-rush-service/internal/domain"
)

func TestArmTimerIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	buffer := NewAnswerBuffer(clock)

	var fired int32
	onFire := func() { atomic.AddInt32(&fired, 1) }

	if !buffer.ArmTimerIfNeeded(100*time.Millisecond, onFire) {
		t.Fatalf("expected first arm to succeed")
	}
	if buffer.ArmTimerIfNeeded(100*time.Millisecond, onFire) {
		t.Fatalf("expected second arm to be a no-op while a timer is pending")
	}

	clock.BlockUntil(1)
	clock.Advance(150 * time.Millisecond)
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })

	// After firing, a subsequent submission may arm a fresh timer.
	if !buffer.ArmTimerIfNeeded(100*time.Millisecond, onFire) {
		t.Fatalf("expected re-arm to succeed after firing")
	}
	clock.BlockUntil(1)
	clock.Advance(150 * time.Millisecond)
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 2 })
}

func TestDrainAllIdempotent(t *testing.T) {
	buffer := NewAnswerBuffer(clockwork.NewFakeClock())
	buffer.Add(domain.Submission{Username: "a", Timestamp: 1, Correct: true})
	buffer.Add(domain.Submission{Username: "b", Timestamp: 2, Correct: true})

	first := buffer.DrainAll()
	if len(first) != 2 {
		t.Fatalf("expected 2 drained, got %d", len(first))
	}
	if second := buffer.DrainAll(); len(second) != 0 {
		t.Fatalf("expected second drain empty, got %d", len(second))
	}
}

func TestConcurrentAddAndDrain(t *testing.T) {
	buffer := NewAnswerBuffer(clockwork.NewFakeClock())

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				buffer.Add(domain.Submission{Username: "u", Timestamp: int64(i), Correct: true})
			}
		}()
	}

	added := make(chan struct{})
	go func() {
		wg.Wait()
		close(added)
	}()

	var drained int64
	for {
		drained += int64(len(buffer.DrainAll()))
		select {
		case <-added:
			drained += int64(len(buffer.DrainAll()))
			if drained != writers*perWriter {
				t.Fatalf("lost or duplicated entries: drained %d, expected %d", drained, writers*perWriter)
			}
			return
		default:
		}
	}
}

func TestRemoveParticipantKeepsOthers(t *testing.T) {
	buffer := NewAnswerBuffer(clockwork.NewFakeClock())
	buffer.Add(domain.Submission{Username: "leaver", Timestamp: 1, Correct: true})
	buffer.Add(domain.Submission{Username: "stayer", Timestamp: 2, Correct: true})
	buffer.Add(domain.Submission{Username: "leaver", Timestamp: 3, Correct: true})

	buffer.RemoveParticipant("leaver")

	kept := buffer.DrainAll()
	if len(kept) != 1 || kept[0].Username != "stayer" {
		t.Fatalf("expected only stayer kept, got %+v", kept)
	}
}

// waitFor polls cond until it holds or the deadline passes. Timer callbacks
// on the fake clock run on their own goroutines, so tests synchronize on
// observable effects instead of sleeps of guessed length.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
