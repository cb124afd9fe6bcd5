package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"math-rush-service/internal/domain"
)

// AnswerBuffer collects the burst of near-simultaneous submissions for the
// in-flight round before resolution runs. A fixed short delay after the
// first submission of a burst caps resolution latency while still
// absorbing network jitter between participants.
type AnswerBuffer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending []domain.Submission
	armed   bool
}

func NewAnswerBuffer(clock clockwork.Clock) *AnswerBuffer {
	return &AnswerBuffer{clock: clock}
}

// Add appends a submission to the pending queue.
func (b *AnswerBuffer) Add(sub domain.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, sub)
}

// ArmTimerIfNeeded arms a one-shot resolution timer unless one is already
// armed. Arming is idempotent: at most one timer is pending at any time.
// Once the timer fires, onFire runs exactly once and a subsequent
// submission may arm a new timer. Reports whether a timer was armed.
func (b *AnswerBuffer) ArmTimerIfNeeded(delay time.Duration, onFire func()) bool {
	b.mu.Lock()
	if b.armed {
		b.mu.Unlock()
		return false
	}
	b.armed = true
	b.mu.Unlock()

	b.clock.AfterFunc(delay, func() {
		b.mu.Lock()
		b.armed = false
		b.mu.Unlock()
		onFire()
	})
	return true
}

// DrainAll atomically empties the queue and returns its contents.
// Submissions added after the snapshot belong to the next buffering window.
func (b *AnswerBuffer) DrainAll() []domain.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.pending
	b.pending = nil
	return drained
}

// RemoveParticipant discards pending entries for a departing participant.
// Entries already recorded in the round log stay valid evidence for
// resolution; this only stops follow-up notifications to a dead connection.
func (b *AnswerBuffer) RemoveParticipant(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.pending[:0]
	for _, sub := range b.pending {
		if sub.Username != username {
			kept = append(kept, sub)
		}
	}
	b.pending = kept
}
