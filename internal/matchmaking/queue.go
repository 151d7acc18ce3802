package matchmaking

import (
	"sync"
	"time"
)

const (
	DefaultRatingThreshold = 50
)

// QueueOptions controls the rating gate. With ThresholdStep > 0 the allowed
// gap grows by ThresholdStep for every StepInterval a participant has waited,
// capped at MaxThreshold. A zero Threshold means DefaultRatingThreshold.
type QueueOptions struct {
	Threshold     int
	ThresholdStep int
	StepInterval  time.Duration
	MaxThreshold  int
}

func DefaultQueueOptions() QueueOptions {
	return QueueOptions{Threshold: DefaultRatingThreshold, MaxThreshold: DefaultRatingThreshold}
}

// Queue is the FIFO of participants waiting for an opponent. Pairs leave the
// queue and enter the coordinator inside one critical section, so a
// participant is never both waiting and pending.
//
// Lock order is queue then coordinator. The coordinator never calls back into
// the queue.
type Queue struct {
	mu      sync.Mutex
	waiting []*WaitingParticipant
	coord   *Coordinator
	opts    QueueOptions
	now     func() time.Time
}

func NewQueue(coord *Coordinator, opts QueueOptions) *Queue {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultRatingThreshold
	}
	if opts.MaxThreshold > 0 && opts.MaxThreshold < opts.Threshold {
		opts.MaxThreshold = opts.Threshold
	}
	return &Queue{
		coord: coord,
		opts:  opts,
		now:   time.Now,
	}
}

// Enqueue adds p to the back of the queue and runs a pairing pass. Enqueuing
// a participant that is already waiting returns its position; enqueuing one
// that is already paired returns the pending match.
func (q *Queue) Enqueue(p WaitingParticipant) EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if m, ok := q.coord.Lookup(p.ParticipantID); ok {
		return EnqueueResult{Match: &m}
	}
	if pos := q.positionLocked(p.ParticipantID); pos > 0 {
		return EnqueueResult{Queued: true, Position: pos}
	}

	if p.EnqueuedAt.IsZero() {
		p.EnqueuedAt = q.now()
	}
	q.waiting = append(q.waiting, &p)

	res := EnqueueResult{Formed: q.pairLocked()}
	for i := range res.Formed {
		if res.Formed[i].Has(p.ParticipantID) {
			m := res.Formed[i]
			res.Match = &m
			return res
		}
	}
	res.Queued = true
	res.Position = q.positionLocked(p.ParticipantID)
	return res
}

// Pair runs a pairing pass without enqueuing anyone.
func (q *Queue) Pair() []PendingMatch {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pairLocked()
}

// Cancel removes a waiting participant. It reports whether one was removed.
func (q *Queue) Cancel(participantID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiting {
		if w.ParticipantID == participantID {
			q.removeAt(i)
			return true
		}
	}
	return false
}

// Expire removes every participant enqueued before cutoff and returns them.
func (q *Queue) Expire(cutoff time.Time) []WaitingParticipant {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []WaitingParticipant
	kept := q.waiting[:0]
	for _, w := range q.waiting {
		if w.EnqueuedAt.Before(cutoff) {
			expired = append(expired, *w)
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(q.waiting); i++ {
		q.waiting[i] = nil
	}
	q.waiting = kept
	return expired
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Position returns the 1-based queue position, or 0 if not waiting.
func (q *Queue) Position(participantID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(participantID)
}

func (q *Queue) positionLocked(participantID string) int {
	for i, w := range q.waiting {
		if w.ParticipantID == participantID {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) removeAt(i int) {
	copy(q.waiting[i:], q.waiting[i+1:])
	q.waiting[len(q.waiting)-1] = nil
	q.waiting = q.waiting[:len(q.waiting)-1]
}

// pairLocked pairs the two oldest participants while they are compatible.
// An incompatible head is rotated to the back and the pass stops, so a
// blocked head cannot starve everyone behind it.
func (q *Queue) pairLocked() []PendingMatch {
	var formed []PendingMatch
	for len(q.waiting) >= 2 {
		a, b := q.waiting[0], q.waiting[1]

		// Stale entries should not exist, but drop them rather than double-pair.
		if q.coord.isPending(a.ParticipantID) {
			q.removeAt(0)
			continue
		}
		if q.coord.isPending(b.ParticipantID) {
			q.removeAt(1)
			continue
		}

		if !q.canMatch(a, b) {
			q.removeAt(0)
			q.waiting = append(q.waiting, a)
			break
		}

		q.removeAt(0)
		q.removeAt(0)
		formed = append(formed, q.coord.register(a.ParticipantID, b.ParticipantID))
	}
	return formed
}

func (q *Queue) canMatch(a, b *WaitingParticipant) bool {
	if a.Rating == nil || b.Rating == nil {
		return true
	}

	diff := *a.Rating - *b.Rating
	if diff < 0 {
		diff = -diff
	}

	// Either side's window is enough
	now := q.now()
	return diff <= q.ratingRange(now.Sub(a.EnqueuedAt)) || diff <= q.ratingRange(now.Sub(b.EnqueuedAt))
}

// ratingRange returns the allowed rating gap after waiting for wait.
func (q *Queue) ratingRange(wait time.Duration) int {
	r := q.opts.Threshold
	if q.opts.ThresholdStep <= 0 || q.opts.StepInterval <= 0 || wait <= 0 {
		return r
	}

	r += int(wait/q.opts.StepInterval) * q.opts.ThresholdStep
	if q.opts.MaxThreshold > 0 && r > q.opts.MaxThreshold {
		r = q.opts.MaxThreshold
	}
	return r
}
