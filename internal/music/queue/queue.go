// Package queue holds the per-guild pending track list and play history.
//
// A Queue is safe for concurrent use. Its blocking side (Wait, Get, GetAt)
// is meant for a single consumer, the guild's player loop, but any number of
// waiters is handled correctly: every put wakes exactly one of them.
package queue

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music/track"
)

var ErrInvalidPosition = errors.New("queue position out of range")

type Queue struct {
	mu      sync.Mutex
	pending []track.Track
	history []track.Track
	loop    bool
	waiters []chan struct{}
}

func New() *Queue {
	return &Queue{
		pending: make([]track.Track, 0),
		history: make([]track.Track, 0),
	}
}

// Put appends tracks to the tail.
func (q *Queue) Put(tracks ...track.Track) {
	if len(tracks) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, tracks...)
	q.wakeOne()
}

// PutAt inserts tracks at position, clamped to the queue bounds.
func (q *Queue) PutAt(position int, tracks ...track.Track) {
	if len(tracks) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	position = max(0, min(position, len(q.pending)))
	q.pending = slices.Insert(q.pending, position, tracks...)
	q.wakeOne()
}

// Wait blocks until the queue holds at least one track or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			q.mu.Unlock()
			return nil
		}
		// Registered under the same lock as the emptiness check, so a put
		// that lands after the check always finds this waiter.
		w := make(chan struct{}, 1)
		q.waiters = append(q.waiters, w)
		q.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			q.mu.Lock()
			if !q.removeWaiter(w) && len(q.pending) > 0 {
				// Signalled and cancelled at once: hand the wakeup on.
				q.wakeOne()
			}
			q.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Get removes and returns the head of the queue, blocking while empty.
func (q *Queue) Get(ctx context.Context) (track.Track, error) {
	return q.GetAt(ctx, 0)
}

// GetAt removes and returns the track at position, blocking while empty.
// Out-of-range positions are clamped. The track is recorded in history.
func (q *Queue) GetAt(ctx context.Context, position int) (track.Track, error) {
	for {
		if err := q.Wait(ctx); err != nil {
			return track.Track{}, err
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			continue
		}
		position = max(0, min(position, len(q.pending)-1))
		t := q.pending[position]
		q.pending = slices.Delete(q.pending, position, position+1)
		q.history = append(q.history, t)
		q.mu.Unlock()
		return t, nil
	}
}

// TryGet pops the head without blocking. The track is recorded in history.
func (q *Queue) TryGet() (track.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return track.Track{}, false
	}
	t := q.pending[0]
	q.pending = slices.Delete(q.pending, 0, 1)
	q.history = append(q.history, t)
	return t, true
}

// Remove drops the pending track at position without recording history.
func (q *Queue) Remove(position int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 0 || position >= len(q.pending) {
		return track.Track{}, ErrInvalidPosition
	}
	t := q.pending[position]
	q.pending = slices.Delete(q.pending, position, position+1)
	return t, nil
}

// Move relocates the pending track at from to index to.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrInvalidPosition
	}
	t := q.pending[from]
	q.pending = slices.Delete(q.pending, from, from+1)
	q.pending = slices.Insert(q.pending, to, t)
	return nil
}

func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Tracks returns a copy of the pending tracks in play order.
func (q *Queue) Tracks() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Duration is the summed length of pending tracks, streams excluded.
func (q *Queue) Duration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	var total time.Duration
	for _, t := range q.pending {
		if !t.IsStream {
			total += t.Length
		}
	}
	return total
}

func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
}

func (q *Queue) Reverse() {
	q.mu.Lock()
	defer q.mu.Unlock()
	slices.Reverse(q.pending)
}

// Clear empties the pending tracks. History is kept.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = q.pending[:0]
}

func (q *Queue) Loop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

func (q *Queue) SetLoop(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = enabled
}

// LastPlayed returns the most recently dequeued track.
func (q *Queue) LastPlayed() (track.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return track.Track{}, false
	}
	return q.history[len(q.history)-1], true
}

// History returns previously dequeued tracks, most recent first.
func (q *Queue) History() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := slices.Clone(q.history)
	slices.Reverse(out)
	return out
}

func (q *Queue) HistoryLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.history)
}

func (q *Queue) ClearHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = q.history[:0]
}

// Waiters reports how many callers are blocked in Wait.
func (q *Queue) Waiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// wakeOne signals the oldest waiter. Callers hold q.mu.
func (q *Queue) wakeOne() {
	if len(q.waiters) == 0 {
		return
	}
	w := q.waiters[0]
	q.waiters = q.waiters[1:]
	w <- struct{}{}
}

// removeWaiter unregisters w, reporting whether it was still registered.
// Callers hold q.mu.
func (q *Queue) removeWaiter(w chan struct{}) bool {
	i := slices.Index(q.waiters, w)
	if i < 0 {
		return false
	}
	q.waiters = slices.Delete(q.waiters, i, i+1)
	return true
}
