package stream

import (
	"context"
	"errors"
	"time"
)

const (
	maxRecoveryAttempts = 3

	// earlyEndSlack is how far before the known length an EOF still counts
	// as a natural end.
	earlyEndSlack = 5 * time.Second
)

// Recovery decides whether a segment that ended badly should be reopened
// from the current position. One Recovery is used per track.
type Recovery struct {
	Max      int
	attempts int
}

func NewRecovery() *Recovery {
	return &Recovery{Max: maxRecoveryAttempts}
}

// Retry reports whether another attempt is allowed after err. Cancellation
// and stuck connections are never retried.
func (r *Recovery) Retry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStuck) {
		return false
	}
	if r.attempts >= r.Max {
		return false
	}
	r.attempts++
	return true
}

func (r *Recovery) Attempts() int {
	return r.attempts
}

// EndedEarly reports whether an EOF at position looks like a dropped stream
// rather than the end of a track of the given length. Live streams and
// tracks of unknown length never end early.
func EndedEarly(position, length time.Duration, live bool) bool {
	if live || length <= 0 {
		return false
	}
	return position+earlyEndSlack < length
}
