// Package lock provides mutual exclusion over named resources shared by
// concurrent requests, possibly across processes.
//
// A Locker acquires every key of a request or none of them. Locks carry a
// TTL so a crashed holder cannot block other callers forever; Release is best
// effort and reports ErrNotHeld when the lease already expired or was taken
// over.
package lock

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"
)

var (
	// ErrNotAcquired is returned when the retry budget runs out while another
	// holder still owns at least one of the keys.
	ErrNotAcquired = errors.New("lock: not acquired")
	// ErrNotHeld is returned by Release when the lease was lost before release.
	ErrNotHeld = errors.New("lock: not held")
)

// RetryPolicy bounds how long Acquire keeps trying.
type RetryPolicy struct {
	Attempts int           // total tries, at least one
	Delay    time.Duration // pause between tries
	Jitter   time.Duration // random extra pause, up to this much
}

// DefaultRetry gives up after roughly five seconds of contention.
var DefaultRetry = RetryPolicy{Attempts: 50, Delay: 100 * time.Millisecond}

// Budget is the worst-case time spent waiting between attempts.
func (p RetryPolicy) Budget() time.Duration {
	if p.Attempts <= 1 {
		return 0
	}
	return time.Duration(p.Attempts-1) * (p.Delay + p.Jitter)
}

// Locker acquires multi-key locks.
type Locker interface {
	Acquire(ctx context.Context, keys []string, ttl time.Duration, retry RetryPolicy) (Lock, error)
}

// Lock is a held lease over a set of keys.
type Lock interface {
	Keys() []string
	Release(ctx context.Context) error
}

// normalizeKeys sorts and dedupes keys so overlapping requests always
// contend in the same order.
func normalizeKeys(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, errors.New("lock: no keys")
	}
	out := slices.Clone(keys)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] == "" {
		return nil, errors.New("lock: empty key")
	}
	return out, nil
}

// retry calls try until it reports success, the attempts run out or ctx is
// done.
func retry(ctx context.Context, policy RetryPolicy, try func() (bool, error)) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		wait := policy.Delay
		if policy.Jitter > 0 {
			wait += rand.N(policy.Jitter)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrNotAcquired
}
