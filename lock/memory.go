package lock

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultStripes = 64

// MemoryLocker is an in-process Locker. Keys hash onto a fixed set of
// stripes so unrelated keys rarely share a mutex.
type MemoryLocker struct {
	stripes []stripe
	now     func() time.Time
}

type stripe struct {
	mu      sync.Mutex
	holders map[string]holder
}

type holder struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker returns a MemoryLocker with the default stripe count.
func NewMemoryLocker() *MemoryLocker {
	return NewMemoryLockerWithStripes(defaultStripes)
}

// NewMemoryLockerWithStripes returns a MemoryLocker with n stripes.
func NewMemoryLockerWithStripes(n int) *MemoryLocker {
	if n < 1 {
		n = 1
	}
	m := &MemoryLocker{stripes: make([]stripe, n), now: time.Now}
	for i := range m.stripes {
		m.stripes[i].holders = make(map[string]holder)
	}
	return m
}

func (m *MemoryLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration, policy RetryPolicy) (Lock, error) {
	keys, err := normalizeKeys(keys)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()

	err = retry(ctx, policy, func() (bool, error) {
		return m.tryAcquire(keys, token, ttl), nil
	})
	if err != nil {
		return nil, err
	}
	return &memoryLock{locker: m, keys: keys, token: token}, nil
}

func (m *MemoryLocker) stripeIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.stripes)))
}

// lockStripes locks the stripes covering keys in index order and returns the
// matching unlock func.
func (m *MemoryLocker) lockStripes(keys []string) func() {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, m.stripeIndex(k))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		m.stripes[i].mu.Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			m.stripes[idx[j]].mu.Unlock()
		}
	}
}

func (m *MemoryLocker) tryAcquire(keys []string, token string, ttl time.Duration) bool {
	unlock := m.lockStripes(keys)
	defer unlock()

	now := m.now()
	for _, k := range keys {
		s := &m.stripes[m.stripeIndex(k)]
		if h, ok := s.holders[k]; ok && now.Before(h.expiresAt) {
			return false
		}
	}
	for _, k := range keys {
		s := &m.stripes[m.stripeIndex(k)]
		s.holders[k] = holder{token: token, expiresAt: now.Add(ttl)}
	}
	return true
}

func (m *MemoryLocker) release(keys []string, token string) error {
	unlock := m.lockStripes(keys)
	defer unlock()

	now := m.now()
	lost := false
	for _, k := range keys {
		s := &m.stripes[m.stripeIndex(k)]
		h, ok := s.holders[k]
		if !ok || h.token != token {
			lost = true
			continue
		}
		if !now.Before(h.expiresAt) {
			lost = true
		}
		delete(s.holders, k)
	}
	if lost {
		return ErrNotHeld
	}
	return nil
}

type memoryLock struct {
	locker *MemoryLocker
	keys   []string
	token  string
	once   sync.Once
	err    error
}

func (l *memoryLock) Keys() []string { return slices.Clone(l.keys) }

func (l *memoryLock) Release(context.Context) error {
	l.once.Do(func() {
		l.err = l.locker.release(l.keys, l.token)
	})
	return l.err
}
