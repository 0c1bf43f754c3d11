package counter

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	num       float64
	str       string
	isString  bool
	expiresAt time.Time // zero = no expiry
}

// MemoryStore is an in-process Store used when no Redis is configured and as
// the test backend. Counters are process-local, so breaker and budget state
// is not shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock builds a MemoryStore on an injected clock so tests
// can control expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

// live returns the entry at key, dropping it first if it has expired.
// Callers must hold mu.
func (s *MemoryStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) upsert(key string, ttl time.Duration) *memoryEntry {
	e := s.live(key)
	if e == nil {
		e = &memoryEntry{}
		if ttl > 0 {
			e.expiresAt = s.now().Add(ttl)
		}
		s.entries[key] = e
	}
	return e
}

func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key, ttl)
	e.num += float64(delta)
	return int64(e.num), nil
}

func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.upsert(key, ttl)
	e.num += delta
	return e.num, nil
}

func (s *MemoryStore) GetInt(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	if e.isString {
		return strconv.ParseInt(e.str, 10, 64)
	}
	return int64(e.num), nil
}

func (s *MemoryStore) GetFloat(ctx context.Context, key string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	if e.isString {
		return strconv.ParseFloat(e.str, 64)
	}
	return e.num, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return "", false, nil
	}
	if e.isString {
		return e.str, true, nil
	}
	return strconv.FormatFloat(e.num, 'f', -1, 64), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &memoryEntry{str: value, isString: true}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
