package memory

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/samueltorres/r8backend/pkg/store"
)

const shardCount uint64 = 64

type record struct {
	value     int64
	version   store.Version
	expiresAt time.Time
}

func (r *record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// Storage is an in-process versioned key-value store. Every Conn handed
// out by Dialer shares the same records, so it behaves like a single
// store server reached over several connections.
type Storage struct {
	shardedRecords []map[string]*record
	shardedMutexes []*sync.RWMutex

	versionSeq atomic.Uint64
	now        func() time.Time
	logger     *logrus.Logger
}

type Option func(*Storage)

// WithClock replaces the time source used to evaluate TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// NewStorage creates an empty in-memory store.
func NewStorage(logger *logrus.Logger, opts ...Option) *Storage {
	s := &Storage{
		shardedRecords: make([]map[string]*record, shardCount),
		shardedMutexes: make([]*sync.RWMutex, shardCount),
		now:            time.Now,
		logger:         logger,
	}

	for i := uint64(0); i < shardCount; i++ {
		s.shardedRecords[i] = make(map[string]*record)
		s.shardedMutexes[i] = &sync.RWMutex{}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Dialer returns a store.Dialer whose connections all point at s.
func (s *Storage) Dialer() store.Dialer {
	return func() (store.Conn, error) {
		return s, nil
	}
}

func (s *Storage) shard(key string) uint64 {
	return fnv1a.HashString64(key) % shardCount
}

func (s *Storage) nextVersion() store.Version {
	return store.Version(s.versionSeq.Inc())
}

func (s *Storage) deadline(ttl int32) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(time.Duration(ttl) * time.Second)
}

// GetWithVersion implements store.Conn.
func (s *Storage) GetWithVersion(ctx context.Context, key string) (int64, store.Version, bool, error) {
	shard := s.shard(key)
	mux := s.shardedMutexes[shard]
	mux.RLock()
	defer mux.RUnlock()

	r, ok := s.shardedRecords[shard][key]
	if !ok || r.expired(s.now()) {
		return 0, 0, false, nil
	}

	return r.value, r.version, true, nil
}

// CompareAndSwap implements store.Conn.
func (s *Storage) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	shard := s.shard(key)
	mux := s.shardedMutexes[shard]
	mux.Lock()
	defer mux.Unlock()

	r, ok := s.shardedRecords[shard][key]
	if !ok || r.expired(s.now()) || r.version != version {
		return false, nil
	}

	r.value = value
	r.version = s.nextVersion()
	r.expiresAt = s.deadline(ttl)

	return true, nil
}

// AddIfAbsent implements store.Conn.
func (s *Storage) AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error) {
	shard := s.shard(key)
	mux := s.shardedMutexes[shard]
	mux.Lock()
	defer mux.Unlock()

	if r, ok := s.shardedRecords[shard][key]; ok && !r.expired(s.now()) {
		return false, nil
	}

	s.shardedRecords[shard][key] = &record{
		value:     value,
		version:   s.nextVersion(),
		expiresAt: s.deadline(ttl),
	}

	return true, nil
}

// MultiGet implements store.Conn.
func (s *Storage) MultiGet(ctx context.Context, keys []string) (map[string]int64, error) {
	values := make(map[string]int64, len(keys))
	now := s.now()

	for _, key := range keys {
		shard := s.shard(key)
		mux := s.shardedMutexes[shard]
		mux.RLock()
		if r, ok := s.shardedRecords[shard][key]; ok && !r.expired(now) {
			values[key] = r.value
		}
		mux.RUnlock()
	}

	return values, nil
}

// Close implements store.Conn. Records survive it since other
// connections may still be using the store.
func (s *Storage) Close() error {
	return nil
}

// Purge removes expired records. Lookups already ignore them; this
// only reclaims memory.
func (s *Storage) Purge() int {
	now := s.now()
	removed := 0

	for i := uint64(0); i < shardCount; i++ {
		mux := s.shardedMutexes[i]
		mux.Lock()
		for k, r := range s.shardedRecords[i] {
			if r.expired(now) {
				delete(s.shardedRecords[i], k)
				removed++
			}
		}
		mux.Unlock()
	}

	if removed > 0 {
		s.logger.Debugf("purged %d expired records", removed)
	}

	return removed
}

// RunPurge calls Purge every interval until cancel is closed.
func (s *Storage) RunPurge(cancel chan struct{}, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return nil
		case <-ticker.C:
			s.Purge()
		}
	}
}
