package cache

import (
	"sync"
	"time"

	"github.com/goliatone/go-canonical-cache/internal/cacheinfra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store maps canonical keys to expiring entries. Raw keys of type K are
// normalized on every call, so raw keys that differ only superficially
// share a slot.
//
// Expiry is lazy: there is no background timer. Expired entries are
// dropped when a read touches them, when Cleanup runs, or during the
// opportunistic purge that follows every Config.CleanupEvery writes.
//
// Values cross the store boundary through the configured Cloner. Without
// one, Get and Remove hand back the stored value itself: callers get
// independent copies only for plain value types, while slices, maps and
// pointers alias the cached state. Set WithCloner for such V.
//
// A Store is safe for concurrent use. One mutex guards every operation;
// entries are immutable so replacement is a single swap.
type Store[K, V any] struct {
	mu    sync.Mutex
	table *cacheinfra.Table[Entry[V]]

	// in-flight fetches per canonical key, shared by every Lookup over
	// this store
	group singleflight.Group

	normalizer KeyNormalizer[K]
	strategy   HashStrategy
	cfg        Config

	name   string
	clock  Clock
	cloner Cloner
	logger *zap.Logger
	stats  *counters

	writes int
}

// NewStore creates a Store. It fails only when cfg is invalid.
func NewStore[K, V any](cfg Config, normalizer KeyNormalizer[K], opts ...Option) (*Store[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if normalizer == nil {
		return nil, &ConfigError{Field: "normalizer", Message: "cannot be nil"}
	}

	o := buildOptions(opts)

	strategy := o.strategy
	if strategy == nil {
		var err error
		if strategy, err = NewHashStrategy(cfg.HashStrategy); err != nil {
			return nil, &ConfigError{Field: "HashStrategy", Message: err.Error()}
		}
	}

	equal := func(a, b string) bool {
		return strategy.Equal(NewCanonicalKey(a), NewCanonicalKey(b))
	}

	s := &Store[K, V]{
		table:      cacheinfra.NewTable[Entry[V]](cfg.InitialCapacity, equal),
		normalizer: normalizer,
		strategy:   strategy,
		cfg:        cfg,
		name:       o.name,
		clock:      o.clock,
		cloner:     o.cloner,
		logger:     o.logger.With(zap.String("cache", o.name), zap.String("hash_strategy", strategy.Name())),
		stats:      newCounters(o.meter, o.name),
	}
	return s, nil
}

// Key returns the canonical key raw normalizes to.
func (s *Store[K, V]) Key(raw K) CanonicalKey {
	return s.normalizer.Normalize(raw)
}

// Get returns the live value stored under raw, copied when a Cloner is set. An entry found
// expired is removed as a side effect and reported as a miss.
func (s *Store[K, V]) Get(raw K) (V, bool) {
	key := s.Key(raw)
	digest := s.strategy.Hash(key)

	s.mu.Lock()
	entry, ok := s.table.Get(digest, key.s)
	if ok && entry.Expired(s.clock.Now()) {
		s.table.Delete(digest, key.s)
		s.mu.Unlock()

		s.stats.expired(1)
		s.stats.miss()
		s.logger.Debug("lazily evicted expired entry", zap.String("key", key.s))
		var zero V
		return zero, false
	}
	s.mu.Unlock()

	if !ok {
		s.stats.miss()
		var zero V
		return zero, false
	}

	s.stats.hit()
	return s.copyValue(entry.Value), true
}

// Set stores value under raw until now+ttl, replacing any existing entry.
// A ttl <= 0 stores nothing and drops any existing entry.
func (s *Store[K, V]) Set(raw K, value V, ttl time.Duration) {
	key := s.Key(raw)
	digest := s.strategy.Hash(key)

	if ttl <= 0 {
		s.mu.Lock()
		s.table.Delete(digest, key.s)
		s.mu.Unlock()
		return
	}

	stored := s.copyValue(value)

	s.mu.Lock()
	now := s.clock.Now()
	s.table.Put(digest, key.s, Entry[V]{Value: stored, ExpiresAt: now.Add(ttl)})

	purged := 0
	s.writes++
	if s.cfg.CleanupEvery > 0 && s.writes >= s.cfg.CleanupEvery {
		s.writes = 0
		purged = s.purgeLocked(now)
	}
	s.mu.Unlock()

	s.stats.sets.Add(1)
	if purged > 0 {
		s.stats.expired(purged)
		s.logger.Debug("opportunistic cleanup", zap.Int("purged", purged))
	}
}

// Contains reports whether key holds a live entry. Unlike Get it neither
// evicts nor touches the hit and miss counters.
func (s *Store[K, V]) Contains(key CanonicalKey) bool {
	_, ok := s.live(key)
	return ok
}

// peek is Get for an already normalized key, without eviction or stats.
func (s *Store[K, V]) peek(key CanonicalKey) (V, bool) {
	entry, ok := s.live(key)
	if !ok {
		var zero V
		return zero, false
	}
	return s.copyValue(entry.Value), true
}

func (s *Store[K, V]) live(key CanonicalKey) (Entry[V], bool) {
	digest := s.strategy.Hash(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.table.Get(digest, key.s)
	if !ok || entry.Expired(s.clock.Now()) {
		return Entry[V]{}, false
	}
	return entry, true
}

// Remove deletes the entry stored under raw and returns its value. An
// expired entry is still removed but reported as absent.
func (s *Store[K, V]) Remove(raw K) (V, bool) {
	return s.RemoveKey(s.Key(raw))
}

// RemoveKey is Remove for an already normalized key.
func (s *Store[K, V]) RemoveKey(key CanonicalKey) (V, bool) {
	digest := s.strategy.Hash(key)

	s.mu.Lock()
	entry, ok := s.table.Delete(digest, key.s)
	now := s.clock.Now()
	s.mu.Unlock()

	var zero V
	if !ok {
		return zero, false
	}
	s.stats.removals.Add(1)
	if entry.Expired(now) {
		s.stats.expired(1)
		return zero, false
	}
	return s.copyValue(entry.Value), true
}

// RemoveFunc deletes every entry whose canonical key satisfies match and
// returns how many were removed.
func (s *Store[K, V]) RemoveFunc(match func(key CanonicalKey) bool) int {
	s.mu.Lock()
	removed := s.table.DeleteFunc(func(key string, _ Entry[V]) bool {
		return match(NewCanonicalKey(key))
	})
	s.mu.Unlock()

	s.stats.removals.Add(uint64(removed))
	return removed
}

// Cleanup purges every entry whose expiry instant has passed and returns
// the number purged.
func (s *Store[K, V]) Cleanup() int {
	s.mu.Lock()
	purged := s.purgeLocked(s.clock.Now())
	chain := s.table.MaxBucketLen()
	s.mu.Unlock()

	s.stats.expired(purged)
	s.logger.Debug("cleanup pass", zap.Int("purged", purged), zap.Int("longest_chain", chain))
	return purged
}

// Keys returns the canonical keys of all live entries, in no particular
// order.
func (s *Store[K, V]) Keys() []CanonicalKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	keys := make([]CanonicalKey, 0, s.table.Len())
	s.table.Range(func(key string, e Entry[V]) bool {
		if !e.Expired(now) {
			keys = append(keys, NewCanonicalKey(key))
		}
		return true
	})
	return keys
}

// Clear removes every entry.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	s.table.Reset()
	s.writes = 0
	s.mu.Unlock()
}

// Len returns the number of stored entries, including entries that have
// expired but not yet been purged by a read, Cleanup or Remove.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Len()
}

// IsEmpty reports whether Len() == 0. Like Len it counts unpurged entries.
func (s *Store[K, V]) IsEmpty() bool {
	return s.Len() == 0
}

// Strategy returns the hash strategy fixed at construction.
func (s *Store[K, V]) Strategy() HashStrategy { return s.strategy }

// Config returns the configuration the store was built with.
func (s *Store[K, V]) Config() Config { return s.cfg }

// Name returns the label set with WithName.
func (s *Store[K, V]) Name() string { return s.name }

// Stats returns a snapshot of the store counters.
func (s *Store[K, V]) Stats() Stats { return s.stats.snapshot() }

func (s *Store[K, V]) purgeLocked(now time.Time) int {
	return s.table.DeleteFunc(func(_ string, e Entry[V]) bool {
		return e.Expired(now)
	})
}

// copyValue returns v unchanged without a cloner. A failing cloner is
// logged and the original value is used.
func (s *Store[K, V]) copyValue(v V) V {
	if s.cloner == nil {
		return v
	}
	var out V
	if err := s.cloner.Clone(&out, v); err != nil {
		s.logger.Warn("clone failed, using original value", zap.Error(err))
		return v
	}
	return out
}
