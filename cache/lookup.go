package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher produces the value for a raw key on a cache miss. The cache
// imposes no retry or timeout policy; that belongs to the fetcher.
type Fetcher[K, V any] func(ctx context.Context, raw K) (V, error)

// Lookup implements get-or-compute on top of a Store.
//
// On a miss the fetcher runs outside the store lock. Without deduplication
// two concurrent misses for the same key may both fetch; both write and
// the last write wins, leaving a single entry. With deduplication
// concurrent misses for one canonical key share a single fetch, even
// across different Lookups over the same Store. The shared fetch stores
// with the TTL of the Lookup that started it.
type Lookup[K, V any] struct {
	store      *Store[K, V]
	defaultTTL time.Duration
	dedupe     bool
	logger     *zap.Logger
}

// LookupOption configures a Lookup.
type LookupOption func(*lookupOptions)

type lookupOptions struct {
	ttl    time.Duration
	dedupe *bool
}

// WithDefaultTTL overrides the TTL applied to fetched values.
func WithDefaultTTL(ttl time.Duration) LookupOption {
	return func(o *lookupOptions) { o.ttl = ttl }
}

// WithDeduplication coalesces concurrent misses for the same key into one
// fetch, regardless of Config.Deduplicate.
func WithDeduplication(enabled bool) LookupOption {
	return func(o *lookupOptions) { o.dedupe = &enabled }
}

// NewLookup creates a Lookup over store. The default TTL and deduplication
// come from the store's Config unless overridden.
func NewLookup[K, V any](store *Store[K, V], opts ...LookupOption) *Lookup[K, V] {
	cfg := store.Config()
	o := lookupOptions{ttl: cfg.DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	dedupe := cfg.Deduplicate
	if o.dedupe != nil {
		dedupe = *o.dedupe
	}

	return &Lookup[K, V]{
		store:      store,
		defaultTTL: o.ttl,
		dedupe:     dedupe,
		logger:     store.logger,
	}
}

// Store returns the underlying store.
func (l *Lookup[K, V]) Store() *Store[K, V] { return l.store }

// GetOrCompute returns the cached value for raw, calling fetch on a miss.
//
// A fetch error is returned exactly as the fetcher produced it and nothing
// is cached, so the next call retries from scratch. A successful value is
// stored for the default TTL before being returned.
func (l *Lookup[K, V]) GetOrCompute(ctx context.Context, raw K, fetch Fetcher[K, V]) (V, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if v, ok := l.store.Get(raw); ok {
		return v, nil
	}

	if !l.dedupe {
		return l.fetchAndStore(ctx, raw, fetch)
	}

	// The shared fetch runs detached from the caller that happened to
	// start it; each caller stops waiting when its own ctx ends.
	key := l.store.Key(raw)
	detached := context.WithoutCancel(ctx)
	ch := l.store.group.DoChan(key.String(), func() (any, error) {
		// a caller that lost the race may arrive after the leader stored
		if v, ok := l.store.peek(key); ok {
			return v, nil
		}
		return l.fetchAndStore(detached, raw, fetch)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}

	if res.Shared {
		l.store.stats.coalesced.Add(1)
		l.logger.Debug("coalesced fetch", zap.String("key", key.String()))
	}
	if res.Err != nil {
		var zero V
		return zero, res.Err
	}

	// A nil interface result cannot be asserted to V; fall back to zero.
	v, _ := res.Val.(V)
	if res.Shared {
		v = l.store.copyValue(v)
	}
	return v, nil
}

func (l *Lookup[K, V]) fetchAndStore(ctx context.Context, raw K, fetch Fetcher[K, V]) (V, error) {
	l.store.stats.fetches.Add(1)

	v, err := fetch(ctx, raw)
	if err != nil {
		l.store.stats.fetchFailed(ctx)
		l.logger.Debug("fetch failed", zap.String("key", l.store.Key(raw).String()), zap.Error(err))
		var zero V
		return zero, err
	}

	l.store.Set(raw, v, l.defaultTTL)
	return v, nil
}

// GetOrFetch runs a single get-or-compute round against store using its
// configured default TTL. With Config.Deduplicate set, concurrent calls
// for one key share a fetch with each other and with any Lookup over
// store.
func GetOrFetch[K, V any](ctx context.Context, store *Store[K, V], raw K, fetch Fetcher[K, V]) (V, error) {
	return NewLookup(store).GetOrCompute(ctx, raw, fetch)
}
