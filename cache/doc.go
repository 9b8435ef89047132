// Package cache provides a time-bounded in-memory cache keyed by
// structurally normalized keys, with a pluggable hashing strategy.
//
// # Overview
//
// The package is built from small pieces:
//
//   - KeyNormalizer: turns a raw key into a CanonicalKey
//   - HashStrategy: maps a CanonicalKey to a digest used for placement
//   - Store: the TTL map from CanonicalKey to Entry
//   - Lookup: get-or-compute on top of a Store and a caller supplied Fetcher
//
// # Basic Usage
//
//	store, err := cache.NewStore[string, Page](cache.DefaultConfig(), cache.NewURLNormalizer())
//	if err != nil {
//		return err
//	}
//
//	store.Set("page?id=1&user=a", page, time.Minute)
//	got, ok := store.Get("page?user=a&id=1") // same slot, ok == true
//
// Read-through access goes through a Lookup:
//
//	lookup := cache.NewLookup(store)
//	page, err := lookup.GetOrCompute(ctx, "page?id=1", func(ctx context.Context, raw string) (Page, error) {
//		return client.Fetch(ctx, raw)
//	})
//
// # Key Normalization
//
// Raw keys that differ only in superficial ordering must share a slot.
// URLNormalizer and RawKeyNormalizer keep path segments in order, sort
// parameters by name and resolve duplicate parameter names with a
// last-write-wins rule: "a=1&a=2" normalizes like "a=2". QueryNormalizer
// covers method-plus-arguments keys and sorts map arguments by key.
//
// # Hash Strategies
//
// HashSecure seeds maphash with a random per-process seed, which keeps
// crafted keys from piling into one bucket. HashFast uses xxHash, which is
// deterministic and faster, but an attacker who controls raw keys can
// force every key into one bucket and turn O(1) lookups into O(n). That
// degradation is an accepted property of HashFast, not a bug: only use it
// for trusted keys. The strategy is chosen once, at construction.
//
// # Expiry
//
// There is no background goroutine. An expired entry is removed when Get
// touches it, when Cleanup runs, or by the opportunistic purge that runs
// every Config.CleanupEvery writes. Len therefore counts entries that have
// expired but have not been purged yet:
//
//	store.Set(k, v, time.Second)
//	// ... two seconds later
//	store.Len()  // 1, still unpurged
//	store.Get(k) // miss, purges the entry
//	store.Len()  // 0
//
// # Errors
//
// Store operations never fail; absence is reported with a false boolean.
// Fetch errors pass through GetOrCompute unchanged and are never cached.
//
// # Concurrency
//
// Store guards its map with a single mutex. Lookup runs the fetcher
// outside that lock, so concurrent misses for one key may fetch twice
// unless deduplication is enabled (Config.Deduplicate or
// WithDeduplication), in which case they share a single fetch.
package cache
