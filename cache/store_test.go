package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-canonical-cache/pkg/testsupport"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore[V any](t *testing.T, clock Clock, opts ...Option) *Store[string, V] {
	t.Helper()

	cfg := DefaultConfig()
	cfg.CleanupEvery = 0
	opts = append([]Option{WithClock(clock)}, opts...)

	store, err := NewStore[string, V](cfg, NewURLNormalizer(), opts...)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store
}

func TestStore_OrderIndependentHit(t *testing.T) {
	store := newTestStore[string](t, testsupport.NewManualClock(time.Time{}))

	store.Set("page?id=1&user=a", "X", 60*time.Second)

	got, ok := store.Get("page?user=a&id=1")
	if !ok || got != "X" {
		t.Errorf("Get() = (%q, %v), want (\"X\", true)", got, ok)
	}
}

func TestStore_LenCountsUnpurgedEntries(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[string](t, clock)
	k := "report?year=2024"

	store.Set(k, "v1", time.Second)
	clock.Advance(2 * time.Second)

	if store.Len() != 1 {
		t.Errorf("Len() immediately after expiry = %d, want 1", store.Len())
	}
	if store.IsEmpty() {
		t.Error("IsEmpty() should be false while the expired entry is unpurged")
	}

	if _, ok := store.Get(k); ok {
		t.Error("Get() after expiry should miss")
	}

	if store.Len() != 0 {
		t.Errorf("Len() after the purging read = %d, want 0", store.Len())
	}
	if !store.IsEmpty() {
		t.Error("IsEmpty() should be true after the purging read")
	}
}

func TestStore_ExpiryBoundary(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[int](t, clock)

	store.Set("k", 1, 100*time.Millisecond)

	clock.Advance(99 * time.Millisecond)
	if _, ok := store.Get("k"); !ok {
		t.Fatal("entry should be live 1ms before expiry")
	}

	clock.Advance(time.Millisecond)
	if _, ok := store.Get("k"); ok {
		t.Fatal("entry should be expired exactly at expires_at")
	}
}

func TestStore_ExpiryWallClock(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps")
	}

	store, err := NewStore[string, string](DefaultConfig(), NewURLNormalizer())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	store.Set("key", "v", 100*time.Millisecond)
	if got, ok := store.Get("key"); !ok || got != "v" {
		t.Fatalf("Get() right after Set = (%q, %v), want (\"v\", true)", got, ok)
	}

	time.Sleep(150 * time.Millisecond)
	if _, ok := store.Get("key"); ok {
		t.Error("Get() after the TTL elapsed should miss")
	}
}

func TestStore_SetReplaces(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[string](t, clock)

	store.Set("page?b=2&a=1", "old", time.Minute)
	store.Set("page?a=1&b=2", "new", time.Hour)

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (replace, never duplicate)", store.Len())
	}

	clock.Advance(30 * time.Minute)
	got, ok := store.Get("page?a=1&b=2")
	if !ok || got != "new" {
		t.Errorf("Get() = (%q, %v), want (\"new\", true) with the replacement TTL", got, ok)
	}
}

func TestStore_SetNonPositiveTTL(t *testing.T) {
	store := newTestStore[string](t, testsupport.NewManualClock(time.Time{}))

	store.Set("k", "v", time.Minute)
	store.Set("k", "ignored", 0)

	if _, ok := store.Get("k"); ok {
		t.Error("a zero TTL should drop the existing entry")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}

	store.Set("other", "v", -time.Second)
	if store.Len() != 0 {
		t.Errorf("negative TTL stored an entry, Len() = %d", store.Len())
	}
}

func TestStore_Remove(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[string](t, clock)

	store.Set("page?x=1&y=2", "v", time.Minute)

	got, ok := store.Remove("page?y=2&x=1")
	if !ok || got != "v" {
		t.Errorf("Remove() = (%q, %v), want (\"v\", true)", got, ok)
	}
	if _, ok := store.Remove("page?y=2&x=1"); ok {
		t.Error("second Remove() should report absence")
	}

	store.Set("stale", "v", time.Second)
	clock.Advance(time.Second)
	if _, ok := store.Remove("stale"); ok {
		t.Error("Remove() of an expired entry should report absence")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestStore_RemoveFunc(t *testing.T) {
	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}))

	for i := 0; i < 5; i++ {
		store.Set(fmt.Sprintf("users/%d", i), i, time.Minute)
		store.Set(fmt.Sprintf("posts/%d", i), i, time.Minute)
	}

	removed := store.RemoveFunc(func(key CanonicalKey) bool { return key.HasPrefix("users/") })
	if removed != 5 {
		t.Errorf("RemoveFunc() = %d, want 5", removed)
	}
	if store.Len() != 5 {
		t.Errorf("Len() = %d, want 5", store.Len())
	}
	if _, ok := store.Get("posts/3"); !ok {
		t.Error("posts/3 should survive")
	}
}

func TestStore_Cleanup(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[int](t, clock)

	for i := 0; i < 10; i++ {
		ttl := time.Second
		if i%2 == 0 {
			ttl = time.Hour
		}
		store.Set(fmt.Sprintf("k%d", i), i, ttl)
	}

	clock.Advance(time.Minute)
	if purged := store.Cleanup(); purged != 5 {
		t.Errorf("Cleanup() = %d, want 5", purged)
	}
	if store.Len() != 5 {
		t.Errorf("Len() = %d, want 5", store.Len())
	}
	if purged := store.Cleanup(); purged != 0 {
		t.Errorf("second Cleanup() = %d, want 0", purged)
	}
	if got := store.Stats().Expirations; got != 5 {
		t.Errorf("Stats().Expirations = %d, want 5", got)
	}
}

func TestStore_OpportunisticCleanup(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	cfg := DefaultConfig()
	cfg.CleanupEvery = 3

	store, err := NewStore[string, int](cfg, NewURLNormalizer(), WithClock(clock))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	store.Set("a", 1, time.Second)
	store.Set("b", 2, time.Second)
	clock.Advance(2 * time.Second)

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 before the third write", store.Len())
	}

	store.Set("c", 3, time.Minute)
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after the opportunistic purge", store.Len())
	}
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}))
	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)

	store.Clear()
	if !store.IsEmpty() {
		t.Errorf("Len() = %d after Clear, want 0", store.Len())
	}
}

// collidingStrategy sends every key to the same bucket.
type collidingStrategy struct{}

func (collidingStrategy) Hash(CanonicalKey) uint64     { return 0 }
func (collidingStrategy) Equal(a, b CanonicalKey) bool { return a == b }
func (collidingStrategy) Name() string                 { return "colliding" }

func TestStore_CorrectUnderCollisions(t *testing.T) {
	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}), WithHashStrategy(collidingStrategy{}))

	for i := 0; i < 100; i++ {
		store.Set(fmt.Sprintf("k?i=%d", i), i, time.Minute)
	}
	for i := 0; i < 100; i++ {
		got, ok := store.Get(fmt.Sprintf("k?i=%d", i))
		if !ok || got != i {
			t.Fatalf("Get(k?i=%d) = (%d, %v)", i, got, ok)
		}
	}
	if store.Strategy().Name() != "colliding" {
		t.Errorf("Strategy().Name() = %q, want colliding", store.Strategy().Name())
	}
}

func TestStore_HashStrategyFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HashStrategy = HashFast

	store, err := NewStore[string, int](cfg, NewURLNormalizer())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if store.Strategy().Name() != "fast" {
		t.Errorf("Strategy().Name() = %q, want fast", store.Strategy().Name())
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultTTL = 0

	if _, err := NewStore[string, int](cfg, NewURLNormalizer()); err == nil {
		t.Error("expected an error for a zero DefaultTTL")
	}

	var cfgErr *ConfigError
	_, err := NewStore[string, int](DefaultConfig(), nil)
	if !errors.As(err, &cfgErr) || cfgErr.Field != "normalizer" {
		t.Errorf("NewStore(nil normalizer) error = %v, want ConfigError on normalizer", err)
	}
}

func TestStore_ClonerIsolatesValues(t *testing.T) {
	store := newTestStore[[]string](t, testsupport.NewManualClock(time.Time{}), WithCloner(MsgpackCloner{}))

	in := []string{"a", "b"}
	store.Set("list", in, time.Minute)
	in[0] = "mutated after set"

	out, ok := store.Get("list")
	if !ok || out[0] != "a" {
		t.Fatalf("Get() = (%v, %v), want stored copy unaffected by caller mutation", out, ok)
	}

	out[1] = "mutated after get"
	again, _ := store.Get("list")
	if again[1] != "b" {
		t.Errorf("Get() = %v, stored value was aliased by an earlier Get", again)
	}
}

func TestStore_FailingClonerFallsBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	failing := ClonerFunc(func(dst, src any) error { return errors.New("boom") })

	store := newTestStore[string](t, testsupport.NewManualClock(time.Time{}),
		WithCloner(failing), WithLogger(zap.New(core)))

	store.Set("k", "v", time.Minute)
	got, ok := store.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get() = (%q, %v), want (\"v\", true)", got, ok)
	}
	if logs.FilterMessage("clone failed, using original value").Len() == 0 {
		t.Error("expected a warning for the failing cloner")
	}
}

func TestStore_LogsLazyEviction(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[string](t, clock, WithLogger(zap.New(core)), WithName("pages"))

	store.Set("k", "v", time.Second)
	clock.Advance(time.Second)
	store.Get("k")

	entries := logs.FilterMessage("lazily evicted expired entry").All()
	if len(entries) != 1 {
		t.Fatalf("expected one eviction log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["cache"]; got != "pages" {
		t.Errorf("cache field = %v, want pages", got)
	}
}

func TestStore_Stats(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[int](t, clock)

	store.Set("a", 1, time.Second)
	store.Get("a")
	store.Get("missing")
	clock.Advance(time.Second)
	store.Get("a")
	store.Set("b", 2, time.Minute)
	store.Remove("b")

	stats := store.Stats()
	want := Stats{Hits: 1, Misses: 2, Expirations: 1, Sets: 2, Removals: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if ratio := stats.HitRatio(); ratio < 0.33 || ratio > 0.34 {
		t.Errorf("HitRatio() = %v, want ~0.333", ratio)
	}
}

func TestStore_OpenTelemetryCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}), WithMeterProvider(provider), WithName("otel"))
	store.Set("a", 1, time.Minute)
	store.Get("a")
	store.Get("a")
	store.Get("b")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	if totals["cache.hits"] != 2 {
		t.Errorf("cache.hits = %d, want 2", totals["cache.hits"])
	}
	if totals["cache.misses"] != 1 {
		t.Errorf("cache.misses = %d, want 1", totals["cache.misses"])
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k?n=%d", i%20)
				switch i % 4 {
				case 0:
					store.Set(key, w, time.Minute)
				case 1:
					store.Get(key)
				case 2:
					store.Remove(key)
				default:
					store.Cleanup()
				}
			}
		}(w)
	}
	wg.Wait()

	if store.Len() > 20 {
		t.Errorf("Len() = %d, want at most 20 distinct keys", store.Len())
	}
}

func BenchmarkStore_Get(b *testing.B) {
	for _, kind := range []HashStrategyKind{HashSecure, HashFast} {
		b.Run(string(kind), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.HashStrategy = kind
			store, err := NewStore[string, int](cfg, NewURLNormalizer())
			if err != nil {
				b.Fatal(err)
			}
			for i := 0; i < 1000; i++ {
				store.Set(fmt.Sprintf("page?id=%d&user=u", i), i, time.Hour)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				store.Get("page?user=u&id=500")
			}
		})
	}
}

func TestStore_Contains(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[string](t, clock)

	store.Set("feed?b=2&a=1", "v", time.Second)
	key := store.Key("feed?a=1&b=2")

	if !store.Contains(key) {
		t.Error("Contains() = false for a live entry")
	}

	clock.Advance(time.Second)
	if store.Contains(key) {
		t.Error("Contains() = true for an expired entry")
	}
	if store.Len() != 1 {
		t.Errorf("Contains() should not purge, Len() = %d, want 1", store.Len())
	}
	if stats := store.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Contains() touched read counters: %+v", stats)
	}
}

func TestStore_Keys(t *testing.T) {
	clock := testsupport.NewManualClock(time.Time{})
	store := newTestStore[int](t, clock)

	store.Set("a?y=2&x=1", 1, time.Minute)
	store.Set("b", 2, time.Second)
	clock.Advance(time.Second)

	keys := store.Keys()
	if len(keys) != 1 {
		t.Fatalf("Keys() = %v, want one live key", keys)
	}
	if got := keys[0].String(); got != "a?x=1&y=2" {
		t.Errorf("Keys()[0] = %q, want %q", got, "a?x=1&y=2")
	}
}

func TestStore_CleanupLogsLongestChain(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := newTestStore[int](t, testsupport.NewManualClock(time.Time{}),
		WithHashStrategy(collidingStrategy{}), WithLogger(zap.New(core)))

	for i := 0; i < 4; i++ {
		store.Set(fmt.Sprintf("k?i=%d", i), i, time.Minute)
	}
	store.Cleanup()

	entries := logs.FilterMessage("cleanup pass").All()
	if len(entries) != 1 {
		t.Fatalf("cleanup log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["longest_chain"]; got != int64(4) {
		t.Errorf("longest_chain = %v, want 4", got)
	}
}
