package cache

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/goliatone/go-canonical-cache"

// Stats is a point-in-time snapshot of store and lookup activity.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Expirations uint64
	Sets        uint64
	Removals    uint64
	Fetches     uint64
	FetchErrors uint64
	Coalesced   uint64
}

// HitRatio returns Hits / (Hits + Misses), or 0 before any read.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	expirations atomic.Uint64
	sets        atomic.Uint64
	removals    atomic.Uint64
	fetches     atomic.Uint64
	fetchErrors atomic.Uint64
	coalesced   atomic.Uint64

	otelHits        metric.Int64Counter
	otelMisses      metric.Int64Counter
	otelExpirations metric.Int64Counter
	otelFetchErrors metric.Int64Counter
	attrs           metric.MeasurementOption
}

func newCounters(provider metric.MeterProvider, name string) *counters {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	return &counters{
		otelHits:        int64Counter(meter, "cache.hits", "Reads served from the cache."),
		otelMisses:      int64Counter(meter, "cache.misses", "Reads that found no live entry."),
		otelExpirations: int64Counter(meter, "cache.expirations", "Entries purged after their TTL elapsed."),
		otelFetchErrors: int64Counter(meter, "cache.fetch.errors", "Fetcher invocations that returned an error."),
		attrs:           metric.WithAttributeSet(attribute.NewSet(attribute.String("cache.name", name))),
	}
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (c *counters) hit() {
	c.hits.Add(1)
	c.otelHits.Add(context.Background(), 1, c.attrs)
}

func (c *counters) miss() {
	c.misses.Add(1)
	c.otelMisses.Add(context.Background(), 1, c.attrs)
}

func (c *counters) expired(n int) {
	if n <= 0 {
		return
	}
	c.expirations.Add(uint64(n))
	c.otelExpirations.Add(context.Background(), int64(n), c.attrs)
}

func (c *counters) fetchFailed(ctx context.Context) {
	c.fetchErrors.Add(1)
	c.otelFetchErrors.Add(ctx, 1, c.attrs)
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Expirations: c.expirations.Load(),
		Sets:        c.sets.Load(),
		Removals:    c.removals.Load(),
		Fetches:     c.fetches.Load(),
		FetchErrors: c.fetchErrors.Load(),
		Coalesced:   c.coalesced.Load(),
	}
}
