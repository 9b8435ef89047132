package cache

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type options struct {
	name     string
	logger   *zap.Logger
	clock    Clock
	cloner   Cloner
	strategy HashStrategy
	meter    metric.MeterProvider
}

// Option configures a Store at construction time.
type Option func(*options)

// WithName labels the store in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mostly useful in tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCloner copies values on the way in and out of the store. Without a
// cloner values are stored and returned as-is, which is only safe for
// value types without shared references.
func WithCloner(cloner Cloner) Option {
	return func(o *options) { o.cloner = cloner }
}

// WithHashStrategy installs a custom strategy, overriding
// Config.HashStrategy. The strategy is fixed for the store's lifetime.
func WithHashStrategy(strategy HashStrategy) Option {
	return func(o *options) { o.strategy = strategy }
}

// WithMeterProvider reports hit, miss, expiry and fetch error counters
// through OpenTelemetry.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) { o.meter = provider }
}

func buildOptions(opts []Option) options {
	o := options{
		name:   "default",
		logger: zap.NewNop(),
		clock:  wallClock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
