package di

import (
	"github.com/goliatone/go-canonical-cache/cache"
	"github.com/goliatone/go-canonical-cache/repositorycache"
	repository "github.com/goliatone/go-repository-bun"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Container provides dependency injection for cache related components.
// Every store it builds shares one configuration, logger and hash
// strategy, so keys hash the same way across the application.
type Container struct {
	config   cache.Config
	logger   *zap.Logger
	strategy cache.HashStrategy
	meter    metric.MeterProvider
	cloner   cache.Cloner
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider reports store counters through provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Container) { c.meter = provider }
}

// WithCloner copies values in and out of every store.
func WithCloner(cloner cache.Cloner) Option {
	return func(c *Container) { c.cloner = cloner }
}

// NewContainer creates a new DI container. The configuration is validated
// and the hash strategy resolved once, here.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	strategy, err := cache.NewHashStrategy(config.HashStrategy)
	if err != nil {
		return nil, &cache.ConfigError{Field: "HashStrategy", Message: err.Error()}
	}

	c := &Container{
		config:   config,
		logger:   zap.NewNop(),
		strategy: strategy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.logger.Debug("cache container ready",
		zap.String("hash_strategy", strategy.Name()),
		zap.Duration("default_ttl", config.DefaultTTL),
		zap.Bool("deduplicate", config.Deduplicate),
	)
	return c, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Logger returns the shared logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Strategy returns the shared hash strategy.
func (c *Container) Strategy() cache.HashStrategy {
	return c.strategy
}

// storeOptions returns the options every store built by c receives.
func (c *Container) storeOptions() []cache.Option {
	opts := []cache.Option{
		cache.WithLogger(c.logger),
		cache.WithHashStrategy(c.strategy),
	}
	if c.meter != nil {
		opts = append(opts, cache.WithMeterProvider(c.meter))
	}
	if c.cloner != nil {
		opts = append(opts, cache.WithCloner(c.cloner))
	}
	return opts
}

// Since Go methods cannot have type parameters, the constructors below are
// package-level functions.

// NewStore creates a named store keyed through normalizer.
func NewStore[K, V any](c *Container, name string, normalizer cache.KeyNormalizer[K]) (*cache.Store[K, V], error) {
	opts := append(c.storeOptions(), cache.WithName(name))
	return cache.NewStore[K, V](c.config, normalizer, opts...)
}

// NewURLLookup creates a get-or-compute lookup over a store keyed by
// URL-style strings.
func NewURLLookup[V any](c *Container, name string, opts ...cache.LookupOption) (*cache.Lookup[string, V], error) {
	return NewLookup[string, V](c, name, cache.NewURLNormalizer(), opts...)
}

// NewLookup creates a get-or-compute lookup over a new named store.
func NewLookup[K, V any](c *Container, name string, normalizer cache.KeyNormalizer[K], opts ...cache.LookupOption) (*cache.Lookup[K, V], error) {
	store, err := NewStore[K, V](c, name, normalizer)
	if err != nil {
		return nil, err
	}
	return cache.NewLookup(store, opts...), nil
}

// NewCachedRepository creates a cached repository that wraps base.
// Example: NewCachedRepository[User](container, baseUserRepository)
func NewCachedRepository[T any](c *Container, base repositorycache.Repository[T], opts ...repositorycache.Option) (*repositorycache.CachedRepository[T], error) {
	return repositorycache.New(base, c.config, append(c.repositoryOptions(), opts...)...)
}

// NewFullCachedRepository wraps a complete go-repository-bun repository,
// so the result can stand in for it anywhere.
func NewFullCachedRepository[T any](c *Container, base repository.Repository[T], opts ...repositorycache.Option) (*repositorycache.FullRepository[T], error) {
	return repositorycache.NewFull(base, c.config, append(c.repositoryOptions(), opts...)...)
}

func (c *Container) repositoryOptions() []repositorycache.Option {
	return []repositorycache.Option{
		repositorycache.WithLogger(c.logger),
		repositorycache.WithStoreOptions(c.storeOptions()...),
	}
}
