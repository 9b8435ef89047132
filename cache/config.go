package cache

import (
	"time"

	"github.com/goliatone/go-canonical-cache/internal/cacheinfra"
)

// Config exposes store configuration options for consumers of the cache package.
type Config struct {
	HashStrategy    HashStrategyKind
	DefaultTTL      time.Duration
	InitialCapacity int
	CleanupEvery    int
	Deduplicate     bool
}

// ConfigError is returned when a Config fails validation.
type ConfigError = cacheinfra.ConfigError

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		HashStrategy:    string(c.HashStrategy),
		DefaultTTL:      c.DefaultTTL,
		InitialCapacity: c.InitialCapacity,
		CleanupEvery:    c.CleanupEvery,
		Deduplicate:     c.Deduplicate,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		HashStrategy:    HashStrategyKind(cfg.HashStrategy),
		DefaultTTL:      cfg.DefaultTTL,
		InitialCapacity: cfg.InitialCapacity,
		CleanupEvery:    cfg.CleanupEvery,
		Deduplicate:     cfg.Deduplicate,
	}
}
