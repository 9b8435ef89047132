package cacheinfra

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Hash strategy names understood by the engine.
const (
	HashSecure = "secure"
	HashFast   = "fast"
)

// Config holds the configuration for the store engine.
type Config struct {
	// HashStrategy selects the digest function used for bucket placement.
	// One of HashSecure or HashFast. Fixed for the lifetime of a store.
	HashStrategy string

	// DefaultTTL is the expiry horizon applied by read-through lookups.
	// Must be greater than 0.
	DefaultTTL time.Duration

	// InitialCapacity pre-sizes the bucket map. It is a hint, never a limit.
	InitialCapacity int

	// CleanupEvery triggers an opportunistic purge of expired entries
	// after this many writes. Zero disables it.
	CleanupEvery int

	// Deduplicate coalesces concurrent misses for the same key into a
	// single fetch.
	Deduplicate bool
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		HashStrategy:    HashSecure,
		DefaultTTL:      5 * time.Minute,
		InitialCapacity: 256,
		CleanupEvery:    1024,
		Deduplicate:     false,
	}
}

// Validate checks if the configuration values are valid.
// The first failing field, in field order, is reported as a *ConfigError.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.HashStrategy,
			validation.Required.Error("must be set"),
			validation.In(HashSecure, HashFast).Error("must be one of secure, fast"),
		),
		validation.Field(&c.DefaultTTL,
			validation.Required.Error("must be greater than 0"),
			validation.Min(time.Duration(1)).Error("must be greater than 0"),
		),
		validation.Field(&c.InitialCapacity,
			validation.Min(0).Error("must be non-negative"),
		),
		validation.Field(&c.CleanupEvery,
			validation.Min(0).Error("must be non-negative"),
		),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return &ConfigError{Field: "Config", Message: err.Error()}
	}

	for _, field := range fieldOrder {
		if ferr, ok := fieldErrs[field]; ok && ferr != nil {
			return &ConfigError{Field: field, Message: ferr.Error()}
		}
	}

	// unreachable unless a new rule is added without updating fieldOrder
	names := make([]string, 0, len(fieldErrs))
	for name := range fieldErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ConfigError{Field: names[0], Message: fieldErrs[names[0]].Error()}
}

var fieldOrder = []string{"HashStrategy", "DefaultTTL", "InitialCapacity", "CleanupEvery"}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
