package cache

import (
	"errors"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-canonical-cache/internal/cacheinfra"
)

// HashStrategy maps canonical keys to digests used for placement inside a
// Store, together with the equality that resolves digest collisions.
//
// Implementations must guarantee that Equal(a, b) implies
// Hash(a) == Hash(b). Digests are only comparable within one strategy, so a
// Store keeps the strategy it was built with for its whole lifetime.
type HashStrategy interface {
	Hash(key CanonicalKey) uint64
	Equal(a, b CanonicalKey) bool
	Name() string
}

// HashStrategyKind selects a built-in HashStrategy.
type HashStrategyKind string

const (
	// HashSecure hashes with a random per-process seed. Use it whenever raw
	// keys can be influenced by untrusted input.
	HashSecure HashStrategyKind = cacheinfra.HashSecure

	// HashFast hashes deterministically with xxHash. An attacker who controls
	// raw keys can precompute colliding keys and degrade lookups to O(n);
	// only use it for trusted keys.
	HashFast HashStrategyKind = cacheinfra.HashFast
)

// ErrUnknownHashStrategy is returned for unrecognised strategy kinds.
var ErrUnknownHashStrategy = errors.New("cache: unknown hash strategy")

// NewHashStrategy returns the built-in strategy for kind.
func NewHashStrategy(kind HashStrategyKind) (HashStrategy, error) {
	switch kind {
	case HashSecure:
		return NewSecureStrategy(), nil
	case HashFast:
		return NewFastStrategy(), nil
	default:
		return nil, ErrUnknownHashStrategy
	}
}

// processSeed is shared by every secure strategy in the process so that
// digests stay stable for the process lifetime.
var processSeed = maphash.MakeSeed()

type secureStrategy struct {
	seed maphash.Seed
}

// NewSecureStrategy returns a seeded, collision-flooding resistant strategy.
func NewSecureStrategy() HashStrategy {
	return secureStrategy{seed: processSeed}
}

func (s secureStrategy) Hash(key CanonicalKey) uint64 {
	return maphash.String(s.seed, key.s)
}

func (secureStrategy) Equal(a, b CanonicalKey) bool { return a.s == b.s }

func (secureStrategy) Name() string { return string(HashSecure) }

type fastStrategy struct{}

// NewFastStrategy returns the deterministic xxHash strategy. Not safe for
// attacker-controlled keys.
func NewFastStrategy() HashStrategy {
	return fastStrategy{}
}

func (fastStrategy) Hash(key CanonicalKey) uint64 {
	return xxhash.Sum64String(key.s)
}

func (fastStrategy) Equal(a, b CanonicalKey) bool { return a.s == b.s }

func (fastStrategy) Name() string { return string(HashFast) }
