package cache

import "time"

// Entry is a stored value together with its absolute expiry instant.
// Entries are never mutated; replacing a value stores a new Entry.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Expired reports whether the entry is no longer valid at now.
// An entry expires at ExpiresAt exactly.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Remaining returns the time left before expiry, or zero once expired.
func (e Entry[V]) Remaining(now time.Time) time.Duration {
	if e.Expired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}
