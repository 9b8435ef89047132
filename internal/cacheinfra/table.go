package cacheinfra

// EqualFn reports whether two canonical key encodings address the same slot.
type EqualFn func(a, b string) bool

type slot[E any] struct {
	key string
	val E
}

// Table is a digest-bucketed map from canonical key encodings to entries.
// Placement uses the caller-supplied digest; collisions within a bucket are
// resolved with EqualFn. Table is not safe for concurrent use; the owning
// store serializes access.
//
// Callers must guarantee that equal keys are always presented with equal
// digests, otherwise a key can occupy two buckets at once.
type Table[E any] struct {
	buckets map[uint64][]slot[E]
	equal   EqualFn
	size    int
}

// NewTable creates a table pre-sized for capacity entries.
func NewTable[E any](capacity int, equal EqualFn) *Table[E] {
	if capacity < 0 {
		capacity = 0
	}
	if equal == nil {
		equal = func(a, b string) bool { return a == b }
	}
	return &Table[E]{
		buckets: make(map[uint64][]slot[E], capacity),
		equal:   equal,
	}
}

// Get returns the entry stored under key.
func (t *Table[E]) Get(digest uint64, key string) (E, bool) {
	for _, s := range t.buckets[digest] {
		if t.equal(s.key, key) {
			return s.val, true
		}
	}
	var zero E
	return zero, false
}

// Put stores val under key, replacing any existing entry. It reports
// whether an entry was replaced.
func (t *Table[E]) Put(digest uint64, key string, val E) bool {
	bucket := t.buckets[digest]
	for i := range bucket {
		if t.equal(bucket[i].key, key) {
			bucket[i].val = val
			return true
		}
	}
	t.buckets[digest] = append(bucket, slot[E]{key: key, val: val})
	t.size++
	return false
}

// Delete removes the entry stored under key and returns it.
func (t *Table[E]) Delete(digest uint64, key string) (E, bool) {
	bucket := t.buckets[digest]
	for i := range bucket {
		if !t.equal(bucket[i].key, key) {
			continue
		}
		val := bucket[i].val
		t.removeAt(digest, bucket, i)
		return val, true
	}
	var zero E
	return zero, false
}

// DeleteFunc removes every entry for which drop returns true and returns
// the number of removed entries.
func (t *Table[E]) DeleteFunc(drop func(key string, val E) bool) int {
	removed := 0
	for digest, bucket := range t.buckets {
		kept := bucket[:0]
		for _, s := range bucket {
			if drop(s.key, s.val) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(t.buckets, digest)
			continue
		}
		clearTail(bucket, len(kept))
		t.buckets[digest] = kept
	}
	t.size -= removed
	return removed
}

// Range calls fn for each entry until fn returns false. Order is unspecified.
func (t *Table[E]) Range(fn func(key string, val E) bool) {
	for _, bucket := range t.buckets {
		for _, s := range bucket {
			if !fn(s.key, s.val) {
				return
			}
		}
	}
}

// Reset drops every entry.
func (t *Table[E]) Reset() {
	clear(t.buckets)
	t.size = 0
}

// Len returns the number of stored entries.
func (t *Table[E]) Len() int {
	return t.size
}

// MaxBucketLen returns the length of the longest collision chain.
func (t *Table[E]) MaxBucketLen() int {
	longest := 0
	for _, bucket := range t.buckets {
		if len(bucket) > longest {
			longest = len(bucket)
		}
	}
	return longest
}

func (t *Table[E]) removeAt(digest uint64, bucket []slot[E], i int) {
	last := len(bucket) - 1
	bucket[i] = bucket[last]
	bucket[last] = slot[E]{}
	if last == 0 {
		delete(t.buckets, digest)
	} else {
		t.buckets[digest] = bucket[:last]
	}
	t.size--
}

// clearTail zeroes slots past n so dropped values can be collected.
func clearTail[E any](bucket []slot[E], n int) {
	for i := n; i < len(bucket); i++ {
		bucket[i] = slot[E]{}
	}
}
