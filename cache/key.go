package cache

import (
	"net/url"
	"strings"
)

// CanonicalKey is the structurally normalized form of a raw key. It is
// immutable and comparable with ==; two raw keys that address the same
// cached value normalize to equal CanonicalKeys.
type CanonicalKey struct {
	s string
}

// NewCanonicalKey wraps an already canonical encoding. Custom KeyNormalizer
// implementations use it to build their output.
func NewCanonicalKey(encoded string) CanonicalKey {
	return CanonicalKey{s: encoded}
}

// String returns the canonical encoding.
func (k CanonicalKey) String() string { return k.s }

// IsZero reports whether k is the empty key.
func (k CanonicalKey) IsZero() bool { return k.s == "" }

// HasPrefix reports whether the canonical encoding starts with prefix.
func (k CanonicalKey) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.s, prefix)
}

// Param is a named component of a raw key. Params carry no semantic order.
type Param struct {
	Name  string
	Value string
}

// RawKey addresses a resource: an ordered hierarchical path plus an
// unordered set of named parameters.
type RawKey struct {
	Segments []string
	Params   []Param
}

// ParseRawKey splits a resource string of the form path?query#fragment.
//
// Path segments are split on "/" and percent-unescaped; their order is kept.
// Query parameters are split on "&" and "=", query-unescaped, and kept in
// the order they appear (normalization decides duplicates). Empty
// parameters are dropped, a parameter without "=" has an empty value, and
// the fragment is discarded. Malformed escapes are kept literally.
func ParseRawKey(s string) RawKey {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}

	path, query, _ := strings.Cut(s, "?")

	var raw RawKey
	if path != "" {
		parts := strings.Split(path, "/")
		raw.Segments = make([]string, len(parts))
		for i, part := range parts {
			raw.Segments[i] = unescapeSegment(part)
		}
	}

	if query != "" {
		for _, pair := range strings.Split(query, "&") {
			if pair == "" {
				continue
			}
			name, value, _ := strings.Cut(pair, "=")
			raw.Params = append(raw.Params, Param{
				Name:  unescapeQuery(name),
				Value: unescapeQuery(value),
			})
		}
	}

	return raw
}

func unescapeSegment(s string) string {
	if out, err := url.PathUnescape(s); err == nil {
		return out
	}
	return s
}

func unescapeQuery(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}
