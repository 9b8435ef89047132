package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyNormalizer turns a raw key into its CanonicalKey. Implementations must
// be total and pure: no I/O, no failure, and equal output for raw keys that
// address the same cached value.
type KeyNormalizer[K any] interface {
	Normalize(raw K) CanonicalKey
}

// NormalizerFunc adapts a plain function to KeyNormalizer.
type NormalizerFunc[K any] func(raw K) CanonicalKey

// Normalize calls f(raw).
func (f NormalizerFunc[K]) Normalize(raw K) CanonicalKey { return f(raw) }

// RawKeyNormalizer normalizes structured RawKeys.
//
// Path segments keep their original order. Params are sorted by name; when
// the same name appears more than once the last occurrence wins. The
// encoding is seg/seg?name=value&name=value with escaped components, and
// the "?" part is omitted when there are no params.
type RawKeyNormalizer struct{}

// NewRawKeyNormalizer creates a normalizer for RawKey values.
func NewRawKeyNormalizer() RawKeyNormalizer { return RawKeyNormalizer{} }

// Normalize implements KeyNormalizer.
func (RawKeyNormalizer) Normalize(raw RawKey) CanonicalKey {
	var b strings.Builder

	for i, seg := range raw.Segments {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(seg))
	}

	params := dedupeParams(raw.Params)
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	return NewCanonicalKey(b.String())
}

// dedupeParams applies last-write-wins per name and sorts by name.
func dedupeParams(params []Param) []Param {
	if len(params) == 0 {
		return nil
	}

	index := make(map[string]int, len(params))
	out := make([]Param, 0, len(params))
	for _, p := range params {
		if i, ok := index[p.Name]; ok {
			out[i].Value = p.Value
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// URLNormalizer normalizes resource strings such as "page?id=1&user=a".
// It parses with ParseRawKey and encodes with RawKeyNormalizer, so
// "page?user=a&id=1" and "page?id=1&user=a" share a CanonicalKey.
//
// Normalization is idempotent: feeding a canonical encoding back in
// yields the same CanonicalKey.
type URLNormalizer struct {
	inner RawKeyNormalizer
}

// NewURLNormalizer creates a normalizer for resource strings.
func NewURLNormalizer() URLNormalizer { return URLNormalizer{} }

// Normalize implements KeyNormalizer.
func (n URLNormalizer) Normalize(raw string) CanonicalKey {
	return n.inner.Normalize(ParseRawKey(raw))
}

var (
	_ KeyNormalizer[RawKey] = RawKeyNormalizer{}
	_ KeyNormalizer[string] = URLNormalizer{}
)
