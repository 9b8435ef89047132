package repositorycache

import "context"

type cacheKeyCtx struct{}

// WithCacheKey returns a context under which reads that carry criteria are
// cached under key. Criteria are closures and cannot be compared by value,
// so without a key such reads go straight to the base repository.
//
// The key must identify the criteria passed with it: two reads of one
// method under the same key share a cached result. Derive the context per
// read, not once per request.
func WithCacheKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, cacheKeyCtx{}, key)
}

// CacheKeyFrom returns the key set with WithCacheKey, if any.
func CacheKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(cacheKeyCtx{}).(string)
	return key, ok && key != ""
}
