// Package repositorycache provides a read-through caching decorator for
// go-repository-bun repositories.
//
// # Overview
//
// CachedRepository wraps any Repository[T] (a subset of go-repository-bun's
// repository.Repository[T]) and serves its reads from cache.Store instances.
// Every read becomes a cache.Query of the method name and its arguments, and
// the cache.QueryNormalizer turns that into the canonical key, so two calls
// with equal arguments share one entry.
//
// # Basic Usage
//
//	base := myrepo.New(db)
//
//	cached, err := repositorycache.New[User](base, cache.DefaultConfig(),
//		repositorycache.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//
//	user, err := cached.GetByID(ctx, "user-123")
//	users, total, err := cached.List(repositorycache.WithCacheKey(ctx, "active"), activeUsers)
//
// # Cached Operations
//
// Get, GetByID and GetByIdentifier share a record store. List results are
// cached as a records-plus-total pair and Count in a store of its own. The
// stores are named after the namespace, which defaults to the snake_cased
// record type ("user.records", "user.lists", "user.counts").
//
// Errors from the base repository are returned unchanged and never cached;
// the next call goes back to the base repository.
//
// Values are copied in and out through cache.MsgpackCloner, so changing a
// returned record or slice never changes what the next caller sees.
//
// # Criteria
//
// Criteria are closures and cannot be compared: two closures from one
// helper share a code pointer whatever they capture. A read that carries
// criteria is therefore cached only under a key the caller names with
// WithCacheKey, and goes straight to the base repository otherwise.
//
// # Invalidation
//
// Writes pass through and, on success, drop the reads they may have made
// stale. The decorator tracks the canonical key of every read it serves and
// removes entries by key prefix:
//
//   - Create drops every List and Count entry
//   - Update and Delete drop the GetByID and GetByIdentifier entries of the
//     record, plus every Get, List and Count entry
//   - writes that name no record, such as DeleteWhere, drop everything
//
// The ID is read from an ID field and the identifier from an Identifier,
// Name or Code field. When a record has neither, all GetByID or
// GetByIdentifier entries are dropped.
//
// FullRepository wraps a complete repository.Repository[T] and can replace
// it anywhere. Its transactional, bulk and upsert writes invalidate the same
// way; reads inside a transaction are never cached.
//
// # Dependency Injection
//
// The pkg/di container builds cached repositories that share its
// configuration, logger and hash strategy:
//
//	container, err := di.NewContainer(cfg)
//	if err != nil {
//		return err
//	}
//	cached, err := di.NewCachedRepository[User](container, base)
package repositorycache
