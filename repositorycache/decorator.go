package repositorycache

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-canonical-cache/cache"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Repository is the subset of go-repository-bun's Repository[T] that the
// decorator caches or invalidates on. Any repository.Repository[T]
// satisfies it.
type Repository[T any] interface {
	Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

var (
	_ Repository[any] = (repository.Repository[any])(nil)
	_ Repository[any] = (*CachedRepository[any])(nil)
)

const (
	methodGet             = "Get"
	methodGetByID         = "GetByID"
	methodGetByIdentifier = "GetByIdentifier"
	methodList            = "List"
	methodCount           = "Count"

	// scopeAll keys a read made without criteria
	scopeAll = "all"
)

// listResult wraps the tuple result from List operations for caching
type listResult[T any] struct {
	Records []T `json:"records" msgpack:"records"`
	Total   int `json:"total" msgpack:"total"`
}

// keyKind records which store a tracked key lives in.
type keyKind uint8

const (
	kindRecord keyKind = iota
	kindList
	kindCount
)

// CachedRepository decorates a base repository with read-through caching.
type CachedRepository[T any] struct {
	base      Repository[T]
	namespace string
	queries   cache.QueryNormalizer
	records   *cache.Lookup[cache.Query, T]
	lists     *cache.Lookup[cache.Query, listResult[T]]
	counts    *cache.Lookup[cache.Query, int]
	keys      *xsync.MapOf[string, keyKind] // active canonical keys, for invalidation
	logger    *zap.Logger
}

// Option configures a CachedRepository.
type Option func(*settings)

type settings struct {
	namespace string
	logger    *zap.Logger
	storeOpts []cache.Option
}

// WithNamespace overrides the namespace derived from the record type. It
// prefixes the names of the underlying stores.
func WithNamespace(namespace string) Option {
	return func(s *settings) { s.namespace = toSnake(namespace) }
}

// WithLogger sets the logger used by the decorator and its stores.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStoreOptions passes options through to every underlying store.
func WithStoreOptions(opts ...cache.Option) Option {
	return func(s *settings) { s.storeOpts = append(s.storeOpts, opts...) }
}

// New wraps base with caching. Every store shares cfg; New fails only when
// cfg is invalid.
//
// Cached records are copied in and out through cache.MsgpackCloner so
// callers never hold an alias into cached state. Pass
// WithStoreOptions(cache.WithCloner(...)) to replace it.
func New[T any](base Repository[T], cfg cache.Config, opts ...Option) (*CachedRepository[T], error) {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.namespace == "" {
		s.namespace = namespaceFor[T]()
	}

	storeOpts := func(suffix string) []cache.Option {
		out := append([]cache.Option{
			cache.WithLogger(s.logger),
			cache.WithCloner(cache.MsgpackCloner{}),
		}, s.storeOpts...)
		return append(out, cache.WithName(s.namespace+"."+suffix))
	}

	queries := cache.NewQueryNormalizer()

	records, err := cache.NewStore[cache.Query, T](cfg, queries, storeOpts("records")...)
	if err != nil {
		return nil, err
	}
	lists, err := cache.NewStore[cache.Query, listResult[T]](cfg, queries, storeOpts("lists")...)
	if err != nil {
		return nil, err
	}
	counts, err := cache.NewStore[cache.Query, int](cfg, queries, storeOpts("counts")...)
	if err != nil {
		return nil, err
	}

	return &CachedRepository[T]{
		base:      base,
		namespace: s.namespace,
		queries:   queries,
		records:   cache.NewLookup(records),
		lists:     cache.NewLookup(lists),
		counts:    cache.NewLookup(counts),
		keys:      xsync.NewMapOf[string, keyKind](),
		logger:    s.logger.With(zap.String("namespace", s.namespace)),
	}, nil
}

// Namespace returns the label used for the underlying stores.
func (c *CachedRepository[T]) Namespace() string { return c.namespace }

// Get retrieves a single record using the provided criteria, with caching
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	scope, ok := c.scope(ctx, methodGet, criteria)
	if !ok {
		return c.base.Get(ctx, criteria...)
	}
	q := c.track(kindRecord, cache.NewQuery(methodGet, scope))
	return c.records.GetOrCompute(ctx, q, func(ctx context.Context, _ cache.Query) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by ID with optional criteria, with caching
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	scope, ok := c.scope(ctx, methodGetByID, criteria)
	if !ok {
		return c.base.GetByID(ctx, id, criteria...)
	}
	q := c.track(kindRecord, cache.NewQuery(methodGetByID, id, scope))
	return c.records.GetOrCompute(ctx, q, func(ctx context.Context, _ cache.Query) (T, error) {
		return c.base.GetByID(ctx, id, criteria...)
	})
}

// GetByIdentifier retrieves a record by identifier with optional criteria, with caching
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	scope, ok := c.scope(ctx, methodGetByIdentifier, criteria)
	if !ok {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	}
	q := c.track(kindRecord, cache.NewQuery(methodGetByIdentifier, identifier, scope))
	return c.records.GetOrCompute(ctx, q, func(ctx context.Context, _ cache.Query) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

// List retrieves multiple records using the provided criteria, with caching
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	scope, ok := c.scope(ctx, methodList, criteria)
	if !ok {
		return c.base.List(ctx, criteria...)
	}
	q := c.track(kindList, cache.NewQuery(methodList, scope))
	res, err := c.lists.GetOrCompute(ctx, q, func(ctx context.Context, _ cache.Query) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of records matching the criteria, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	scope, ok := c.scope(ctx, methodCount, criteria)
	if !ok {
		return c.base.Count(ctx, criteria...)
	}
	q := c.track(kindCount, cache.NewQuery(methodCount, scope))
	return c.counts.GetOrCompute(ctx, q, func(ctx context.Context, _ cache.Query) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// Create passes through to the base repository and drops cached lists and
// counts on success.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.invalidateAfterCreate()
	}
	return result, err
}

// Update passes through to the base repository and drops every cached read
// the updated record may appear in.
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.invalidateRecord(result)
	}
	return result, err
}

// Delete passes through to the base repository and invalidates like Update.
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.invalidateRecord(record)
	}
	return err
}

// InvalidateAll drops every cached read.
func (c *CachedRepository[T]) InvalidateAll() {
	c.records.Store().Clear()
	c.lists.Store().Clear()
	c.counts.Store().Clear()
	c.keys.Clear()
}

// Cleanup purges expired entries from every store and returns the total.
func (c *CachedRepository[T]) Cleanup() int {
	purged := c.records.Store().Cleanup() + c.lists.Store().Cleanup() + c.counts.Store().Cleanup()

	// forget keys whose entries are gone
	c.keys.Range(func(key string, kind keyKind) bool {
		if !c.cached(key, kind) {
			c.keys.Delete(key)
		}
		return true
	})
	return purged
}

// Stats reports counters for the record, list and count stores.
func (c *CachedRepository[T]) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"records": c.records.Store().Stats(),
		"lists":   c.lists.Store().Stats(),
		"counts":  c.counts.Store().Stats(),
	}
}

// track registers the canonical key of q for later invalidation.
func (c *CachedRepository[T]) track(kind keyKind, q cache.Query) cache.Query {
	c.keys.Store(c.queries.Normalize(q).String(), kind)
	return q
}

// scope returns the key component that stands in for criteria, and false
// when the read cannot be cached.
func (c *CachedRepository[T]) scope(ctx context.Context, method string, criteria []repository.SelectCriteria) (string, bool) {
	if key, ok := CacheKeyFrom(ctx); ok {
		return "key=" + key, true
	}
	if len(criteria) == 0 {
		return scopeAll, true
	}
	c.logger.Debug("criteria without cache key, reading through", zap.String("method", method))
	return "", false
}

// cached reports whether key still has a live entry in its store.
func (c *CachedRepository[T]) cached(key string, kind keyKind) bool {
	k := cache.NewCanonicalKey(key)
	switch kind {
	case kindList:
		return c.lists.Store().Contains(k)
	case kindCount:
		return c.counts.Store().Contains(k)
	default:
		return c.records.Store().Contains(k)
	}
}

// invalidateByPrefix removes every tracked key that starts with prefix and
// returns how many entries were dropped.
func (c *CachedRepository[T]) invalidateByPrefix(prefix string) int {
	removed := 0
	c.keys.Range(func(key string, kind keyKind) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		c.keys.Delete(key)
		if c.evict(key, kind) {
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("invalidated cached reads", zap.String("prefix", prefix), zap.Int("removed", removed))
	}
	return removed
}

func (c *CachedRepository[T]) evict(key string, kind keyKind) bool {
	k := cache.NewCanonicalKey(key)
	var ok bool
	switch kind {
	case kindList:
		_, ok = c.lists.Store().RemoveKey(k)
	case kindCount:
		_, ok = c.counts.Store().RemoveKey(k)
	default:
		_, ok = c.records.Store().RemoveKey(k)
	}
	return ok
}

// methodPrefix matches every key of method regardless of its arguments.
func (c *CachedRepository[T]) methodPrefix(method string) string {
	return method + cache.KeySeparator
}

// argPrefix matches every key of method whose first argument is arg.
func (c *CachedRepository[T]) argPrefix(method, arg string) string {
	return c.queries.MethodPrefix(method, arg) + cache.KeySeparator
}

// invalidateAfterCreate invalidates query result caches after create operations
func (c *CachedRepository[T]) invalidateAfterCreate() {
	// new records affect pagination and totals
	c.invalidateByPrefix(c.methodPrefix(methodList))
	c.invalidateByPrefix(c.methodPrefix(methodCount))
}

// invalidateRecord drops the reads that may contain record.
func (c *CachedRepository[T]) invalidateRecord(record T) {
	c.invalidateRecordReads(record)
	c.invalidateQueries()
}

// invalidateRecords is invalidateRecord for a batch.
func (c *CachedRepository[T]) invalidateRecords(records []T) {
	for _, record := range records {
		c.invalidateRecordReads(record)
	}
	c.invalidateQueries()
}

// invalidateRecordReads drops the ID and identifier reads of record. When
// either cannot be extracted every read of that kind is dropped.
func (c *CachedRepository[T]) invalidateRecordReads(record T) {
	if id, err := extractID(record); err == nil {
		c.invalidateByPrefix(c.argPrefix(methodGetByID, id))
	} else {
		c.invalidateByPrefix(c.methodPrefix(methodGetByID))
	}

	if identifier, err := extractIdentifier(record); err == nil {
		c.invalidateByPrefix(c.argPrefix(methodGetByIdentifier, identifier))
	} else {
		c.invalidateByPrefix(c.methodPrefix(methodGetByIdentifier))
	}
}

// invalidateQueries drops the reads not tied to a single record.
func (c *CachedRepository[T]) invalidateQueries() {
	c.invalidateByPrefix(c.methodPrefix(methodGet))
	c.invalidateByPrefix(c.methodPrefix(methodList))
	c.invalidateByPrefix(c.methodPrefix(methodCount))
}

// invalidateAfterCriteria handles writes that name no records, such as
// DeleteWhere: any cached read may be stale.
func (c *CachedRepository[T]) invalidateAfterCriteria() {
	c.invalidateByPrefix(c.methodPrefix(methodGetByID))
	c.invalidateByPrefix(c.methodPrefix(methodGetByIdentifier))
	c.invalidateQueries()
}

// namespaceFor derives a snake_case namespace from the record type name.
func namespaceFor[T any]() string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}

	name := typ.Name()
	if name == "" {
		name = typ.String()
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if ns := toSnake(name); ns != "" {
		return ns
	}
	return "records"
}

// extractID attempts to extract an ID field from a record using reflection
func extractID(record any) (string, error) {
	return extractField(record, "ID", "Id", "id")
}

// extractIdentifier attempts to extract an identifier field from a record using reflection
func extractIdentifier(record any) (string, error) {
	return extractField(record, "Identifier", "identifier", "Name", "name", "Code", "code")
}

func extractField(record any, names ...string) (string, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", fmt.Errorf("nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("record of kind %s has no fields", v.Kind())
	}

	for _, name := range names {
		field := v.FieldByName(name)
		if field.IsValid() && field.CanInterface() {
			return fmt.Sprintf("%v", field.Interface()), nil
		}
	}
	return "", fmt.Errorf("no field named %s found in record", strings.Join(names, ", "))
}
