package repositorycache

import (
	"context"

	"github.com/goliatone/go-canonical-cache/cache"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Interface assertion to ensure FullRepository implements Repository[T]
var _ repository.Repository[any] = (*FullRepository[any])(nil)

// FullRepository decorates a complete go-repository-bun repository. The
// cached reads and single record writes come from the embedded
// CachedRepository. The transactional, bulk and upsert writes below
// invalidate on success the same way. Reads inside a transaction and raw
// SQL are never cached.
type FullRepository[T any] struct {
	*CachedRepository[T]
	full repository.Repository[T]
}

// NewFull wraps base with caching. It accepts the same options as New.
func NewFull[T any](base repository.Repository[T], cfg cache.Config, opts ...Option) (*FullRepository[T], error) {
	cached, err := New[T](base, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &FullRepository[T]{CachedRepository: cached, full: base}, nil
}

// CreateTx creates a new record within a transaction
func (f *FullRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := f.full.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		f.invalidateAfterCreate()
	}
	return result, err
}

// CreateMany creates multiple records
func (f *FullRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := f.full.CreateMany(ctx, records, criteria...)
	if err == nil {
		f.invalidateAfterCreate()
	}
	return result, err
}

// CreateManyTx creates multiple records within a transaction
func (f *FullRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := f.full.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		f.invalidateAfterCreate()
	}
	return result, err
}

// GetOrCreate may insert, so it invalidates like Create.
func (f *FullRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := f.full.GetOrCreate(ctx, record)
	if err == nil {
		f.invalidateAfterCreate()
	}
	return result, err
}

// GetOrCreateTx is GetOrCreate within a transaction
func (f *FullRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := f.full.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		f.invalidateAfterCreate()
	}
	return result, err
}

// UpdateTx updates a record within a transaction
func (f *FullRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := f.full.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		f.invalidateRecord(result)
	}
	return result, err
}

// UpdateMany updates multiple records
func (f *FullRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := f.full.UpdateMany(ctx, records, criteria...)
	if err == nil {
		f.invalidateRecords(result)
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction
func (f *FullRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := f.full.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		f.invalidateRecords(result)
	}
	return result, err
}

// Upsert inserts or updates a record and invalidates like Update.
func (f *FullRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := f.full.Upsert(ctx, record, criteria...)
	if err == nil {
		f.invalidateRecord(result)
	}
	return result, err
}

// UpsertTx is Upsert within a transaction
func (f *FullRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := f.full.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		f.invalidateRecord(result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (f *FullRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := f.full.UpsertMany(ctx, records, criteria...)
	if err == nil {
		f.invalidateRecords(result)
	}
	return result, err
}

// UpsertManyTx is UpsertMany within a transaction
func (f *FullRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := f.full.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		f.invalidateRecords(result)
	}
	return result, err
}

// DeleteTx deletes a record within a transaction
func (f *FullRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := f.full.DeleteTx(ctx, tx, record)
	if err == nil {
		f.invalidateRecord(record)
	}
	return err
}

// DeleteMany deletes the records matching criteria. The deleted records
// are unknown, so every cached read is dropped.
func (f *FullRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := f.full.DeleteMany(ctx, criteria...)
	if err == nil {
		f.invalidateAfterCriteria()
	}
	return err
}

// DeleteManyTx is DeleteMany within a transaction
func (f *FullRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := f.full.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		f.invalidateAfterCriteria()
	}
	return err
}

// DeleteWhere deletes the records matching criteria, like DeleteMany.
func (f *FullRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := f.full.DeleteWhere(ctx, criteria...)
	if err == nil {
		f.invalidateAfterCriteria()
	}
	return err
}

// DeleteWhereTx is DeleteWhere within a transaction
func (f *FullRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := f.full.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		f.invalidateAfterCriteria()
	}
	return err
}

// ForceDelete deletes a record bypassing soft delete
func (f *FullRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := f.full.ForceDelete(ctx, record)
	if err == nil {
		f.invalidateRecord(record)
	}
	return err
}

// ForceDeleteTx is ForceDelete within a transaction
func (f *FullRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := f.full.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		f.invalidateRecord(record)
	}
	return err
}

// GetTx reads through; a transaction may see uncommitted rows.
func (f *FullRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return f.full.GetTx(ctx, tx, criteria...)
}

func (f *FullRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return f.full.GetByIDTx(ctx, tx, id, criteria...)
}

func (f *FullRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return f.full.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

func (f *FullRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return f.full.ListTx(ctx, tx, criteria...)
}

func (f *FullRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return f.full.CountTx(ctx, tx, criteria...)
}

// Raw runs a raw SQL query against the base repository, uncached.
func (f *FullRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return f.full.Raw(ctx, sql, args...)
}

func (f *FullRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return f.full.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (f *FullRepository[T]) Handlers() repository.ModelHandlers[T] {
	return f.full.Handlers()
}
