package offline

import (
	"context"

	"gorm.io/datatypes"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/pkg/dbctx"
)

// gormStore keeps entries in the offline_entry table (sqlite or postgres).
type gormStore struct {
	repo  OfflineEntryRepo
	close func() error
}

// NewGormStore wraps repo; closeFn releases the underlying database and may be nil.
func NewGormStore(repo OfflineEntryRepo, closeFn func() error) Store {
	return &gormStore{repo: repo, close: closeFn}
}

func (s *gormStore) Bucket(namespace string) Bucket {
	return &gormBucket{repo: s.repo, ns: normalizeNamespace(namespace)}
}

func (s *gormStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

type gormBucket struct {
	repo OfflineEntryRepo
	ns   string
}

func (b *gormBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row, err := b.repo.Get(dbctx.Context{Ctx: ctx}, b.ns, key)
	if err != nil || row == nil {
		return nil, false, err
	}
	return []byte(row.Value), true, nil
}

func (b *gormBucket) Set(ctx context.Context, key string, value []byte) error {
	return b.repo.Upsert(dbctx.Context{Ctx: ctx}, &domain.OfflineEntry{
		Namespace: b.ns,
		RecordKey: key,
		Value:     datatypes.JSON(value),
	})
}

func (b *gormBucket) Delete(ctx context.Context, key string) error {
	return b.repo.Delete(dbctx.Context{Ctx: ctx}, b.ns, key)
}

func (b *gormBucket) DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	return b.repo.DeleteIfValue(dbctx.Context{Ctx: ctx}, b.ns, key, value)
}

func (b *gormBucket) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := b.repo.ListByPrefix(dbctx.Context{Ctx: ctx}, b.ns, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{Key: row.RecordKey, Value: []byte(row.Value)})
	}
	return out, nil
}
