package offline

import (
	"bytes"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/pkg/dbctx"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type OfflineEntryRepo interface {
	Upsert(dbc dbctx.Context, row *domain.OfflineEntry) error
	Get(dbc dbctx.Context, namespace, key string) (*domain.OfflineEntry, error)
	Delete(dbc dbctx.Context, namespace, key string) error
	DeleteIfValue(dbc dbctx.Context, namespace, key string, value []byte) (bool, error)
	ListByPrefix(dbc dbctx.Context, namespace, prefix string) ([]*domain.OfflineEntry, error)
}

type offlineEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOfflineEntryRepo(db *gorm.DB, baseLog *logger.Logger) OfflineEntryRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &offlineEntryRepo{
		db:  db,
		log: baseLog.With("repo", "OfflineEntryRepo"),
	}
}

func (r *offlineEntryRepo) Upsert(dbc dbctx.Context, row *domain.OfflineEntry) error {
	if row == nil || row.RecordKey == "" {
		return nil
	}
	row.Namespace = normalizeNamespace(row.Namespace)
	row.UpdatedAt = time.Now().UTC()

	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "record_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}

func (r *offlineEntryRepo) Get(dbc dbctx.Context, namespace, key string) (*domain.OfflineEntry, error) {
	var rows []*domain.OfflineEntry
	if err := dbc.DB(r.db).
		Where("namespace = ? AND record_key = ?", normalizeNamespace(namespace), key).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *offlineEntryRepo) Delete(dbc dbctx.Context, namespace, key string) error {
	return dbc.DB(r.db).
		Where("namespace = ? AND record_key = ?", normalizeNamespace(namespace), key).
		Delete(&domain.OfflineEntry{}).Error
}

// DeleteIfValue removes the row only while it still holds value. The row is locked for the
// check on postgres; sqlite serialises writers on its own.
func (r *offlineEntryRepo) DeleteIfValue(dbc dbctx.Context, namespace, key string, value []byte) (bool, error) {
	ns := normalizeNamespace(namespace)
	deleted := false
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		var rows []*domain.OfflineEntry
		if err := inner.DB(r.db).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("namespace = ? AND record_key = ?", ns, key).
			Limit(1).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 || !bytes.Equal(rows[0].Value, value) {
			return nil
		}
		if err := r.Delete(inner, ns, key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *offlineEntryRepo) ListByPrefix(dbc dbctx.Context, namespace, prefix string) ([]*domain.OfflineEntry, error) {
	var rows []*domain.OfflineEntry
	q := dbc.DB(r.db).Where("namespace = ?", normalizeNamespace(namespace))
	if prefix != "" {
		q = q.Where("record_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	if err := q.Order("record_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
