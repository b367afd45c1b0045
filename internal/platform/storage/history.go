package storage

import (
	"context"

	"gorm.io/gorm"

	"wpguard/internal/platform/errors"
)

// HistoryRepository persists changelog check outcomes.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append 写入一条检查记录
func (r *HistoryRepository) Append(ctx context.Context, rec *CheckRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "history.append", "failed to save check record", err)
	}
	return nil
}

// Recent returns the newest records first. An empty slug returns all plugins.
func (r *HistoryRepository) Recent(ctx context.Context, slug string, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("checked_at DESC").Order("id DESC").Limit(limit)
	if slug != "" {
		q = q.Where("slug = ?", slug)
	}
	var records []CheckRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "history.recent", "failed to list check records", err)
	}
	return records, nil
}

// Prune keeps the newest keep records per slug and deletes the rest.
func (r *HistoryRepository) Prune(ctx context.Context, slug string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res := r.db.WithContext(ctx).Exec(`
		DELETE FROM check_records
		WHERE slug = ? AND id NOT IN (
			SELECT id FROM check_records WHERE slug = ? ORDER BY checked_at DESC, id DESC LIMIT ?
		)`, slug, slug, keep)
	if res.Error != nil {
		return 0, errors.Wrap(errors.KindStorage, "history.prune", "failed to prune check records", res.Error)
	}
	return res.RowsAffected, nil
}
