package storage

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/jsonx"
)

// OptionRepository stores JSON values under unique keys.
type OptionRepository struct {
	db *gorm.DB
}

// NewOptionRepository 创建选项仓库
func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

// Get decodes the value stored under key into dst. It reports false when the
// key has never been written.
func (r *OptionRepository) Get(ctx context.Context, key string, dst any) (bool, error) {
	return getOption(r.db.WithContext(ctx), key, dst)
}

// Set replaces the value stored under key.
func (r *OptionRepository) Set(ctx context.Context, key string, value any) error {
	return setOption(r.db.WithContext(ctx), key, value)
}

// Update runs fn against the current value inside one transaction and
// stores whatever fn leaves in dst. Concurrent updates of the same key are
// serialised by the database.
func (r *OptionRepository) Update(ctx context.Context, key string, dst any, fn func(exists bool) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := getOption(tx, key, dst)
		if err != nil {
			return err
		}
		if err := fn(found); err != nil {
			return err
		}
		return setOption(tx, key, dst)
	})
}

func getOption(db *gorm.DB, key string, dst any) (bool, error) {
	var rec OptionRecord
	err := db.Where("key = ?", key).First(&rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.KindStorage, "option.get", "failed to read option "+key, err)
	}
	if err := jsonx.Unmarshal(rec.Value, dst); err != nil {
		return true, errors.Wrap(errors.KindStorage, "option.decode", "failed to decode option "+key, err)
	}
	return true, nil
}

func setOption(db *gorm.DB, key string, value any) error {
	raw, err := jsonx.Marshal(value)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "option.encode", "failed to encode option "+key, err)
	}
	rec := OptionRecord{Key: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "option.set", "failed to write option "+key, err)
	}
	return nil
}
