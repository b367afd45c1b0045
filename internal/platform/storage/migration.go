package storage

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"wpguard/internal/platform/errors"
)

// Migration 数据库迁移接口
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// MigrationRecord 迁移记录
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationManager applies registered migrations in version order, each in
// its own transaction together with its bookkeeping row.
type MigrationManager struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrationManager 创建迁移管理器
func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// AddMigration 添加迁移
func (m *MigrationManager) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version() < m.migrations[j].Version()
	})
}

func (m *MigrationManager) applied() (map[string]bool, error) {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.create_table", "failed to create migration table", err)
	}
	var versions []string
	if err := m.db.Model(&MigrationRecord{}).Pluck("version", &versions).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.get_applied", "failed to get applied migrations", err)
	}
	set := make(map[string]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	return set, nil
}

// Pending lists the versions not applied yet.
func (m *MigrationManager) Pending() ([]string, error) {
	done, err := m.applied()
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, mig := range m.migrations {
		if !done[mig.Version()] {
			pending = append(pending, mig.Version())
		}
	}
	return pending, nil
}

// RunMigrations 执行所有待应用的迁移
func (m *MigrationManager) RunMigrations() error {
	done, err := m.applied()
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if done[mig.Version()] {
			continue
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return errors.Wrap(errors.KindStorage, "migration.up", fmt.Sprintf("failed to run migration %s", mig.Version()), err)
			}
			record := &MigrationRecord{
				Version:   mig.Version(),
				Name:      mig.Description(),
				AppliedAt: time.Now(),
			}
			if err := tx.Create(record).Error; err != nil {
				return errors.Wrap(errors.KindStorage, "migration.record", "failed to record migration", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigration 回滚指定版本的迁移
func (m *MigrationManager) RollbackMigration(version string) error {
	var target Migration
	for _, mig := range m.migrations {
		if mig.Version() == version {
			target = mig
			break
		}
	}
	if target == nil {
		return errors.New(errors.KindStorage, "migration.not_registered", fmt.Sprintf("migration %s not registered", version))
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("version = ?", version).Delete(&MigrationRecord{})
		if res.Error != nil {
			return errors.Wrap(errors.KindStorage, "migration.delete_record", "failed to delete migration record", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.New(errors.KindStorage, "migration.not_found", fmt.Sprintf("migration %s not applied", version))
		}
		if err := target.Down(tx); err != nil {
			return errors.Wrap(errors.KindStorage, "migration.down", fmt.Sprintf("failed to rollback migration %s", version), err)
		}
		return nil
	})
}

// GetMigrationHistory 获取迁移历史
func (m *MigrationManager) GetMigrationHistory() ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.Order("applied_at DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.history", "failed to get migration history", err)
	}
	return records, nil
}
