package migrations

import (
	"gorm.io/gorm"
)

// Migration001Initial 初始迁移 - 创建选项表与检查记录表
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create options and check_records tables"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS options (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key VARCHAR(191) NOT NULL UNIQUE,
			value JSON NOT NULL,
			updated_at DATETIME
		)
	`).Error; err != nil {
		return err
	}

	return db.Exec(`
		CREATE TABLE IF NOT EXISTS check_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug VARCHAR(191) NOT NULL,
			status VARCHAR(32) NOT NULL,
			failure VARCHAR(32),
			readme_line TEXT,
			page_line TEXT,
			alerted BOOLEAN NOT NULL DEFAULT 0,
			detail TEXT,
			checked_at DATETIME NOT NULL
		)
	`).Error
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP TABLE IF EXISTS check_records`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP TABLE IF EXISTS options`).Error
}
