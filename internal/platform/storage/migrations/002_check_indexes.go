package migrations

import "gorm.io/gorm"

// Migration002CheckIndexes indexes check history for the admin history view.
type Migration002CheckIndexes struct{}

func (m *Migration002CheckIndexes) Version() string {
	return "002_check_indexes"
}

func (m *Migration002CheckIndexes) Description() string {
	return "Index check_records by slug and checked_at"
}

func (m *Migration002CheckIndexes) Up(db *gorm.DB) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_check_records_slug ON check_records(slug)`,
		`CREATE INDEX IF NOT EXISTS idx_check_records_checked_at ON check_records(checked_at)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration002CheckIndexes) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP INDEX IF EXISTS idx_check_records_checked_at`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP INDEX IF EXISTS idx_check_records_slug`).Error
}
