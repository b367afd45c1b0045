package storage

import (
	"time"

	"gorm.io/datatypes"
)

// OptionRecord 键值选项记录，值为 JSON
type OptionRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Key       string         `gorm:"uniqueIndex;not null" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (OptionRecord) TableName() string {
	return "options"
}

// CheckRecord is one persisted changelog comparison.
type CheckRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"index;not null" json:"slug"`
	Status     string    `gorm:"not null" json:"status"`
	Failure    string    `json:"failure,omitempty"`
	ReadmeLine string    `gorm:"type:text" json:"readme_line,omitempty"`
	PageLine   string    `gorm:"type:text" json:"page_line,omitempty"`
	Alerted    bool      `json:"alerted"`
	Detail     string    `gorm:"type:text" json:"detail,omitempty"`
	CheckedAt  time.Time `gorm:"index;not null" json:"checked_at"`
}

// TableName 指定表名
func (CheckRecord) TableName() string {
	return "check_records"
}
