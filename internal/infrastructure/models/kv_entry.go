package models

import "time"

// KVEntry is one wallet-layer storage slot
type KVEntry struct {
	Key       string     `gorm:"column:entry_key;type:varchar(191);primaryKey"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
