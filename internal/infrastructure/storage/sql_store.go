package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrimarket.walletd/internal/infrastructure/models"
)

// SQLStore persists slots in the kv_entries table. Expired rows read as absent and are
// pruned on the next write with a ttl.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates or updates the kv_entries table
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.KVEntry{})
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var m models.KVEntry
	err := s.db.WithContext(ctx).
		Where("entry_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", now()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return m.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	db := s.db.WithContext(ctx)
	m := &models.KVEntry{Key: key, Value: value}
	if ttl > 0 {
		if err := s.prune(db); err != nil {
			return err
		}
		expiresAt := now().Add(ttl)
		m.ExpiresAt = &expiresAt
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(m).Error
}

func (s *SQLStore) prune(db *gorm.DB) error {
	return db.Where("expires_at IS NOT NULL AND expires_at <= ?", now()).Delete(&models.KVEntry{}).Error
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&models.KVEntry{}).Error
}
