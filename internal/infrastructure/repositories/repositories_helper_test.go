package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"agrimarket.walletd/internal/infrastructure/storage"
)

func newTestSQLStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	s := storage.NewSQLStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("store down")
}

func (failingStore) Remove(context.Context, string) error { return errors.New("store down") }
