package datasources

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agrimarket.walletd/internal/config"
)

func TestOpenDatabase_SQLite(t *testing.T) {
	path := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := OpenDatabase(config.StorageConfig{Driver: "sqlite", SQLitePath: path}, config.DatabaseConfig{})
	require.NoError(t, err)
	require.NotNil(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenDatabase_UnknownDriver(t *testing.T) {
	_, err := OpenDatabase(config.StorageConfig{Driver: "memory"}, config.DatabaseConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a SQL driver")
}

func TestOpenDatabase_PostgresOpenError(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })

	var gotDSN string
	openPostgres = func(dsn string) (*gorm.DB, error) {
		gotDSN = dsn
		return nil, errors.New("open failed")
	}

	_, err := OpenDatabase(config.StorageConfig{Driver: "postgres"}, config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open database")
	require.Equal(t, "postgres://u:p@localhost:5432/d?sslmode=disable", gotDSN)
}
