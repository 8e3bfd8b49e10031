package datasources

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"agrimarket.walletd/internal/config"
)

var (
	openPostgres = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	openSQLite = func(path string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
)

// OpenDatabase opens the SQL backend selected by the storage driver ("sqlite" or "postgres")
func OpenDatabase(storage config.StorageConfig, database config.DatabaseConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch storage.Driver {
	case "postgres":
		db, err = openPostgres(database.URL())
	case "sqlite":
		db, err = openSQLite(storage.SQLitePath)
	default:
		return nil, fmt.Errorf("storage driver %q is not a SQL driver", storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
