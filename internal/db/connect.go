package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Memory is the DSN of a private in-memory database.
const Memory = ":memory:"

// Open opens a GORM connection to a SQLite database. An in-memory database
// lives on a single connection, so the pool is pinned to one.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dsn, err)
	}
	if dsn == Memory {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: pool for %s: %w", dsn, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}
