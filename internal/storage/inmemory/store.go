// Package inmemory поднимает хранилище на SQLite в памяти: для тестов и демо-режима.
package inmemory

import (
	"fmt"

	"github.com/UkralStul/carreras-sync/internal/storage/gormstore"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New создает отдельную базу в памяти с включёнными внешними ключами.
// У каждого вызова своё имя базы, так что хранилища не пересекаются.
func New(opts gormstore.Options) (*gormstore.Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), gormstore.Config(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Одно соединение: база живёт, пока оно открыто, и SQLite не ловит блокировки таблиц
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return gormstore.New(db, opts)
}
