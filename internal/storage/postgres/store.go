package postgres

import (
	"fmt"

	"github.com/UkralStul/carreras-sync/internal/storage/gormstore"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New создает хранилище PostgreSQL и выполняет миграцию схемы.
func New(dsn string, opts gormstore.Options) (*gormstore.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormstore.Config(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return gormstore.New(db, opts)
}
