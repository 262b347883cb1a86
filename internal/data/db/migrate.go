package db

import (
	"gorm.io/gorm"

	"github.com/rivergarden/training-portal/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.OfflineEntry{},
	)
}
