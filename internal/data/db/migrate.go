package db

import (
	"fmt"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Running auto migrations")
	return AutoMigrateAll(s.db)
}
