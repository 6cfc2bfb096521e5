package app

import (
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

func wireRepos(db *gorm.DB, log *logger.Logger) repos.Set {
	log.Info("Wiring repos...")
	return repos.NewSet(db, log)
}
