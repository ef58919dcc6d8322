package migrations

import (
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createPoliciesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notification_policies",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PolicyModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PolicyModel{})
		},
	}
}
