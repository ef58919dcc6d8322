package migrations

import (
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createDeliveryAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Slot claims rely on this uniqueness for their conflict target.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_slot ON delivery_attempts (obligation_id, kind, occurrence)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_obligation_id ON delivery_attempts (obligation_id)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_tenant_status ON delivery_attempts (tenant_id, status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
