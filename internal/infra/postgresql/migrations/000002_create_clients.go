package migrations

import (
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createClientsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_clients",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ClientModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_clients_tenant_id ON clients (tenant_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ClientModel{})
		},
	}
}
