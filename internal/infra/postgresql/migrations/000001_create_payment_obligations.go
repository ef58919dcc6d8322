package migrations

import (
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createObligationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_payment_obligations",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ObligationModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_obligations_tenant_status ON payment_obligations (tenant_id, status) WHERE protested_at IS NULL`,
				`CREATE INDEX IF NOT EXISTS idx_obligations_client_id ON payment_obligations (client_id)`,
				`CREATE INDEX IF NOT EXISTS idx_obligations_due_date ON payment_obligations (due_date) WHERE status IN ('PENDING', 'OVERDUE')`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ObligationModel{})
		},
	}
}
