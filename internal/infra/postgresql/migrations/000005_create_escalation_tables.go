package migrations

import (
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createEscalationTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_escalation_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ClientStateModel{}, &repository.EscalationEntryModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_client_states_tenant_status ON client_service_states (tenant_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_escalation_history_client ON escalation_history (tenant_id, client_id, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.EscalationEntryModel{},
				&repository.ClientStateModel{},
			)
		},
	}
}
