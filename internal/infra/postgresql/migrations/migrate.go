package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createObligationsTable(),
		createClientsTable(),
		createPoliciesTable(),
		createDeliveryAttemptsTable(),
		createEscalationTables(),
	})

	return m.Migrate()
}
