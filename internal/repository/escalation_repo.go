package repository

import (
	"context"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClientStateRepository interface {
	// GetOrCreate loads the client's service state, creating an ACTIVE row on
	// first contact.
	GetOrCreate(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error)
	// Transition applies a status change and appends its audit entry in one
	// transaction. The update is conditional on the expected previous status;
	// a lost race returns ErrConflict and nothing is written.
	Transition(ctx context.Context, clientID string, from, to domain.ServiceStatus, manualHold bool, entry *domain.EscalationEntry) error
	SetManualHold(ctx context.Context, clientID string, hold bool) error
}

type EscalationHistoryRepository interface {
	Append(ctx context.Context, entry *domain.EscalationEntry) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]domain.EscalationEntry, error)
}

type GormClientStateRepo struct {
	db *gorm.DB
}

func NewGormClientStateRepo(db *gorm.DB) *GormClientStateRepo {
	return &GormClientStateRepo{db: db}
}

func (r *GormClientStateRepo) GetOrCreate(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error) {
	model := ClientStateModel{
		ClientID:  clientID,
		TenantID:  tenantID,
		Status:    domain.ServiceActive,
		UpdatedAt: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return nil, err
	}

	var current ClientStateModel
	if err := r.db.WithContext(ctx).First(&current, "client_id = ?", clientID).Error; err != nil {
		return nil, err
	}
	return stateModelToDomain(&current), nil
}

func (r *GormClientStateRepo) Transition(
	ctx context.Context,
	clientID string,
	from, to domain.ServiceStatus,
	manualHold bool,
	entry *domain.EscalationEntry,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&ClientStateModel{}).
			Where("client_id = ? AND status = ?", clientID, from).
			Updates(map[string]any{
				"status":      to,
				"manual_hold": manualHold,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrConflict
		}

		return tx.Create(entryModelFromDomain(entry)).Error
	})
}

func (r *GormClientStateRepo) SetManualHold(ctx context.Context, clientID string, hold bool) error {
	result := r.db.WithContext(ctx).
		Model(&ClientStateModel{}).
		Where("client_id = ?", clientID).
		Update("manual_hold", hold)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type GormEscalationHistoryRepo struct {
	db *gorm.DB
}

func NewGormEscalationHistoryRepo(db *gorm.DB) *GormEscalationHistoryRepo {
	return &GormEscalationHistoryRepo{db: db}
}

func (r *GormEscalationHistoryRepo) Append(ctx context.Context, entry *domain.EscalationEntry) error {
	return r.db.WithContext(ctx).Create(entryModelFromDomain(entry)).Error
}

func (r *GormEscalationHistoryRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.EscalationEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var models []EscalationEntryModel
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.EscalationEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *entryModelToDomain(&models[i]))
	}
	return entries, nil
}
