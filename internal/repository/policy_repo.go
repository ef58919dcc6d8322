package repository

import (
	"context"
	"errors"

	"github.com/cobrify/dunning-engine/internal/domain"
	"gorm.io/gorm"
)

type PolicyRepository interface {
	GetByTenant(ctx context.Context, tenantID string) (*domain.NotificationPolicy, error)
	// ListTenantIDs returns every tenant with a notification policy, used by
	// the trigger to fan out run messages.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

type GormPolicyRepo struct {
	db *gorm.DB
}

func NewGormPolicyRepo(db *gorm.DB) *GormPolicyRepo {
	return &GormPolicyRepo{db: db}
}

func (r *GormPolicyRepo) GetByTenant(ctx context.Context, tenantID string) (*domain.NotificationPolicy, error) {
	var model PolicyModel
	err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return policyModelToDomain(&model), nil
}

func (r *GormPolicyRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&PolicyModel{}).
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
