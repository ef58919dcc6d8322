package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"gorm.io/gorm"
)

var notifiableStatuses = []domain.ObligationStatus{
	domain.ObligationPending,
	domain.ObligationOverdue,
}

type ObligationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Obligation, error)
	// ListNotifiable returns unpaid, unprotested obligations for one tenant.
	ListNotifiable(ctx context.Context, tenantID string, limit int) ([]domain.Obligation, error)
	// ListOpenByClient returns unpaid, unprotested obligations for one client.
	ListOpenByClient(ctx context.Context, clientID string) ([]domain.Obligation, error)
	// MarkOverdue flips pending obligations whose due date passed before the
	// given day to overdue. Returns the number of rows changed.
	MarkOverdue(ctx context.Context, tenantID string, before time.Time) (int64, error)
	// Reschedule moves the due date and resets status to pending.
	Reschedule(ctx context.Context, id string, newDueDate time.Time) error
	SetProtested(ctx context.Context, id string, at time.Time) error
	ClearProtested(ctx context.Context, id string) error
}

type GormObligationRepo struct {
	db *gorm.DB
}

func NewGormObligationRepo(db *gorm.DB) *GormObligationRepo {
	return &GormObligationRepo{db: db}
}

func (r *GormObligationRepo) GetByID(ctx context.Context, id string) (*domain.Obligation, error) {
	var model ObligationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return obligationModelToDomain(&model), nil
}

func (r *GormObligationRepo) ListNotifiable(ctx context.Context, tenantID string, limit int) ([]domain.Obligation, error) {
	var models []ObligationModel
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND protested_at IS NULL", tenantID, notifiableStatuses).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	obligations := make([]domain.Obligation, 0, len(models))
	for i := range models {
		obligations = append(obligations, *obligationModelToDomain(&models[i]))
	}
	return obligations, nil
}

func (r *GormObligationRepo) ListOpenByClient(ctx context.Context, clientID string) ([]domain.Obligation, error) {
	var models []ObligationModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND status IN ? AND protested_at IS NULL", clientID, notifiableStatuses).
		Order("due_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	obligations := make([]domain.Obligation, 0, len(models))
	for i := range models {
		obligations = append(obligations, *obligationModelToDomain(&models[i]))
	}
	return obligations, nil
}

func (r *GormObligationRepo) MarkOverdue(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&ObligationModel{}).
		Where("tenant_id = ? AND status = ? AND due_date < ?", tenantID, domain.ObligationPending, before).
		Update("status", domain.ObligationOverdue)
	return result.RowsAffected, result.Error
}

func (r *GormObligationRepo) Reschedule(ctx context.Context, id string, newDueDate time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ObligationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"due_date": newDueDate,
			"status":   domain.ObligationPending,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormObligationRepo) SetProtested(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ObligationModel{}).
		Where("id = ? AND protested_at IS NULL", id).
		Update("protested_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormObligationRepo) ClearProtested(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&ObligationModel{}).
		Where("id = ? AND protested_at IS NOT NULL", id).
		Update("protested_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

type GormClientRepo struct {
	db *gorm.DB
}

func NewGormClientRepo(db *gorm.DB) *GormClientRepo {
	return &GormClientRepo{db: db}
}

func (r *GormClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	var model ClientModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return clientModelToDomain(&model), nil
}
