package repository

import (
	"context"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotClaim describes an attempted claim of one slot occurrence.
type SlotClaim struct {
	TenantID      string
	ObligationID  string
	Kind          domain.SlotKind
	Occurrence    int
	Now           time.Time
	MaxAttempts   int
	RetryInterval time.Duration
}

type AttemptRepository interface {
	// ClaimSlot atomically creates or re-arms the attempt row for a slot
	// occurrence. The write happens before any dispatch: a claimed row in
	// PENDING with a fresh LastAttemptAt is the durable "send in flight"
	// marker. Returns claimed=false when another run already owns the
	// occurrence or the retry gate rejects it.
	ClaimSlot(ctx context.Context, claim SlotClaim) (*domain.DeliveryAttempt, bool, error)
	// MarkOutcome records the dispatch result on a claimed row.
	MarkOutcome(ctx context.Context, id string, status domain.AttemptStatus, errorDetail *string) error
	ListByObligation(ctx context.Context, obligationID string) ([]domain.DeliveryAttempt, error)
	// SkipPending moves not-yet-sent rows to SKIPPED with a reason.
	SkipPending(ctx context.Context, obligationID, reason string) (int64, error)
	// DiscardPending deletes not-yet-sent rows, used on reschedule.
	DiscardPending(ctx context.Context, obligationID string) (int64, error)
}

var openAttemptStatuses = []domain.AttemptStatus{
	domain.AttemptPending,
	domain.AttemptFailed,
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) ClaimSlot(ctx context.Context, claim SlotClaim) (*domain.DeliveryAttempt, bool, error) {
	now := claim.Now.UTC()
	model := DeliveryAttemptModel{
		ID:            uuid.NewString(),
		TenantID:      claim.TenantID,
		ObligationID:  claim.ObligationID,
		Kind:          claim.Kind,
		Occurrence:    claim.Occurrence,
		Status:        domain.AttemptPending,
		AttemptCount:  1,
		LastAttemptAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	retryCutoff := now.Add(-claim.RetryInterval)

	// INSERT ... ON CONFLICT DO UPDATE ... WHERE: the update fires only for
	// non-terminal rows with attempt budget left and the retry interval
	// elapsed, so concurrent runs race on one conditional statement.
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "obligation_id"},
			{Name: "kind"},
			{Name: "occurrence"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"status":          domain.AttemptPending,
			"attempt_count":   gorm.Expr("delivery_attempts.attempt_count + 1"),
			"last_attempt_at": now,
			"error_detail":    nil,
			"updated_at":      now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("delivery_attempts.status IN ?", openAttemptStatuses),
			gorm.Expr("delivery_attempts.attempt_count < ?", claim.MaxAttempts),
			gorm.Expr("(delivery_attempts.last_attempt_at IS NULL OR delivery_attempts.last_attempt_at <= ?)", retryCutoff),
		}},
	}).Create(&model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, false, nil
	}

	var current DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		First(&current, "obligation_id = ? AND kind = ? AND occurrence = ?",
			claim.ObligationID, claim.Kind, claim.Occurrence).Error
	if err != nil {
		return nil, false, err
	}

	return attemptModelToDomain(&current), true, nil
}

func (r *GormAttemptRepo) MarkOutcome(ctx context.Context, id string, status domain.AttemptStatus, errorDetail *string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"error_detail": errorDetail,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormAttemptRepo) ListByObligation(ctx context.Context, obligationID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts, nil
}

func (r *GormAttemptRepo) SkipPending(ctx context.Context, obligationID, reason string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("obligation_id = ? AND status IN ?", obligationID, openAttemptStatuses).
		Updates(map[string]any{
			"status":       domain.AttemptSkipped,
			"error_detail": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *GormAttemptRepo) DiscardPending(ctx context.Context, obligationID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("obligation_id = ? AND status IN ?", obligationID, openAttemptStatuses).
		Delete(&DeliveryAttemptModel{})
	return result.RowsAffected, result.Error
}
