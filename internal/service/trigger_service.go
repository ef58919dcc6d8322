package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/queue"
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriggerService fans an evaluation run out to workers, one queue message per
// tenant. All messages of one trigger share a run id and evaluation instant.
type TriggerService struct {
	policies  repository.PolicyRepository
	publisher queue.Publisher
	runs      *RunService
	logger    *zap.Logger
	now       func() time.Time
}

// TriggerResult reports what one trigger enqueued.
type TriggerResult struct {
	RunID       string
	TriggeredAt time.Time
	Tenants     int
	Enqueued    int
}

func NewTriggerService(
	policies repository.PolicyRepository,
	publisher queue.Publisher,
	runs *RunService,
	logger *zap.Logger,
) (*TriggerService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TriggerService{
		policies:  policies,
		publisher: publisher,
		runs:      runs,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// TriggerAll enqueues a run for every tenant with a policy. Publish failures
// are counted, not fatal; the remaining tenants still get their run.
func (t *TriggerService) TriggerAll(ctx context.Context) (*TriggerResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tenantIDs, err := t.policies.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	result := &TriggerResult{
		RunID:       uuid.NewString(),
		TriggeredAt: t.now().UTC(),
		Tenants:     len(tenantIDs),
	}

	for _, tenantID := range tenantIDs {
		msg := queue.TenantRunMessage{
			TenantID:    tenantID,
			RunID:       result.RunID,
			TriggeredAt: result.TriggeredAt,
		}
		if err := t.publisher.Publish(ctx, queue.RunQueueName, msg); err != nil {
			t.logger.Error("failed to enqueue tenant run",
				zap.String("tenantId", tenantID),
				zap.String("runId", result.RunID),
				zap.Error(err),
			)
			continue
		}
		result.Enqueued++
	}

	if result.Enqueued < result.Tenants {
		return result, fmt.Errorf("trigger enqueued %d/%d tenant runs", result.Enqueued, result.Tenants)
	}

	t.logger.Info("run triggered",
		zap.String("runId", result.RunID),
		zap.Int("tenants", result.Tenants),
	)
	return result, nil
}

// TriggerTenant enqueues a run for one tenant.
func (t *TriggerService) TriggerTenant(ctx context.Context, tenantID string) (*TriggerResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}

	result := &TriggerResult{
		RunID:       uuid.NewString(),
		TriggeredAt: t.now().UTC(),
		Tenants:     1,
	}

	msg := queue.TenantRunMessage{
		TenantID:    strings.TrimSpace(tenantID),
		RunID:       result.RunID,
		TriggeredAt: result.TriggeredAt,
	}
	if err := t.publisher.Publish(ctx, queue.RunQueueName, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue tenant run: %w", err)
	}
	result.Enqueued = 1

	return result, nil
}

// RunTenantNow executes one tenant's pass synchronously, bypassing the
// broker. Used by the trigger endpoint when the caller wants the summary.
func (t *TriggerService) RunTenantNow(ctx context.Context, tenantID string) (*RunSummary, error) {
	if t.runs == nil {
		return nil, fmt.Errorf("synchronous runs are not configured")
	}
	return t.runs.EvaluateAndDispatch(ctx, tenantID, t.now().UTC())
}
