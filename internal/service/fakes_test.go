package service

import (
	"context"
	"time"

	"github.com/cobrify/dunning-engine/internal/content"
	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/provider"
	"github.com/cobrify/dunning-engine/internal/queue"
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/google/uuid"
)

type fakeObligationRepo struct {
	getByIDFn          func(ctx context.Context, id string) (*domain.Obligation, error)
	listNotifiableFn   func(ctx context.Context, tenantID string, limit int) ([]domain.Obligation, error)
	listOpenByClientFn func(ctx context.Context, clientID string) ([]domain.Obligation, error)
	markOverdueFn      func(ctx context.Context, tenantID string, before time.Time) (int64, error)
	rescheduleFn       func(ctx context.Context, id string, newDueDate time.Time) error
	setProtestedFn     func(ctx context.Context, id string, at time.Time) error
	clearProtestedFn   func(ctx context.Context, id string) error
}

func (f *fakeObligationRepo) GetByID(ctx context.Context, id string) (*domain.Obligation, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeObligationRepo) ListNotifiable(ctx context.Context, tenantID string, limit int) ([]domain.Obligation, error) {
	if f.listNotifiableFn != nil {
		return f.listNotifiableFn(ctx, tenantID, limit)
	}
	return nil, nil
}

func (f *fakeObligationRepo) ListOpenByClient(ctx context.Context, clientID string) ([]domain.Obligation, error) {
	if f.listOpenByClientFn != nil {
		return f.listOpenByClientFn(ctx, clientID)
	}
	return nil, nil
}

func (f *fakeObligationRepo) MarkOverdue(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	if f.markOverdueFn != nil {
		return f.markOverdueFn(ctx, tenantID, before)
	}
	return 0, nil
}

func (f *fakeObligationRepo) Reschedule(ctx context.Context, id string, newDueDate time.Time) error {
	if f.rescheduleFn != nil {
		return f.rescheduleFn(ctx, id, newDueDate)
	}
	return nil
}

func (f *fakeObligationRepo) SetProtested(ctx context.Context, id string, at time.Time) error {
	if f.setProtestedFn != nil {
		return f.setProtestedFn(ctx, id, at)
	}
	return nil
}

func (f *fakeObligationRepo) ClearProtested(ctx context.Context, id string) error {
	if f.clearProtestedFn != nil {
		return f.clearProtestedFn(ctx, id)
	}
	return nil
}

type fakeClientRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Client, error)
}

func (f *fakeClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.Client{ID: id, Name: "Test Client", Phone: "+15551112233"}, nil
}

type fakePolicyRepo struct {
	getByTenantFn   func(ctx context.Context, tenantID string) (*domain.NotificationPolicy, error)
	listTenantIDsFn func(ctx context.Context) ([]string, error)
}

func (f *fakePolicyRepo) GetByTenant(ctx context.Context, tenantID string) (*domain.NotificationPolicy, error) {
	if f.getByTenantFn != nil {
		return f.getByTenantFn(ctx, tenantID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakePolicyRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	if f.listTenantIDsFn != nil {
		return f.listTenantIDsFn(ctx)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	claimSlotFn        func(ctx context.Context, claim repository.SlotClaim) (*domain.DeliveryAttempt, bool, error)
	markOutcomeFn      func(ctx context.Context, id string, status domain.AttemptStatus, errorDetail *string) error
	listByObligationFn func(ctx context.Context, obligationID string) ([]domain.DeliveryAttempt, error)
	skipPendingFn      func(ctx context.Context, obligationID, reason string) (int64, error)
	discardPendingFn   func(ctx context.Context, obligationID string) (int64, error)
}

func (f *fakeAttemptRepo) ClaimSlot(ctx context.Context, claim repository.SlotClaim) (*domain.DeliveryAttempt, bool, error) {
	if f.claimSlotFn != nil {
		return f.claimSlotFn(ctx, claim)
	}
	now := claim.Now
	return &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		TenantID:      claim.TenantID,
		ObligationID:  claim.ObligationID,
		Kind:          claim.Kind,
		Occurrence:    claim.Occurrence,
		Status:        domain.AttemptPending,
		AttemptCount:  1,
		LastAttemptAt: &now,
	}, true, nil
}

func (f *fakeAttemptRepo) MarkOutcome(ctx context.Context, id string, status domain.AttemptStatus, errorDetail *string) error {
	if f.markOutcomeFn != nil {
		return f.markOutcomeFn(ctx, id, status, errorDetail)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByObligation(ctx context.Context, obligationID string) ([]domain.DeliveryAttempt, error) {
	if f.listByObligationFn != nil {
		return f.listByObligationFn(ctx, obligationID)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) SkipPending(ctx context.Context, obligationID, reason string) (int64, error) {
	if f.skipPendingFn != nil {
		return f.skipPendingFn(ctx, obligationID, reason)
	}
	return 0, nil
}

func (f *fakeAttemptRepo) DiscardPending(ctx context.Context, obligationID string) (int64, error) {
	if f.discardPendingFn != nil {
		return f.discardPendingFn(ctx, obligationID)
	}
	return 0, nil
}

type fakeClientStateRepo struct {
	getOrCreateFn   func(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error)
	transitionFn    func(ctx context.Context, clientID string, from, to domain.ServiceStatus, manualHold bool, entry *domain.EscalationEntry) error
	setManualHoldFn func(ctx context.Context, clientID string, hold bool) error
}

func (f *fakeClientStateRepo) GetOrCreate(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error) {
	if f.getOrCreateFn != nil {
		return f.getOrCreateFn(ctx, tenantID, clientID)
	}
	return &domain.ClientServiceState{ClientID: clientID, TenantID: tenantID, Status: domain.ServiceActive}, nil
}

func (f *fakeClientStateRepo) Transition(ctx context.Context, clientID string, from, to domain.ServiceStatus, manualHold bool, entry *domain.EscalationEntry) error {
	if f.transitionFn != nil {
		return f.transitionFn(ctx, clientID, from, to, manualHold, entry)
	}
	return nil
}

func (f *fakeClientStateRepo) SetManualHold(ctx context.Context, clientID string, hold bool) error {
	if f.setManualHoldFn != nil {
		return f.setManualHoldFn(ctx, clientID, hold)
	}
	return nil
}

type fakeHistoryRepo struct {
	appendFn       func(ctx context.Context, entry *domain.EscalationEntry) error
	listByClientFn func(ctx context.Context, clientID string, limit int) ([]domain.EscalationEntry, error)
}

func (f *fakeHistoryRepo) Append(ctx context.Context, entry *domain.EscalationEntry) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, entry)
	}
	return nil
}

func (f *fakeHistoryRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.EscalationEntry, error) {
	if f.listByClientFn != nil {
		return f.listByClientFn(ctx, clientID, limit)
	}
	return nil, nil
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, req content.ResolveRequest) (string, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, req content.ResolveRequest) (string, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, req)
	}
	return "reminder text\n\nPay here: " + req.PaymentLink, nil
}

type fakeProvider struct {
	sendFn func(ctx context.Context, delivery provider.Delivery) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, delivery provider.Delivery) (*provider.ProviderResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, delivery)
	}
	return &provider.ProviderResponse{StatusCode: 200, MessageID: "msg-1"}, nil
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	releaseFn func(ctx context.Context, key string) error
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, key, ttl)
	}
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, key)
	}
	return nil
}

type fakeLimiter struct {
	allowFn func(ctx context.Context, tenantID string) (bool, error)
	waitFn  func(ctx context.Context, tenantID string) error
}

func (f *fakeLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, tenantID)
	}
	return true, nil
}

func (f *fakeLimiter) Wait(ctx context.Context, tenantID string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, tenantID)
	}
	return nil
}

type fakeRunPublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.TenantRunMessage) error
}

func (f *fakeRunPublisher) Publish(ctx context.Context, queueName string, msg queue.TenantRunMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakeRunPublisher) Close() error { return nil }

type fakeRunConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeRunConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeRunConsumer) Close() error { return nil }
