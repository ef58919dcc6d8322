package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/content"
	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/lock"
	"github.com/cobrify/dunning-engine/internal/observability"
	"github.com/cobrify/dunning-engine/internal/provider"
	"github.com/cobrify/dunning-engine/internal/ratelimit"
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/cobrify/dunning-engine/internal/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxRunBatchSize bounds one pass; anything beyond it waits for the next
	// trigger.
	maxRunBatchSize = 1000
	slotLockTTL     = 30 * time.Second
)

// ContentResolver produces the message text for one slot.
type ContentResolver interface {
	Resolve(ctx context.Context, req content.ResolveRequest) (string, error)
}

// RunSummary counts the dispatch outcomes of one tenant evaluation pass.
type RunSummary struct {
	TenantID  string
	Evaluated int
	Sent      int
	Failed    int
	Skipped   int
}

// RunService executes one evaluation-and-dispatch pass for a tenant. The
// pass is stateless and idempotent: slots are re-derived every time and the
// conditional attempt claim is the only gate against double sends.
type RunService struct {
	obligations repository.ObligationRepository
	clients     repository.ClientRepository
	policies    repository.PolicyRepository
	attempts    repository.AttemptRepository
	history     repository.EscalationHistoryRepository
	escalations *EscalationService
	resolver    ContentResolver
	provider    provider.Provider
	locker      lock.SlotLocker
	limiter     ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewRunService(
	obligations repository.ObligationRepository,
	clients repository.ClientRepository,
	policies repository.PolicyRepository,
	attempts repository.AttemptRepository,
	history repository.EscalationHistoryRepository,
	escalations *EscalationService,
	resolver ContentResolver,
	messageProvider provider.Provider,
	locker lock.SlotLocker,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*RunService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunService{
		obligations: obligations,
		clients:     clients,
		policies:    policies,
		attempts:    attempts,
		history:     history,
		escalations: escalations,
		resolver:    resolver,
		provider:    messageProvider,
		locker:      locker,
		limiter:     limiter,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *RunService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// EvaluateAndDispatch runs one pass for the tenant at runAt. Obligations are
// processed independently; one failing obligation never aborts the pass. The
// caller bounds the pass with a context deadline.
func (s *RunService) EvaluateAndDispatch(ctx context.Context, tenantID string, runAt time.Time) (*RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if runAt.IsZero() {
		runAt = s.now().UTC()
	}

	summary := &RunSummary{TenantID: tenantID}

	start := s.now()
	if s.metrics != nil {
		s.metrics.IncRunInFlight()
		defer func() {
			s.metrics.DecRunInFlight()
			s.metrics.ObserveRunDuration(s.now().Sub(start))
		}()
	}

	policy, err := s.policies.GetByTenant(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("run skipped: tenant has no notification policy",
			zap.String("tenantId", tenantID),
		)
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant policy: %w", err)
	}
	if policy.Inert() {
		return summary, nil
	}

	loc := policy.Location()
	flipped, err := s.obligations.MarkOverdue(ctx, tenantID, localDay(runAt, loc))
	if err != nil {
		return nil, fmt.Errorf("failed to mark overdue obligations: %w", err)
	}
	if flipped > 0 {
		s.logger.Info("obligations marked overdue",
			zap.String("tenantId", tenantID),
			zap.Int64("count", flipped),
		)
	}

	obligations, err := s.obligations.ListNotifiable(ctx, tenantID, maxRunBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifiable obligations: %w", err)
	}

	for i := range obligations {
		if ctx.Err() != nil {
			s.logger.Warn("run stopped early: time budget exhausted",
				zap.String("tenantId", tenantID),
				zap.Int("processed", i),
				zap.Int("total", len(obligations)),
			)
			break
		}

		if err := s.processObligation(ctx, policy, &obligations[i], runAt, summary); err != nil {
			s.logger.Error("obligation processing failed",
				zap.String("tenantId", tenantID),
				zap.String("obligationId", obligations[i].ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("run completed",
		zap.String("tenantId", tenantID),
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

func (s *RunService) processObligation(
	ctx context.Context,
	policy *domain.NotificationPolicy,
	obligation *domain.Obligation,
	runAt time.Time,
	summary *RunSummary,
) error {
	existing, err := s.attempts.ListByObligation(ctx, obligation.ID)
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}

	slots := schedule.Evaluate(obligation, policy, existing, runAt)
	summary.Evaluated += len(slots)

	var firstErr error
	for _, slot := range slots {
		if ctx.Err() != nil {
			break
		}
		if err := s.dispatchSlot(ctx, policy, obligation, slot, runAt, summary); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error("slot dispatch failed",
				zap.String("obligationId", obligation.ID),
				zap.String("slot", slot.Key()),
				zap.Error(err),
			)
		}
	}

	if obligation.DaysOverdue(runAt, policy.Location()) > 0 && s.escalations != nil {
		if _, err := s.escalations.Evaluate(ctx, obligation.TenantID, obligation.ClientID); err != nil {
			s.logger.Error("escalation evaluation failed",
				zap.String("clientId", obligation.ClientID),
				zap.Error(err),
			)
		}
	}

	return firstErr
}

func (s *RunService) dispatchSlot(
	ctx context.Context,
	policy *domain.NotificationPolicy,
	obligation *domain.Obligation,
	slot domain.Slot,
	runAt time.Time,
	summary *RunSummary,
) error {
	if obligation.Protested() {
		return fmt.Errorf("%w: protested obligation reached dispatch", domain.ErrInvariant)
	}

	acquired, err := s.locker.Acquire(ctx, slot.Key(), slotLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !acquired {
		summary.Skipped++
		return nil
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(ctx), slot.Key()); releaseErr != nil {
			s.logger.Warn("failed to release slot lock",
				zap.String("slot", slot.Key()),
				zap.Error(releaseErr),
			)
		}
	}()

	attempt, claimed, err := s.attempts.ClaimSlot(ctx, repository.SlotClaim{
		TenantID:      obligation.TenantID,
		ObligationID:  obligation.ID,
		Kind:          slot.Kind,
		Occurrence:    slot.Occurrence,
		Now:           runAt,
		MaxAttempts:   policy.MaxAttempts(),
		RetryInterval: policy.RetryInterval(),
	})
	if err != nil {
		return fmt.Errorf("failed to claim slot: %w", err)
	}
	if !claimed {
		summary.Skipped++
		return nil
	}

	client, err := s.clients.GetByID(ctx, obligation.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.skipAttempt(ctx, attempt.ID, "client not found", summary)
		}
		return fmt.Errorf("failed to load client: %w", err)
	}
	if strings.TrimSpace(client.Phone) == "" {
		return s.skipAttempt(ctx, attempt.ID, "client has no messaging destination", summary)
	}

	daysOverdue := obligation.DaysOverdue(runAt, policy.Location())

	text, err := s.resolver.Resolve(ctx, content.ResolveRequest{
		TenantName:  policy.TenantName,
		ClientName:  client.Name,
		AmountCents: obligation.AmountCents,
		Slot:        slot,
		DaysOverdue: daysOverdue,
		PaymentLink: obligation.PaymentLink,
		AIEnabled:   policy.AIEnabled,
	})
	if err != nil {
		reason := "content"
		if errors.Is(err, domain.ErrContentGeneration) {
			reason = "content_generation"
		}
		s.failAttempt(ctx, attempt, policy.MaxAttempts(), err, summary)
		if s.metrics != nil {
			s.metrics.IncReminderFailed(slot.Kind.String(), reason)
		}
		return err
	}

	if err := s.limiter.Wait(ctx, obligation.TenantID); err != nil {
		s.failAttempt(ctx, attempt, policy.MaxAttempts(), err, summary)
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendStart := s.now()
	resp, sendErr := s.provider.Send(ctx, provider.Delivery{
		To:                  client.Phone,
		Text:                text,
		SuppressLinkPreview: true,
	})
	if s.metrics != nil {
		s.metrics.ObserveDispatchDuration(slot.Kind.String(), s.now().Sub(sendStart))
	}

	if sendErr != nil {
		s.failAttempt(ctx, attempt, policy.MaxAttempts(), sendErr, summary)
		if s.metrics != nil {
			reason := "permanent_error"
			if provider.IsTransient(sendErr) {
				reason = "transient_error"
			}
			s.metrics.IncReminderFailed(slot.Kind.String(), reason)
		}
		return fmt.Errorf("provider send failed: %w", sendErr)
	}

	if err := s.attempts.MarkOutcome(ctx, attempt.ID, domain.AttemptSent, nil); err != nil {
		return fmt.Errorf("failed to record sent outcome: %w", err)
	}
	summary.Sent++
	if s.metrics != nil {
		s.metrics.IncReminderSent(slot.Kind.String())
	}

	s.appendSentEntry(ctx, obligation, client, slot, daysOverdue, resp)

	return nil
}

func (s *RunService) skipAttempt(ctx context.Context, attemptID, reason string, summary *RunSummary) error {
	if err := s.attempts.MarkOutcome(ctx, attemptID, domain.AttemptSkipped, &reason); err != nil {
		return fmt.Errorf("failed to record skipped outcome: %w", err)
	}
	summary.Skipped++
	return nil
}

func (s *RunService) failAttempt(ctx context.Context, attempt *domain.DeliveryAttempt, maxAttempts int, cause error, summary *RunSummary) {
	detail := cause.Error()
	if err := s.attempts.MarkOutcome(ctx, attempt.ID, domain.AttemptFailed, &detail); err != nil {
		s.logger.Error("failed to record failed outcome",
			zap.String("attemptId", attempt.ID),
			zap.Error(err),
		)
	}
	summary.Failed++

	// The claimed row already counts this try; hitting the budget means the
	// occurrence is permanently failed and needs operator attention.
	if attempt.AttemptCount >= maxAttempts {
		s.logger.Error("slot attempt budget exhausted",
			zap.String("attemptId", attempt.ID),
			zap.String("obligationId", attempt.ObligationID),
			zap.String("kind", attempt.Kind.String()),
			zap.Int("occurrence", attempt.Occurrence),
			zap.Int("attempts", attempt.AttemptCount),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrRetryExhausted, cause)),
		)
	}
}

// appendSentEntry writes the notification audit row. The message is already
// out, so a write failure is logged, not propagated.
func (s *RunService) appendSentEntry(
	ctx context.Context,
	obligation *domain.Obligation,
	client *domain.Client,
	slot domain.Slot,
	daysOverdue int,
	resp *provider.ProviderResponse,
) {
	state, err := s.escalations.CurrentStatus(ctx, obligation.TenantID, obligation.ClientID)
	if err != nil {
		s.logger.Warn("failed to load client status for audit entry",
			zap.String("clientId", client.ID),
			zap.Error(err),
		)
		state = domain.ServiceActive
	}

	detail := fmt.Sprintf("%s reminder, occurrence %d", slot.Kind, slot.Occurrence)
	if resp != nil && strings.TrimSpace(resp.MessageID) != "" {
		detail += ", message id " + resp.MessageID
	}

	entry := &domain.EscalationEntry{
		ID:             uuid.NewString(),
		TenantID:       obligation.TenantID,
		ClientID:       obligation.ClientID,
		ObligationID:   &obligation.ID,
		PreviousStatus: state,
		NewStatus:      state,
		Level:          state.Level(),
		DaysOverdue:    daysOverdue,
		Action:         domain.ActionNotificationSent,
		Detail:         detail,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append notification audit entry",
			zap.String("obligationId", obligation.ID),
			zap.Error(err),
		)
	}
}
