package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/observability"
	"github.com/cobrify/dunning-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscalationService owns the client service-state machine. Automatic
// evaluation only moves state upward; the only downgrade paths are a payment
// event and an explicit operator action.
type EscalationService struct {
	states      repository.ClientStateRepository
	history     repository.EscalationHistoryRepository
	obligations repository.ObligationRepository
	policies    repository.PolicyRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewEscalationService(
	states repository.ClientStateRepository,
	history repository.EscalationHistoryRepository,
	obligations repository.ObligationRepository,
	policies repository.PolicyRepository,
	logger *zap.Logger,
) (*EscalationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EscalationService{
		states:      states,
		history:     history,
		obligations: obligations,
		policies:    policies,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *EscalationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Evaluate recomputes the client's standing from its unpaid obligations and
// applies at most one upward transition. A ManualHold short-circuits
// evaluation entirely. Losing a transition race to a concurrent run is not an
// error; the winner already wrote the same outcome.
func (s *EscalationService) Evaluate(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: tenant id and client id are required", domain.ErrValidation)
	}

	policy, err := s.policies.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy for escalation: %w", err)
	}

	state, err := s.states.GetOrCreate(ctx, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client service state: %w", err)
	}
	if state.ManualHold {
		return state, nil
	}

	days, err := s.maxDaysOverdue(ctx, clientID, policy)
	if err != nil {
		return nil, err
	}

	desired := targetStatus(policy, days)
	if desired.Level() <= state.Status.Level() {
		return state, nil
	}

	entry := &domain.EscalationEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ClientID:       clientID,
		PreviousStatus: state.Status,
		NewStatus:      desired,
		Level:          desired.Level(),
		DaysOverdue:    days,
		Action:         domain.ActionStatusChanged,
		Detail:         fmt.Sprintf("%d day(s) overdue", days),
		CreatedAt:      s.now().UTC(),
	}

	if err := s.states.Transition(ctx, clientID, state.Status, desired, false, entry); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.states.GetOrCreate(ctx, tenantID, clientID)
		}
		return nil, fmt.Errorf("failed to transition client state: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncEscalationTransition(state.Status.String(), desired.String())
	}
	s.logger.Info("client escalated",
		zap.String("clientId", clientID),
		zap.String("from", state.Status.String()),
		zap.String("to", desired.String()),
		zap.Int("daysOverdue", days),
	)

	state.Status = desired
	return state, nil
}

// ManualSuspend suspends a client by operator action and pins the state
// against automatic re-evaluation.
func (s *EscalationService) ManualSuspend(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error) {
	return s.manualTransition(ctx, tenantID, clientID, domain.ServiceSuspended, domain.ActionManualSuspension, reason, actor)
}

// ManualReactivate returns a client to active by operator action. The hold
// stays set so the next automatic pass does not immediately re-escalate; a
// payment event clears it.
func (s *EscalationService) ManualReactivate(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error) {
	return s.manualTransition(ctx, tenantID, clientID, domain.ServiceActive, domain.ActionManualReactivation, reason, actor)
}

func (s *EscalationService) manualTransition(
	ctx context.Context,
	tenantID, clientID string,
	to domain.ServiceStatus,
	action domain.EscalationAction,
	reason, actor string,
) (*domain.ClientServiceState, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: tenant id and client id are required", domain.ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a reason is required for manual actions", domain.ErrValidation)
	}

	state, err := s.states.GetOrCreate(ctx, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client service state: %w", err)
	}
	if state.Status == to {
		return nil, fmt.Errorf("%w: client is already %s", domain.ErrConflict, to)
	}

	entry := &domain.EscalationEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ClientID:       clientID,
		PreviousStatus: state.Status,
		NewStatus:      to,
		Level:          to.Level(),
		Action:         action,
		Detail:         strings.TrimSpace(reason),
		CreatedBy:      optionalString(actor),
		CreatedAt:      s.now().UTC(),
	}

	if err := s.states.Transition(ctx, clientID, state.Status, to, true, entry); err != nil {
		return nil, fmt.Errorf("failed to apply manual transition: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncEscalationTransition(state.Status.String(), to.String())
	}

	state.Status = to
	state.ManualHold = true
	return state, nil
}

// OnPaymentSettled clears any manual hold and downgrades the client to the
// standing its remaining obligations justify. This is the automatic
// de-escalation path.
func (s *EscalationService) OnPaymentSettled(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: tenant id and client id are required", domain.ErrValidation)
	}

	policy, err := s.policies.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	state, err := s.states.GetOrCreate(ctx, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client service state: %w", err)
	}

	if state.ManualHold {
		if err := s.states.SetManualHold(ctx, clientID, false); err != nil {
			return nil, fmt.Errorf("failed to clear manual hold: %w", err)
		}
		state.ManualHold = false
	}

	days, err := s.maxDaysOverdue(ctx, clientID, policy)
	if err != nil {
		return nil, err
	}

	desired := targetStatus(policy, days)
	if desired.Level() >= state.Status.Level() {
		return state, nil
	}

	entry := &domain.EscalationEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ClientID:       clientID,
		PreviousStatus: state.Status,
		NewStatus:      desired,
		Level:          desired.Level(),
		DaysOverdue:    days,
		Action:         domain.ActionStatusChanged,
		Detail:         "payment settled",
		CreatedAt:      s.now().UTC(),
	}

	if err := s.states.Transition(ctx, clientID, state.Status, desired, false, entry); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.states.GetOrCreate(ctx, tenantID, clientID)
		}
		return nil, fmt.Errorf("failed to de-escalate client: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncEscalationTransition(state.Status.String(), desired.String())
	}

	state.Status = desired
	return state, nil
}

// CurrentStatus returns the client's standing without evaluating thresholds.
func (s *EscalationService) CurrentStatus(ctx context.Context, tenantID, clientID string) (domain.ServiceStatus, error) {
	state, err := s.states.GetOrCreate(ctx, tenantID, clientID)
	if err != nil {
		return "", err
	}
	return state.Status, nil
}

// State returns the current standing plus recent audit entries.
func (s *EscalationService) State(ctx context.Context, tenantID, clientID string, historyLimit int) (*domain.ClientServiceState, []domain.EscalationEntry, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(clientID) == "" {
		return nil, nil, fmt.Errorf("%w: tenant id and client id are required", domain.ErrValidation)
	}

	state, err := s.states.GetOrCreate(ctx, tenantID, clientID)
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.history.ListByClient(ctx, clientID, historyLimit)
	if err != nil {
		return nil, nil, err
	}

	return state, entries, nil
}

func (s *EscalationService) maxDaysOverdue(ctx context.Context, clientID string, policy *domain.NotificationPolicy) (int, error) {
	open, err := s.obligations.ListOpenByClient(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to list open obligations: %w", err)
	}

	loc := policy.Location()
	now := s.now()
	days := 0
	for i := range open {
		if d := open[i].DaysOverdue(now, loc); d > days {
			days = d
		}
	}
	return days, nil
}

func targetStatus(policy *domain.NotificationPolicy, daysOverdue int) domain.ServiceStatus {
	switch {
	case daysOverdue >= policy.BlockThresholdDays && policy.AutoBlock:
		return domain.ServiceBlocked
	case daysOverdue >= policy.SuspendThresholdDays:
		return domain.ServiceSuspended
	case daysOverdue >= policy.WarningThresholdDays:
		return domain.ServiceWarning
	default:
		return domain.ServiceActive
	}
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
