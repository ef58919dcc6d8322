package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/repository"
	"go.uber.org/zap"
)

// minProtestOverdueDays is the earliest point a charge may be disputed;
// younger charges go through regular reminder flow first.
const minProtestOverdueDays = 15

const skipReasonProtested = "protested"

type ObligationService struct {
	obligations repository.ObligationRepository
	attempts    repository.AttemptRepository
	policies    repository.PolicyRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewObligationService(
	obligations repository.ObligationRepository,
	attempts repository.AttemptRepository,
	policies repository.PolicyRepository,
	logger *zap.Logger,
) (*ObligationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ObligationService{
		obligations: obligations,
		attempts:    attempts,
		policies:    policies,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Reschedule moves an unpaid obligation to a new due date, resets it to
// pending, and drops not-yet-sent attempts so the next run derives a fresh
// slot calendar. Already-sent records are history and stay untouched.
func (s *ObligationService) Reschedule(ctx context.Context, id string, newDueDate time.Time) (*domain.Obligation, error) {
	obligation, err := s.getObligation(ctx, id)
	if err != nil {
		return nil, err
	}

	switch obligation.Status {
	case domain.ObligationPaid, domain.ObligationCancelled:
		return nil, fmt.Errorf("%w: cannot reschedule a %s obligation", domain.ErrValidation, obligation.Status)
	}
	if obligation.Protested() {
		return nil, fmt.Errorf("%w: cannot reschedule a protested obligation", domain.ErrValidation)
	}
	if newDueDate.IsZero() {
		return nil, fmt.Errorf("%w: new due date is required", domain.ErrValidation)
	}

	loc, err := s.tenantLocation(ctx, obligation.TenantID)
	if err != nil {
		return nil, err
	}
	if localDay(newDueDate, loc).Before(localDay(s.now(), loc)) {
		return nil, fmt.Errorf("%w: new due date must not be in the past", domain.ErrValidation)
	}

	if err := s.obligations.Reschedule(ctx, obligation.ID, newDueDate); err != nil {
		return nil, fmt.Errorf("failed to reschedule obligation: %w", err)
	}

	discarded, err := s.attempts.DiscardPending(ctx, obligation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to discard pending attempts: %w", err)
	}
	if discarded > 0 {
		s.logger.Info("discarded pending attempts on reschedule",
			zap.String("obligationId", obligation.ID),
			zap.Int64("count", discarded),
		)
	}

	return s.obligations.GetByID(ctx, obligation.ID)
}

// Protest halts all automated notification for a disputed charge. Only an
// overdue charge past the dispute window qualifies.
func (s *ObligationService) Protest(ctx context.Context, id string) (*domain.Obligation, error) {
	obligation, err := s.getObligation(ctx, id)
	if err != nil {
		return nil, err
	}

	if obligation.Protested() {
		return nil, fmt.Errorf("%w: obligation is already protested", domain.ErrConflict)
	}
	if obligation.Status != domain.ObligationOverdue {
		return nil, fmt.Errorf("%w: only overdue obligations can be protested", domain.ErrValidation)
	}

	loc, err := s.tenantLocation(ctx, obligation.TenantID)
	if err != nil {
		return nil, err
	}
	days := obligation.DaysOverdue(s.now(), loc)
	if days < minProtestOverdueDays {
		return nil, fmt.Errorf("%w: protest requires at least %d day(s) overdue, got %d",
			domain.ErrValidation, minProtestOverdueDays, days)
	}

	if err := s.obligations.SetProtested(ctx, obligation.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark obligation protested: %w", err)
	}

	skipped, err := s.attempts.SkipPending(ctx, obligation.ID, skipReasonProtested)
	if err != nil {
		return nil, fmt.Errorf("failed to skip pending attempts: %w", err)
	}
	if skipped > 0 {
		s.logger.Info("skipped pending attempts on protest",
			zap.String("obligationId", obligation.ID),
			zap.Int64("count", skipped),
		)
	}

	return s.obligations.GetByID(ctx, obligation.ID)
}

// UndoProtest re-admits the obligation to notification. Attempts skipped
// while protested stay skipped; the next run derives whatever slots remain
// due from scratch.
func (s *ObligationService) UndoProtest(ctx context.Context, id string) (*domain.Obligation, error) {
	obligation, err := s.getObligation(ctx, id)
	if err != nil {
		return nil, err
	}

	if !obligation.Protested() {
		return nil, fmt.Errorf("%w: obligation is not protested", domain.ErrConflict)
	}

	if err := s.obligations.ClearProtested(ctx, obligation.ID); err != nil {
		return nil, fmt.Errorf("failed to clear protest: %w", err)
	}

	return s.obligations.GetByID(ctx, obligation.ID)
}

// ListAttempts returns the full delivery audit trail for one obligation.
func (s *ObligationService) ListAttempts(ctx context.Context, id string) ([]domain.DeliveryAttempt, error) {
	obligation, err := s.getObligation(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attempts.ListByObligation(ctx, obligation.ID)
}

func (s *ObligationService) getObligation(ctx context.Context, id string) (*domain.Obligation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: obligation id is required", domain.ErrValidation)
	}
	return s.obligations.GetByID(ctx, strings.TrimSpace(id))
}

func (s *ObligationService) tenantLocation(ctx context.Context, tenantID string) (*time.Location, error) {
	policy, err := s.policies.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant policy: %w", err)
	}
	return policy.Location(), nil
}

func localDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
