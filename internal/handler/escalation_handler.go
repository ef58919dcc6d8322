package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

const (
	actionSuspend        = "manual_suspension"
	actionReactivate     = "manual_reactivation"
	actionPaymentSettled = "payment_settled"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type EscalationService interface {
	ManualSuspend(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error)
	ManualReactivate(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error)
	OnPaymentSettled(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error)
	State(ctx context.Context, tenantID, clientID string, historyLimit int) (*domain.ClientServiceState, []domain.EscalationEntry, error)
}

type EscalationHandler struct {
	service EscalationService
}

func NewEscalationHandler(service EscalationService) (*EscalationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("escalation service is required")
	}
	return &EscalationHandler{service: service}, nil
}

func RegisterEscalationRoutes(router fiber.Router, service EscalationService) error {
	h, err := NewEscalationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/clients/:id/escalation", h.Apply)
	v1.Get("/clients/:id/escalation", h.Get)

	return nil
}

type escalationActionRequest struct {
	TenantID string `json:"tenantId"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
}

type clientStateResponse struct {
	ClientID   string `json:"clientId"`
	TenantID   string `json:"tenantId"`
	Status     string `json:"status"`
	Level      int    `json:"level"`
	ManualHold bool   `json:"manualHold"`
}

type escalationEntryResponse struct {
	ID             string    `json:"id"`
	ObligationID   *string   `json:"obligationId,omitempty"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Level          int       `json:"level"`
	DaysOverdue    int       `json:"daysOverdue"`
	Action         string    `json:"action"`
	Detail         string    `json:"detail,omitempty"`
	CreatedBy      *string   `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type escalationStateResponse struct {
	State   clientStateResponse       `json:"state"`
	History []escalationEntryResponse `json:"history"`
}

func (h *EscalationHandler) Apply(c *fiber.Ctx) error {
	var req escalationActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	clientID := strings.TrimSpace(c.Params("id"))
	tenantID := strings.TrimSpace(req.TenantID)

	var (
		state *domain.ClientServiceState
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case actionSuspend:
		state, err = h.service.ManualSuspend(c.Context(), tenantID, clientID, req.Reason, req.Actor)
	case actionReactivate:
		state, err = h.service.ManualReactivate(c.Context(), tenantID, clientID, req.Reason, req.Actor)
	case actionPaymentSettled:
		state, err = h.service.OnPaymentSettled(c.Context(), tenantID, clientID)
	default:
		return toHTTPError(fmt.Errorf("%w: unknown action %q", domain.ErrValidation, req.Action))
	}
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toClientStateResponse(state))
}

func (h *EscalationHandler) Get(c *fiber.Ctx) error {
	clientID := strings.TrimSpace(c.Params("id"))
	tenantID := strings.TrimSpace(c.Query("tenantId"))

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxHistoryLimit))
	}

	state, history, err := h.service.State(c.Context(), tenantID, clientID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	entries := make([]escalationEntryResponse, 0, len(history))
	for i := range history {
		e := &history[i]
		entries = append(entries, escalationEntryResponse{
			ID:             e.ID,
			ObligationID:   e.ObligationID,
			PreviousStatus: e.PreviousStatus.String(),
			NewStatus:      e.NewStatus.String(),
			Level:          e.Level,
			DaysOverdue:    e.DaysOverdue,
			Action:         e.Action.String(),
			Detail:         e.Detail,
			CreatedBy:      e.CreatedBy,
			CreatedAt:      e.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(escalationStateResponse{
		State:   toClientStateResponse(state),
		History: entries,
	})
}

func toClientStateResponse(s *domain.ClientServiceState) clientStateResponse {
	if s == nil {
		return clientStateResponse{}
	}

	return clientStateResponse{
		ClientID:   s.ClientID,
		TenantID:   s.TenantID,
		Status:     s.Status.String(),
		Level:      s.Status.Level(),
		ManualHold: s.ManualHold,
	}
}
