package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

const dueDateLayout = "2006-01-02"

type ObligationService interface {
	Reschedule(ctx context.Context, id string, newDueDate time.Time) (*domain.Obligation, error)
	Protest(ctx context.Context, id string) (*domain.Obligation, error)
	UndoProtest(ctx context.Context, id string) (*domain.Obligation, error)
	ListAttempts(ctx context.Context, id string) ([]domain.DeliveryAttempt, error)
}

type ObligationHandler struct {
	service ObligationService
}

func NewObligationHandler(service ObligationService) (*ObligationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("obligation service is required")
	}
	return &ObligationHandler{service: service}, nil
}

func RegisterObligationRoutes(router fiber.Router, service ObligationService) error {
	h, err := NewObligationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/obligations/:id/protest", h.Protest)
	v1.Post("/obligations/:id/undo-protest", h.UndoProtest)
	v1.Post("/obligations/:id/reschedule", h.Reschedule)
	v1.Get("/obligations/:id/attempts", h.ListAttempts)

	return nil
}

type rescheduleRequest struct {
	DueDate string `json:"dueDate"`
}

type obligationResponse struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	ClientID    string     `json:"clientId"`
	AmountCents int64      `json:"amountCents"`
	DueDate     string     `json:"dueDate"`
	Status      string     `json:"status"`
	ProtestedAt *time.Time `json:"protestedAt,omitempty"`
}

type attemptResponse struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Occurrence    int        `json:"occurrence"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attemptCount"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	ErrorDetail   *string    `json:"errorDetail,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type listAttemptsResponse struct {
	ObligationID string            `json:"obligationId"`
	Attempts     []attemptResponse `json:"attempts"`
}

func (h *ObligationHandler) Protest(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	obligation, err := h.service.Protest(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toObligationResponse(obligation))
}

func (h *ObligationHandler) UndoProtest(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	obligation, err := h.service.UndoProtest(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toObligationResponse(obligation))
}

func (h *ObligationHandler) Reschedule(c *fiber.Ctx) error {
	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dueDate, err := time.Parse(dueDateLayout, strings.TrimSpace(req.DueDate))
	if err != nil {
		return toHTTPError(fmt.Errorf("%w: dueDate must be YYYY-MM-DD", domain.ErrValidation))
	}

	id := strings.TrimSpace(c.Params("id"))
	obligation, err := h.service.Reschedule(c.Context(), id, dueDate)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toObligationResponse(obligation))
}

func (h *ObligationHandler) ListAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempts, err := h.service.ListAttempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]attemptResponse, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		items = append(items, attemptResponse{
			ID:            a.ID,
			Kind:          a.Kind.String(),
			Occurrence:    a.Occurrence,
			Status:        a.Status.String(),
			AttemptCount:  a.AttemptCount,
			LastAttemptAt: a.LastAttemptAt,
			ErrorDetail:   a.ErrorDetail,
			CreatedAt:     a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{
		ObligationID: id,
		Attempts:     items,
	})
}

func toObligationResponse(o *domain.Obligation) obligationResponse {
	if o == nil {
		return obligationResponse{}
	}

	return obligationResponse{
		ID:          o.ID,
		TenantID:    o.TenantID,
		ClientID:    o.ClientID,
		AmountCents: o.AmountCents,
		DueDate:     o.DueDate.Format(dueDateLayout),
		Status:      o.Status.String(),
		ProtestedAt: o.ProtestedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
