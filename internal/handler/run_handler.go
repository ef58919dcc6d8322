package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

type RunTrigger interface {
	TriggerAll(ctx context.Context) (*service.TriggerResult, error)
	TriggerTenant(ctx context.Context, tenantID string) (*service.TriggerResult, error)
	RunTenantNow(ctx context.Context, tenantID string) (*service.RunSummary, error)
}

type RunHandler struct {
	trigger RunTrigger
}

func NewRunHandler(trigger RunTrigger) (*RunHandler, error) {
	if trigger == nil {
		return nil, fmt.Errorf("run trigger is required")
	}
	return &RunHandler{trigger: trigger}, nil
}

func RegisterRunRoutes(router fiber.Router, trigger RunTrigger) error {
	h, err := NewRunHandler(trigger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/runs", h.TriggerRun)

	return nil
}

type triggerRunRequest struct {
	TenantID string `json:"tenantId"`
	// Sync runs the tenant pass inline and returns its summary. Only valid
	// with a tenant id.
	Sync bool `json:"sync"`
}

type triggerRunResponse struct {
	RunID       string    `json:"runId"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Tenants     int       `json:"tenants"`
	Enqueued    int       `json:"enqueued"`
	Warning     string    `json:"warning,omitempty"`
}

type runSummaryResponse struct {
	TenantID  string `json:"tenantId"`
	Evaluated int    `json:"evaluated"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

func (h *RunHandler) TriggerRun(c *fiber.Ctx) error {
	var req triggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	tenantID := strings.TrimSpace(req.TenantID)

	if req.Sync {
		if tenantID == "" {
			return toHTTPError(fmt.Errorf("%w: sync runs require a tenant id", domain.ErrValidation))
		}

		summary, err := h.trigger.RunTenantNow(c.Context(), tenantID)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusOK).JSON(runSummaryResponse{
			TenantID:  summary.TenantID,
			Evaluated: summary.Evaluated,
			Sent:      summary.Sent,
			Failed:    summary.Failed,
			Skipped:   summary.Skipped,
		})
	}

	var result *service.TriggerResult
	var err error
	if tenantID == "" {
		result, err = h.trigger.TriggerAll(c.Context())
	} else {
		result, err = h.trigger.TriggerTenant(c.Context(), tenantID)
	}
	if err != nil {
		if result == nil {
			return toHTTPError(err)
		}
		// Partial enqueue: report what went out along with the failure.
		return c.Status(fiber.StatusAccepted).JSON(triggerRunResponse{
			RunID:       result.RunID,
			TriggeredAt: result.TriggeredAt,
			Tenants:     result.Tenants,
			Enqueued:    result.Enqueued,
			Warning:     err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(triggerRunResponse{
		RunID:       result.RunID,
		TriggeredAt: result.TriggeredAt,
		Tenants:     result.Tenants,
		Enqueued:    result.Enqueued,
	})
}
