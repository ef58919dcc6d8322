package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
	"github.com/cobrify/dunning-engine/internal/service"
	"github.com/cobrify/dunning-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, register func(app *fiber.App) error) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := register(app); err != nil {
		t.Fatalf("route registration error = %v", err)
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubTrigger struct {
	triggerAllFn    func(ctx context.Context) (*service.TriggerResult, error)
	triggerTenantFn func(ctx context.Context, tenantID string) (*service.TriggerResult, error)
	runTenantNowFn  func(ctx context.Context, tenantID string) (*service.RunSummary, error)
}

func (s *stubTrigger) TriggerAll(ctx context.Context) (*service.TriggerResult, error) {
	if s.triggerAllFn != nil {
		return s.triggerAllFn(ctx)
	}
	return &service.TriggerResult{RunID: "run-1", TriggeredAt: time.Now().UTC()}, nil
}

func (s *stubTrigger) TriggerTenant(ctx context.Context, tenantID string) (*service.TriggerResult, error) {
	if s.triggerTenantFn != nil {
		return s.triggerTenantFn(ctx, tenantID)
	}
	return &service.TriggerResult{RunID: "run-1", TriggeredAt: time.Now().UTC(), Tenants: 1, Enqueued: 1}, nil
}

func (s *stubTrigger) RunTenantNow(ctx context.Context, tenantID string) (*service.RunSummary, error) {
	if s.runTenantNowFn != nil {
		return s.runTenantNowFn(ctx, tenantID)
	}
	return &service.RunSummary{TenantID: tenantID}, nil
}

func TestRunIntegration_TriggerAll(t *testing.T) {
	t.Parallel()

	stub := &stubTrigger{
		triggerAllFn: func(ctx context.Context) (*service.TriggerResult, error) {
			return &service.TriggerResult{
				RunID:       "run-all",
				TriggeredAt: time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC),
				Tenants:     5,
				Enqueued:    5,
			}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterRunRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodPost, "/v1/runs", `{}`)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["runId"] != "run-all" {
		t.Fatalf("runId = %v, want run-all", parsed["runId"])
	}
	if parsed["enqueued"] != float64(5) {
		t.Fatalf("enqueued = %v, want 5", parsed["enqueued"])
	}
}

func TestRunIntegration_SyncTenantRun(t *testing.T) {
	t.Parallel()

	stub := &stubTrigger{
		runTenantNowFn: func(ctx context.Context, tenantID string) (*service.RunSummary, error) {
			return &service.RunSummary{TenantID: tenantID, Evaluated: 3, Sent: 2, Skipped: 1}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterRunRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodPost, "/v1/runs", `{"tenantId":"tenant-1","sync":true}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["sent"] != float64(2) {
		t.Fatalf("sent = %v, want 2", parsed["sent"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/runs", `{"sync":true}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for sync without tenant", resp.StatusCode)
	}
}

type stubObligationService struct {
	rescheduleFn   func(ctx context.Context, id string, newDueDate time.Time) (*domain.Obligation, error)
	protestFn      func(ctx context.Context, id string) (*domain.Obligation, error)
	undoProtestFn  func(ctx context.Context, id string) (*domain.Obligation, error)
	listAttemptsFn func(ctx context.Context, id string) ([]domain.DeliveryAttempt, error)
}

func (s *stubObligationService) Reschedule(ctx context.Context, id string, newDueDate time.Time) (*domain.Obligation, error) {
	if s.rescheduleFn != nil {
		return s.rescheduleFn(ctx, id, newDueDate)
	}
	return nil, domain.ErrNotFound
}

func (s *stubObligationService) Protest(ctx context.Context, id string) (*domain.Obligation, error) {
	if s.protestFn != nil {
		return s.protestFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubObligationService) UndoProtest(ctx context.Context, id string) (*domain.Obligation, error) {
	if s.undoProtestFn != nil {
		return s.undoProtestFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubObligationService) ListAttempts(ctx context.Context, id string) ([]domain.DeliveryAttempt, error) {
	if s.listAttemptsFn != nil {
		return s.listAttemptsFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func TestObligationIntegration_Protest(t *testing.T) {
	t.Parallel()

	protestedAt := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	stub := &stubObligationService{
		protestFn: func(ctx context.Context, id string) (*domain.Obligation, error) {
			if id != "ob-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Obligation{
				ID:          "ob-1",
				TenantID:    "tenant-1",
				ClientID:    "client-1",
				AmountCents: 10000,
				DueDate:     time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
				Status:      domain.ObligationOverdue,
				ProtestedAt: &protestedAt,
			}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterObligationRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodPost, "/v1/obligations/ob-1/protest", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["protestedAt"] == nil {
		t.Fatal("protestedAt should be present")
	}
	if parsed["dueDate"] != "2024-02-15" {
		t.Fatalf("dueDate = %v, want 2024-02-15", parsed["dueDate"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/obligations/missing/protest", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestObligationIntegration_Reschedule(t *testing.T) {
	t.Parallel()

	stub := &stubObligationService{
		rescheduleFn: func(ctx context.Context, id string, newDueDate time.Time) (*domain.Obligation, error) {
			return &domain.Obligation{
				ID:          id,
				TenantID:    "tenant-1",
				ClientID:    "client-1",
				AmountCents: 10000,
				DueDate:     newDueDate,
				Status:      domain.ObligationPending,
			}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterObligationRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodPost, "/v1/obligations/ob-1/reschedule", `{"dueDate":"2024-04-01"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["dueDate"] != "2024-04-01" {
		t.Fatalf("dueDate = %v, want 2024-04-01", parsed["dueDate"])
	}
	if parsed["status"] != domain.ObligationPending.String() {
		t.Fatalf("status = %v, want PENDING", parsed["status"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/obligations/ob-1/reschedule", `{"dueDate":"not-a-date"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad date", resp.StatusCode)
	}
}

func TestObligationIntegration_ListAttempts(t *testing.T) {
	t.Parallel()

	lastAttempt := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	stub := &stubObligationService{
		listAttemptsFn: func(ctx context.Context, id string) ([]domain.DeliveryAttempt, error) {
			return []domain.DeliveryAttempt{
				{
					ID:            "at-1",
					ObligationID:  id,
					Kind:          domain.SlotPreDue,
					Occurrence:    3,
					Status:        domain.AttemptSent,
					AttemptCount:  1,
					LastAttemptAt: &lastAttempt,
				},
			}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterObligationRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodGet, "/v1/obligations/ob-1/attempts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed listAttemptsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(parsed.Attempts))
	}
	if parsed.Attempts[0].Kind != "PRE_DUE" || parsed.Attempts[0].Occurrence != 3 {
		t.Fatalf("attempt = %+v, want PRE_DUE occurrence 3", parsed.Attempts[0])
	}
}

type stubEscalationService struct {
	manualSuspendFn    func(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error)
	manualReactivateFn func(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error)
	onPaymentSettledFn func(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error)
	stateFn            func(ctx context.Context, tenantID, clientID string, historyLimit int) (*domain.ClientServiceState, []domain.EscalationEntry, error)
}

func (s *stubEscalationService) ManualSuspend(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error) {
	if s.manualSuspendFn != nil {
		return s.manualSuspendFn(ctx, tenantID, clientID, reason, actor)
	}
	return nil, fmt.Errorf("%w: not configured", domain.ErrValidation)
}

func (s *stubEscalationService) ManualReactivate(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error) {
	if s.manualReactivateFn != nil {
		return s.manualReactivateFn(ctx, tenantID, clientID, reason, actor)
	}
	return nil, fmt.Errorf("%w: not configured", domain.ErrValidation)
}

func (s *stubEscalationService) OnPaymentSettled(ctx context.Context, tenantID, clientID string) (*domain.ClientServiceState, error) {
	if s.onPaymentSettledFn != nil {
		return s.onPaymentSettledFn(ctx, tenantID, clientID)
	}
	return nil, fmt.Errorf("%w: not configured", domain.ErrValidation)
}

func (s *stubEscalationService) State(ctx context.Context, tenantID, clientID string, historyLimit int) (*domain.ClientServiceState, []domain.EscalationEntry, error) {
	if s.stateFn != nil {
		return s.stateFn(ctx, tenantID, clientID, historyLimit)
	}
	return nil, nil, domain.ErrNotFound
}

func TestEscalationIntegration_ManualSuspend(t *testing.T) {
	t.Parallel()

	stub := &stubEscalationService{
		manualSuspendFn: func(ctx context.Context, tenantID, clientID, reason, actor string) (*domain.ClientServiceState, error) {
			if reason != "fraud review" || actor != "ops@acme" {
				t.Fatalf("reason=%q actor=%q, want request values", reason, actor)
			}
			return &domain.ClientServiceState{
				ClientID:   clientID,
				TenantID:   tenantID,
				Status:     domain.ServiceSuspended,
				ManualHold: true,
			}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterEscalationRoutes(app, stub) })

	body := `{"tenantId":"tenant-1","action":"manual_suspension","reason":"fraud review","actor":"ops@acme"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/clients/client-1/escalation", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["status"] != "SUSPENDED" {
		t.Fatalf("status = %v, want SUSPENDED", parsed["status"])
	}
	if parsed["manualHold"] != true {
		t.Fatal("manualHold should be true")
	}

	unknownAction := `{"tenantId":"tenant-1","action":"explode","reason":"x"}`
	resp, _ = performRequest(t, app, http.MethodPost, "/v1/clients/client-1/escalation", unknownAction)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown action", resp.StatusCode)
	}
}

func TestEscalationIntegration_GetStateWithHistory(t *testing.T) {
	t.Parallel()

	stub := &stubEscalationService{
		stateFn: func(ctx context.Context, tenantID, clientID string, historyLimit int) (*domain.ClientServiceState, []domain.EscalationEntry, error) {
			if historyLimit != 10 {
				t.Fatalf("limit = %d, want 10", historyLimit)
			}
			return &domain.ClientServiceState{
					ClientID: clientID,
					TenantID: tenantID,
					Status:   domain.ServiceWarning,
				}, []domain.EscalationEntry{
					{
						ID:             "e-1",
						TenantID:       tenantID,
						ClientID:       clientID,
						PreviousStatus: domain.ServiceActive,
						NewStatus:      domain.ServiceWarning,
						Level:          1,
						DaysOverdue:    6,
						Action:         domain.ActionStatusChanged,
					},
				}, nil
		},
	}

	app := newTestApp(t, func(app *fiber.App) error { return RegisterEscalationRoutes(app, stub) })

	resp, body := performRequest(t, app, http.MethodGet, "/v1/clients/client-1/escalation?tenantId=tenant-1&limit=10", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed escalationStateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.State.Status != "WARNING" || parsed.State.Level != 1 {
		t.Fatalf("state = %+v, want WARNING level 1", parsed.State)
	}
	if len(parsed.History) != 1 || parsed.History[0].Action != "STATUS_CHANGED" {
		t.Fatalf("history = %+v, want one STATUS_CHANGED entry", parsed.History)
	}
}
