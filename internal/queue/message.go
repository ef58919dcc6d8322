package queue

import (
	"fmt"
	"strings"
	"time"
)

// TenantRunMessage is the broker payload for one tenant evaluation run.
// TriggeredAt fixes the evaluation instant so a redelivered message replays
// the same window instead of drifting forward.
type TenantRunMessage struct {
	TenantID    string    `json:"tenantId"`
	RunID       string    `json:"runId"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

func (m TenantRunMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("tenantId is required")
	}
	if strings.TrimSpace(m.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	if m.TriggeredAt.IsZero() {
		return fmt.Errorf("triggeredAt is required")
	}
	return nil
}
