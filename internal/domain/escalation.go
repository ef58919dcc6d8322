package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServiceStatus is a client's service standing, driven by overdue duration and
// manual operator actions.
type ServiceStatus string

const (
	ServiceActive    ServiceStatus = "ACTIVE"
	ServiceWarning   ServiceStatus = "WARNING"
	ServiceSuspended ServiceStatus = "SUSPENDED"
	ServiceBlocked   ServiceStatus = "BLOCKED"
)

func (s ServiceStatus) String() string { return string(s) }

func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceActive, ServiceWarning, ServiceSuspended, ServiceBlocked:
		return true
	}
	return false
}

func ParseServiceStatusFromString(s string) (ServiceStatus, error) {
	st := ServiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid service status %q", ErrValidation, s)
	}
	return st, nil
}

// Level maps a status to its escalation level for audit rows.
func (s ServiceStatus) Level() int {
	switch s {
	case ServiceWarning:
		return 1
	case ServiceSuspended:
		return 2
	case ServiceBlocked:
		return 3
	}
	return 0
}

// ClientServiceState is the current standing of one client. Mutated only by
// the escalation service, automatically or on an explicit operator action.
//
// ManualHold pins the state against automatic re-evaluation until the next
// payment event clears it.
type ClientServiceState struct {
	ClientID   string        `gorm:"type:uuid;primaryKey"`
	TenantID   string        `gorm:"type:uuid;not null"`
	Status     ServiceStatus `gorm:"type:varchar(10);not null"`
	ManualHold bool          `gorm:"not null;default:false"`
	UpdatedAt  time.Time
}

// EscalationAction classifies audit rows.
type EscalationAction string

const (
	ActionNotificationSent   EscalationAction = "NOTIFICATION_SENT"
	ActionStatusChanged      EscalationAction = "STATUS_CHANGED"
	ActionManualSuspension   EscalationAction = "MANUAL_SUSPENSION"
	ActionManualReactivation EscalationAction = "MANUAL_REACTIVATION"
)

func (a EscalationAction) String() string { return string(a) }

func (a EscalationAction) IsValid() bool {
	switch a {
	case ActionNotificationSent, ActionStatusChanged, ActionManualSuspension, ActionManualReactivation:
		return true
	}
	return false
}

// EscalationEntry is an append-only audit row. Never updated or deleted.
type EscalationEntry struct {
	ID             string           `gorm:"type:uuid;primaryKey"`
	TenantID       string           `gorm:"type:uuid;not null"`
	ClientID       string           `gorm:"type:uuid;not null"`
	ObligationID   *string          `gorm:"type:uuid"`
	PreviousStatus ServiceStatus    `gorm:"type:varchar(10);not null"`
	NewStatus      ServiceStatus    `gorm:"type:varchar(10);not null"`
	Level          int              `gorm:"not null"`
	DaysOverdue    int              `gorm:"not null"`
	Action         EscalationAction `gorm:"type:varchar(25);not null"`
	Detail         string           `gorm:"type:text"`
	CreatedBy      *string          `gorm:"type:varchar(255)"`
	CreatedAt      time.Time
}
