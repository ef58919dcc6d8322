package repository

import (
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
)

// ObligationModel is the persistence model for the payment_obligations table.
type ObligationModel struct {
	ID          string                  `gorm:"type:uuid;primaryKey"`
	TenantID    string                  `gorm:"type:uuid;not null"`
	ClientID    string                  `gorm:"type:uuid;not null"`
	AmountCents int64                   `gorm:"not null"`
	DueDate     time.Time               `gorm:"type:date;not null"`
	Status      domain.ObligationStatus `gorm:"type:varchar(20);not null"`
	PaymentLink string                  `gorm:"type:text;not null"`
	ProtestedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ObligationModel) TableName() string { return "payment_obligations" }

// ClientModel is the persistence model for clients.
type ClientModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Phone     string `gorm:"type:varchar(32)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ClientModel) TableName() string { return "clients" }

// PolicyModel is the persistence model for notification_policies.
type PolicyModel struct {
	TenantID   string `gorm:"type:uuid;primaryKey"`
	TenantName string `gorm:"type:varchar(255);not null"`

	PreDueOffsets  []int `gorm:"type:jsonb;serializer:json"`
	OnDueEnabled   bool  `gorm:"not null;default:false"`
	OnDueRepeats   int   `gorm:"not null;default:1"`
	OnDueIntervalH int   `gorm:"not null;default:1"`
	PostDueOffsets []int `gorm:"type:jsonb;serializer:json"`

	SendHour         int `gorm:"not null;default:9"`
	UTCOffsetMinutes int `gorm:"not null;default:0"`

	MaxAttemptsPerSlot int `gorm:"not null;default:3"`
	RetryIntervalHours int `gorm:"not null;default:6"`

	AIEnabled bool `gorm:"not null;default:false"`

	WarningThresholdDays int  `gorm:"not null;default:5"`
	SuspendThresholdDays int  `gorm:"not null;default:15"`
	BlockThresholdDays   int  `gorm:"not null;default:30"`
	AutoBlock            bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PolicyModel) TableName() string { return "notification_policies" }

// DeliveryAttemptModel is the persistence model for delivery_attempts. One row
// per slot occurrence, updated in place across retries; uniqueness on
// (obligation_id, kind, occurrence) backs at-most-once claims.
type DeliveryAttemptModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	TenantID      string               `gorm:"type:uuid;not null"`
	ObligationID  string               `gorm:"type:uuid;not null"`
	Kind          domain.SlotKind      `gorm:"type:varchar(10);not null"`
	Occurrence    int                  `gorm:"not null"`
	Status        domain.AttemptStatus `gorm:"type:varchar(10);not null"`
	AttemptCount  int                  `gorm:"not null;default:0"`
	LastAttemptAt *time.Time
	ErrorDetail   *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string { return "delivery_attempts" }

// ClientStateModel is the persistence model for client_service_states.
type ClientStateModel struct {
	ClientID   string               `gorm:"type:uuid;primaryKey"`
	TenantID   string               `gorm:"type:uuid;not null"`
	Status     domain.ServiceStatus `gorm:"type:varchar(10);not null"`
	ManualHold bool                 `gorm:"not null;default:false"`
	UpdatedAt  time.Time
}

func (ClientStateModel) TableName() string { return "client_service_states" }

// EscalationEntryModel is the persistence model for escalation_history.
type EscalationEntryModel struct {
	ID             string                  `gorm:"type:uuid;primaryKey"`
	TenantID       string                  `gorm:"type:uuid;not null"`
	ClientID       string                  `gorm:"type:uuid;not null"`
	ObligationID   *string                 `gorm:"type:uuid"`
	PreviousStatus domain.ServiceStatus    `gorm:"type:varchar(10);not null"`
	NewStatus      domain.ServiceStatus    `gorm:"type:varchar(10);not null"`
	Level          int                     `gorm:"not null"`
	DaysOverdue    int                     `gorm:"not null"`
	Action         domain.EscalationAction `gorm:"type:varchar(25);not null"`
	Detail         string                  `gorm:"type:text"`
	CreatedBy      *string                 `gorm:"type:varchar(255)"`
	CreatedAt      time.Time
}

func (EscalationEntryModel) TableName() string { return "escalation_history" }

func obligationModelToDomain(m *ObligationModel) *domain.Obligation {
	if m == nil {
		return nil
	}
	return &domain.Obligation{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ClientID:    m.ClientID,
		AmountCents: m.AmountCents,
		DueDate:     m.DueDate,
		Status:      m.Status,
		PaymentLink: m.PaymentLink,
		ProtestedAt: m.ProtestedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func clientModelToDomain(m *ClientModel) *domain.Client {
	if m == nil {
		return nil
	}
	return &domain.Client{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func policyModelToDomain(m *PolicyModel) *domain.NotificationPolicy {
	if m == nil {
		return nil
	}
	return &domain.NotificationPolicy{
		TenantID:             m.TenantID,
		TenantName:           m.TenantName,
		PreDueOffsets:        m.PreDueOffsets,
		OnDueEnabled:         m.OnDueEnabled,
		OnDueRepeats:         m.OnDueRepeats,
		OnDueIntervalH:       m.OnDueIntervalH,
		PostDueOffsets:       m.PostDueOffsets,
		SendHour:             m.SendHour,
		UTCOffsetMinutes:     m.UTCOffsetMinutes,
		MaxAttemptsPerSlot:   m.MaxAttemptsPerSlot,
		RetryIntervalHours:   m.RetryIntervalHours,
		AIEnabled:            m.AIEnabled,
		WarningThresholdDays: m.WarningThresholdDays,
		SuspendThresholdDays: m.SuspendThresholdDays,
		BlockThresholdDays:   m.BlockThresholdDays,
		AutoBlock:            m.AutoBlock,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}
	return &domain.DeliveryAttempt{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ObligationID:  m.ObligationID,
		Kind:          m.Kind,
		Occurrence:    m.Occurrence,
		Status:        m.Status,
		AttemptCount:  m.AttemptCount,
		LastAttemptAt: m.LastAttemptAt,
		ErrorDetail:   m.ErrorDetail,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func stateModelToDomain(m *ClientStateModel) *domain.ClientServiceState {
	if m == nil {
		return nil
	}
	return &domain.ClientServiceState{
		ClientID:   m.ClientID,
		TenantID:   m.TenantID,
		Status:     m.Status,
		ManualHold: m.ManualHold,
		UpdatedAt:  m.UpdatedAt,
	}
}

func entryModelFromDomain(e *domain.EscalationEntry) *EscalationEntryModel {
	if e == nil {
		return nil
	}
	return &EscalationEntryModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		ClientID:       e.ClientID,
		ObligationID:   e.ObligationID,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Level:          e.Level,
		DaysOverdue:    e.DaysOverdue,
		Action:         e.Action,
		Detail:         e.Detail,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt,
	}
}

func entryModelToDomain(m *EscalationEntryModel) *domain.EscalationEntry {
	if m == nil {
		return nil
	}
	return &domain.EscalationEntry{
		ID:             m.ID,
		TenantID:       m.TenantID,
		ClientID:       m.ClientID,
		ObligationID:   m.ObligationID,
		PreviousStatus: m.PreviousStatus,
		NewStatus:      m.NewStatus,
		Level:          m.Level,
		DaysOverdue:    m.DaysOverdue,
		Action:         m.Action,
		Detail:         m.Detail,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}
