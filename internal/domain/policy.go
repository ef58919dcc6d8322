package domain

import (
	"fmt"
	"time"
)

// Defaults applied when a policy leaves retry knobs unset.
const (
	DefaultMaxAttemptsPerSlot = 3
	DefaultRetryIntervalHours = 6
	DefaultSendHour           = 9
)

// NotificationPolicy is the per-tenant configuration driving slot derivation,
// retry bounds, and escalation thresholds. One row per tenant.
type NotificationPolicy struct {
	TenantID   string `gorm:"type:uuid;primaryKey"`
	TenantName string `gorm:"type:varchar(255);not null"`

	PreDueOffsets  []int `gorm:"type:jsonb;serializer:json"`
	OnDueEnabled   bool  `gorm:"not null;default:false"`
	OnDueRepeats   int   `gorm:"not null;default:1"`
	OnDueIntervalH int   `gorm:"not null;default:1"`
	PostDueOffsets []int `gorm:"type:jsonb;serializer:json"`

	// SendHour is the tenant-local hour of day reminders target.
	SendHour int `gorm:"not null;default:9"`
	// UTCOffsetMinutes fixes the tenant timezone; slot math never uses the
	// host timezone.
	UTCOffsetMinutes int `gorm:"not null;default:0"`

	MaxAttemptsPerSlot int `gorm:"not null;default:3"`
	RetryIntervalHours int `gorm:"not null;default:6"`

	// AIEnabled selects AI-authored message bodies. When set, generation
	// failures block dispatch instead of falling back to a template.
	AIEnabled bool `gorm:"not null;default:false"`

	WarningThresholdDays int  `gorm:"not null;default:5"`
	SuspendThresholdDays int  `gorm:"not null;default:15"`
	BlockThresholdDays   int  `gorm:"not null;default:30"`
	AutoBlock            bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Inert reports whether the policy can never produce a slot.
func (p *NotificationPolicy) Inert() bool {
	if p == nil {
		return true
	}
	return len(p.PreDueOffsets) == 0 && !p.OnDueEnabled && len(p.PostDueOffsets) == 0
}

// Location returns the tenant's fixed-offset timezone.
func (p *NotificationPolicy) Location() *time.Location {
	offset := 0
	if p != nil {
		offset = p.UTCOffsetMinutes
	}
	return time.FixedZone("tenant", offset*60)
}

// RetryInterval returns the minimum gap between attempts for one slot.
func (p *NotificationPolicy) RetryInterval() time.Duration {
	hours := DefaultRetryIntervalHours
	if p != nil && p.RetryIntervalHours >= 1 {
		hours = p.RetryIntervalHours
	}
	return time.Duration(hours) * time.Hour
}

// MaxAttempts returns the per-slot attempt budget.
func (p *NotificationPolicy) MaxAttempts() int {
	if p != nil && p.MaxAttemptsPerSlot >= 1 {
		return p.MaxAttemptsPerSlot
	}
	return DefaultMaxAttemptsPerSlot
}

func (p *NotificationPolicy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: policy is required", ErrValidation)
	}
	for _, d := range p.PreDueOffsets {
		if d <= 0 {
			return fmt.Errorf("%w: pre-due offsets must be positive day counts", ErrValidation)
		}
	}
	for _, d := range p.PostDueOffsets {
		if d <= 0 {
			return fmt.Errorf("%w: post-due offsets must be positive day counts", ErrValidation)
		}
	}
	if p.OnDueEnabled {
		if p.OnDueRepeats < 1 {
			return fmt.Errorf("%w: on-due repeat count must be at least 1", ErrValidation)
		}
		if p.OnDueIntervalH < 1 {
			return fmt.Errorf("%w: on-due repeat interval must be at least 1 hour", ErrValidation)
		}
	}
	if p.SendHour < 0 || p.SendHour > 23 {
		return fmt.Errorf("%w: send hour must be within 0-23", ErrValidation)
	}
	if p.MaxAttemptsPerSlot < 1 {
		return fmt.Errorf("%w: max attempts per slot must be at least 1", ErrValidation)
	}
	if p.RetryIntervalHours < 1 {
		return fmt.Errorf("%w: retry interval must be at least 1 hour", ErrValidation)
	}
	if p.WarningThresholdDays <= 0 || p.SuspendThresholdDays <= p.WarningThresholdDays {
		return fmt.Errorf("%w: escalation thresholds must be increasing", ErrValidation)
	}
	if p.BlockThresholdDays <= p.SuspendThresholdDays {
		return fmt.Errorf("%w: block threshold must exceed suspend threshold", ErrValidation)
	}
	return nil
}
