package domain

import (
	"fmt"
	"strings"
	"time"
)

// ObligationStatus represents the payment lifecycle state of an obligation.
type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "PENDING"
	ObligationPaid      ObligationStatus = "PAID"
	ObligationOverdue   ObligationStatus = "OVERDUE"
	ObligationCancelled ObligationStatus = "CANCELLED"
)

func (s ObligationStatus) String() string { return string(s) }

func (s ObligationStatus) IsValid() bool {
	switch s {
	case ObligationPending, ObligationPaid, ObligationOverdue, ObligationCancelled:
		return true
	}
	return false
}

func ParseObligationStatusFromString(s string) (ObligationStatus, error) {
	st := ObligationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid obligation status %q", ErrValidation, s)
	}
	return st, nil
}

// Obligation is a single billable charge with a due date. Charges are created
// and settled by the payment-gateway side; this engine only mutates status and
// protest bookkeeping.
type Obligation struct {
	ID          string           `gorm:"type:uuid;primaryKey"`
	TenantID    string           `gorm:"type:uuid;not null"`
	ClientID    string           `gorm:"type:uuid;not null"`
	AmountCents int64            `gorm:"not null"`
	DueDate     time.Time        `gorm:"type:date;not null"`
	Status      ObligationStatus `gorm:"type:varchar(20);not null"`
	PaymentLink string           `gorm:"type:text;not null"`
	ProtestedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Protested reports whether automated notification is halted for this charge.
func (o *Obligation) Protested() bool {
	return o != nil && o.ProtestedAt != nil
}

// Notifiable reports whether the obligation may still produce notification
// slots: unpaid, not cancelled, not protested.
func (o *Obligation) Notifiable() bool {
	if o == nil || o.Protested() {
		return false
	}
	switch o.Status {
	case ObligationPending, ObligationOverdue:
		return true
	}
	return false
}

// DaysOverdue returns whole days elapsed since the due date in the given
// location, zero when the due date has not passed.
func (o *Obligation) DaysOverdue(now time.Time, loc *time.Location) int {
	if o == nil || loc == nil {
		return 0
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	due := time.Date(o.DueDate.Year(), o.DueDate.Month(), o.DueDate.Day(), 0, 0, 0, 0, loc)

	days := int(today.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (o *Obligation) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: obligation is required", ErrValidation)
	}
	if strings.TrimSpace(o.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(o.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if o.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if o.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, o.Status)
	}
	return nil
}

// Client is the billing contact an obligation belongs to. Provisioning is
// external; the engine reads name and messaging destination only.
type Client struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Phone     string `gorm:"type:varchar(32)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
