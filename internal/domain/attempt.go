package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptStatus represents the delivery state of one slot occurrence.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptSent    AttemptStatus = "SENT"
	AttemptFailed  AttemptStatus = "FAILED"
	AttemptSkipped AttemptStatus = "SKIPPED"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptPending, AttemptSent, AttemptFailed, AttemptSkipped:
		return true
	}
	return false
}

func ParseAttemptStatusFromString(s string) (AttemptStatus, error) {
	st := AttemptStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryAttempt tracks delivery of one slot occurrence, uniquely keyed by
// (obligation_id, kind, occurrence). AttemptCount and the outcome are updated
// in place across retries. Owned exclusively by the attempt repository.
//
// A PENDING row with a non-nil LastAttemptAt means a dispatch was claimed but
// its outcome is unknown (crash between send and record). It is treated like a
// failure for retry gating: no re-dispatch until the retry interval elapses.
type DeliveryAttempt struct {
	ID            string        `gorm:"type:uuid;primaryKey"`
	TenantID      string        `gorm:"type:uuid;not null"`
	ObligationID  string        `gorm:"type:uuid;not null"`
	Kind          SlotKind      `gorm:"type:varchar(10);not null"`
	Occurrence    int           `gorm:"not null"`
	Status        AttemptStatus `gorm:"type:varchar(10);not null"`
	AttemptCount  int           `gorm:"not null;default:0"`
	LastAttemptAt *time.Time
	ErrorDetail   *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether no further dispatch may happen for this occurrence.
func (a *DeliveryAttempt) Terminal(maxAttempts int) bool {
	if a == nil {
		return false
	}
	if a.Status == AttemptSent || a.Status == AttemptSkipped {
		return true
	}
	return a.AttemptCount >= maxAttempts
}

// RetryDue reports whether a non-terminal attempt may be retried at now.
func (a *DeliveryAttempt) RetryDue(now time.Time, retryInterval time.Duration) bool {
	if a == nil {
		return true
	}
	if a.LastAttemptAt == nil {
		return true
	}
	return !now.Before(a.LastAttemptAt.Add(retryInterval))
}
