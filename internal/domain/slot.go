package domain

import (
	"fmt"
	"strings"
	"time"
)

// SlotKind classifies a notification slot relative to the due date.
type SlotKind string

const (
	SlotPreDue  SlotKind = "PRE_DUE"
	SlotOnDue   SlotKind = "ON_DUE"
	SlotPostDue SlotKind = "POST_DUE"
)

func (k SlotKind) String() string { return string(k) }

func (k SlotKind) IsValid() bool {
	switch k {
	case SlotPreDue, SlotOnDue, SlotPostDue:
		return true
	}
	return false
}

func ParseSlotKindFromString(s string) (SlotKind, error) {
	k := SlotKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid slot kind %q", ErrValidation, s)
	}
	return k, nil
}

// Slot is a derived notification opportunity. It is recomputed on every
// evaluation pass and never persisted verbatim; only attempts against it are.
//
// Occurrence carries the day-offset value for pre/post-due slots and the
// repeat index for on-due slots, so editing policy offsets yields new distinct
// identities instead of renumbering existing ones.
type Slot struct {
	ObligationID string
	Kind         SlotKind
	Occurrence   int
	TargetAt     time.Time
}

// Key is the slot occurrence identity used for locks and attempt upserts.
func (s Slot) Key() string {
	return fmt.Sprintf("%s:%s:%d", s.ObligationID, s.Kind, s.Occurrence)
}

// DayOffset returns the signed day distance from the due date: negative
// before, zero on, positive after.
func (s Slot) DayOffset() int {
	switch s.Kind {
	case SlotPreDue:
		return -s.Occurrence
	case SlotPostDue:
		return s.Occurrence
	}
	return 0
}
