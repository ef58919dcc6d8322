// Package schedule derives notification slots from policy and due date.
// Evaluation is a pure function of (obligation, policy, attempts, now); all
// retry state lives in persisted attempts so it survives restarts.
package schedule

import (
	"sort"
	"time"

	"github.com/cobrify/dunning-engine/internal/domain"
)

type slotRef struct {
	kind       domain.SlotKind
	occurrence int
}

// Evaluate returns the ordered list of due, non-exhausted slots for one
// obligation at now. Paid, cancelled, and protested obligations never produce
// slots. All instants are resolved against the tenant's fixed offset.
func Evaluate(
	obligation *domain.Obligation,
	policy *domain.NotificationPolicy,
	attempts []domain.DeliveryAttempt,
	now time.Time,
) []domain.Slot {
	if obligation == nil || policy == nil || policy.Inert() || !obligation.Notifiable() {
		return nil
	}

	loc := policy.Location()
	sendAt := sendInstant(obligation.DueDate, policy.SendHour, loc)
	dueDayStart := dayStart(obligation.DueDate, loc)

	candidates := make([]domain.Slot, 0, len(policy.PreDueOffsets)+policy.OnDueRepeats+len(policy.PostDueOffsets))

	preDue := append([]int(nil), policy.PreDueOffsets...)
	sort.Sort(sort.Reverse(sort.IntSlice(preDue)))
	for i, days := range preDue {
		target := sendAt.AddDate(0, 0, -days)
		// A pre-due window closes when the next nearer reminder (or the due
		// date) takes over; a stale slot never dispatches late.
		windowEnd := dueDayStart
		if i+1 < len(preDue) {
			windowEnd = sendAt.AddDate(0, 0, -preDue[i+1])
		}
		if !now.Before(target) && now.Before(windowEnd) {
			candidates = append(candidates, domain.Slot{
				ObligationID: obligation.ID,
				Kind:         domain.SlotPreDue,
				Occurrence:   days,
				TargetAt:     target,
			})
		}
	}

	if policy.OnDueEnabled {
		interval := time.Duration(policy.OnDueIntervalH) * time.Hour
		for i := 0; i < policy.OnDueRepeats; i++ {
			target := sendAt.Add(time.Duration(i) * interval)
			if !now.Before(target) {
				candidates = append(candidates, domain.Slot{
					ObligationID: obligation.ID,
					Kind:         domain.SlotOnDue,
					Occurrence:   i,
					TargetAt:     target,
				})
			}
		}
	}

	for _, days := range policy.PostDueOffsets {
		target := sendAt.AddDate(0, 0, days)
		if !now.Before(target) {
			candidates = append(candidates, domain.Slot{
				ObligationID: obligation.ID,
				Kind:         domain.SlotPostDue,
				Occurrence:   days,
				TargetAt:     target,
			})
		}
	}

	index := indexAttempts(attempts)
	due := candidates[:0]
	for _, slot := range candidates {
		attempt, seen := index[slotRef{kind: slot.Kind, occurrence: slot.Occurrence}]
		if !seen {
			due = append(due, slot)
			continue
		}
		if attempt.Terminal(policy.MaxAttempts()) {
			continue
		}
		if attempt.RetryDue(now, policy.RetryInterval()) {
			due = append(due, slot)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].TargetAt.Before(due[j].TargetAt)
	})

	return due
}

func indexAttempts(attempts []domain.DeliveryAttempt) map[slotRef]*domain.DeliveryAttempt {
	index := make(map[slotRef]*domain.DeliveryAttempt, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		index[slotRef{kind: a.Kind, occurrence: a.Occurrence}] = a
	}
	return index
}

func sendInstant(dueDate time.Time, sendHour int, loc *time.Location) time.Time {
	return time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), sendHour, 0, 0, 0, loc)
}

func dayStart(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}
