// Package content resolves the text sent for a notification slot, either from
// the AI collaborator or from a deterministic template, and keeps the
// transactional payment link out of the authored body.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cobrify/dunning-engine/internal/domain"
	"go.uber.org/zap"
)

// Tone is the register of a reminder, derived from how overdue the charge is.
type Tone string

const (
	ToneCordial      Tone = "cordial"
	ToneProfessional Tone = "professional"
	ToneFormal       Tone = "formal"
)

func (t Tone) IsValid() bool {
	switch t {
	case ToneCordial, ToneProfessional, ToneFormal:
		return true
	}
	return false
}

// ToneFor buckets days overdue into a tone. Not-yet-due counts as cordial.
func ToneFor(daysOverdue int) Tone {
	switch {
	case daysOverdue <= 7:
		return ToneCordial
	case daysOverdue <= 30:
		return ToneProfessional
	default:
		return ToneFormal
	}
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// StripLinks removes URL-looking tokens from authored text. The payment link
// is appended separately so generated bodies never smuggle their own.
func StripLinks(text string) string {
	stripped := urlPattern.ReplaceAllString(text, "")
	lines := strings.Split(stripped, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ResolveRequest carries everything needed to produce one reminder message.
type ResolveRequest struct {
	TenantName   string
	ClientName   string
	AmountCents  int64
	Slot         domain.Slot
	DaysOverdue  int
	PaymentLink  string
	HistoryClass string
	AIEnabled    bool
	// ToneOverride, when valid, wins over the days-overdue bucket. Used by
	// manual triggers.
	ToneOverride Tone
}

func (r ResolveRequest) direction() Direction {
	switch r.Slot.Kind {
	case domain.SlotPreDue:
		return DirectionBefore
	case domain.SlotPostDue:
		return DirectionAfter
	}
	return DirectionOn
}

// Resolver assembles the final message text for a slot.
type Resolver struct {
	generator Generator
	logger    *zap.Logger
}

func NewResolver(generator Generator, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{generator: generator, logger: logger}, nil
}

// Resolve returns the final message: sanitized body plus a separate payment
// link line. When the tenant requires AI-authored content and the collaborator
// fails or returns nothing, Resolve fails with ErrContentGeneration and the
// caller must not dispatch anything in its place.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (string, error) {
	if strings.TrimSpace(req.ClientName) == "" {
		return "", fmt.Errorf("%w: client name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.PaymentLink) == "" {
		return "", fmt.Errorf("%w: payment link is required", domain.ErrValidation)
	}

	tone := req.ToneOverride
	if !tone.IsValid() {
		tone = ToneFor(req.DaysOverdue)
	}

	var body string
	if req.AIEnabled {
		if r.generator == nil {
			return "", fmt.Errorf("%w: no generator configured for AI-enabled tenant", domain.ErrContentGeneration)
		}

		text, err := r.generator.Generate(ctx, GenerateRequest{
			TenantName:   req.TenantName,
			ClientName:   req.ClientName,
			AmountCents:  req.AmountCents,
			DayOffset:    req.Slot.DayOffset(),
			Direction:    req.direction(),
			Tone:         tone,
			HistoryClass: req.HistoryClass,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrContentGeneration, err)
		}
		body = StripLinks(text)
		if body == "" {
			return "", fmt.Errorf("%w: generator returned empty text", domain.ErrContentGeneration)
		}
	} else {
		body = StripLinks(renderTemplate(req, tone))
	}

	return body + "\n\n" + paymentLinkLine(req.PaymentLink), nil
}

func paymentLinkLine(link string) string {
	return "Pay here: " + strings.TrimSpace(link)
}

func renderTemplate(req ResolveRequest, tone Tone) string {
	amount := formatAmount(req.AmountCents)

	var b strings.Builder
	switch tone {
	case ToneCordial:
		fmt.Fprintf(&b, "Hi %s! ", req.ClientName)
	case ToneProfessional:
		fmt.Fprintf(&b, "Hello %s, ", req.ClientName)
	default:
		fmt.Fprintf(&b, "Dear %s, ", req.ClientName)
	}

	switch req.Slot.Kind {
	case domain.SlotPreDue:
		fmt.Fprintf(&b, "a friendly reminder from %s: your charge of %s is due in %d day(s).",
			req.TenantName, amount, req.Slot.Occurrence)
	case domain.SlotOnDue:
		fmt.Fprintf(&b, "your charge of %s from %s is due today.", amount, req.TenantName)
	default:
		fmt.Fprintf(&b, "your charge of %s from %s is %d day(s) overdue. Please settle it to avoid service interruption.",
			amount, req.TenantName, req.DaysOverdue)
	}

	return b.String()
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
