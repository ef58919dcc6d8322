package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cobrify/dunning-engine/internal/domain"
)

type fakeGenerator struct {
	generateFn func(ctx context.Context, req GenerateRequest) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f.generateFn(ctx, req)
}

func baseRequest() ResolveRequest {
	return ResolveRequest{
		TenantName:   "Acme Billing",
		ClientName:   "Maria Souza",
		AmountCents:  25990,
		Slot:         domain.Slot{ObligationID: "ob-1", Kind: domain.SlotPostDue, Occurrence: 5},
		DaysOverdue:  5,
		PaymentLink:  "https://pay.example/ob-1",
		HistoryClass: "first_delay",
	}
}

func TestToneFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		days int
		want Tone
	}{
		{days: 0, want: ToneCordial},
		{days: 7, want: ToneCordial},
		{days: 8, want: ToneProfessional},
		{days: 30, want: ToneProfessional},
		{days: 31, want: ToneFormal},
	}

	for _, tt := range tests {
		if got := ToneFor(tt.days); got != tt.want {
			t.Fatalf("ToneFor(%d) = %s, want %s", tt.days, got, tt.want)
		}
	}
}

func TestStripLinks(t *testing.T) {
	t.Parallel()

	in := "Pay at https://evil.example/now or www.other.example today"
	got := StripLinks(in)
	if strings.Contains(got, "http") || strings.Contains(got, "www.") {
		t.Fatalf("StripLinks() = %q, still contains a URL", got)
	}
	if !strings.Contains(got, "Pay at") || !strings.Contains(got, "today") {
		t.Fatalf("StripLinks() = %q, dropped surrounding text", got)
	}
}

func TestResolveAIBodyIsSanitizedAndLinkAppended(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{
		generateFn: func(ctx context.Context, req GenerateRequest) (string, error) {
			if req.Direction != DirectionAfter {
				t.Fatalf("direction = %s, want after", req.Direction)
			}
			if req.DayOffset != 5 {
				t.Fatalf("day offset = %d, want 5", req.DayOffset)
			}
			if req.Tone != ToneCordial {
				t.Fatalf("tone = %s, want cordial for 5 days overdue", req.Tone)
			}
			return "Oi Maria, your payment is late. See https://spam.example/x", nil
		},
	}

	resolver, err := NewResolver(generator, nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	req := baseRequest()
	req.AIEnabled = true

	msg, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	body, link, found := strings.Cut(msg, "\n\n")
	if !found {
		t.Fatalf("message %q missing body/link separation", msg)
	}
	if strings.Contains(body, "http") {
		t.Fatalf("body %q still contains a URL", body)
	}
	if link != "Pay here: https://pay.example/ob-1" {
		t.Fatalf("link line = %q", link)
	}
}

func TestResolveAIFailureIsLoud(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(ctx context.Context, req GenerateRequest) (string, error)
	}{
		{
			name: "generator error",
			fn: func(ctx context.Context, req GenerateRequest) (string, error) {
				return "", errors.New("model unavailable")
			},
		},
		{
			name: "empty response",
			fn: func(ctx context.Context, req GenerateRequest) (string, error) {
				return "", nil
			},
		},
		{
			name: "response is only a link",
			fn: func(ctx context.Context, req GenerateRequest) (string, error) {
				return "https://only-a-link.example", nil
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver, err := NewResolver(&fakeGenerator{generateFn: tt.fn}, nil)
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}

			req := baseRequest()
			req.AIEnabled = true

			_, err = resolver.Resolve(context.Background(), req)
			if !errors.Is(err, domain.ErrContentGeneration) {
				t.Fatalf("Resolve() error = %v, want ErrContentGeneration", err)
			}
		})
	}
}

func TestResolveTemplateTenant(t *testing.T) {
	t.Parallel()

	resolver, err := NewResolver(nil, nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	req := baseRequest()
	req.AIEnabled = false

	msg, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if !strings.Contains(msg, "Maria Souza") {
		t.Fatalf("message %q missing client name", msg)
	}
	if !strings.Contains(msg, "$259.90") {
		t.Fatalf("message %q missing amount", msg)
	}
	if !strings.HasSuffix(msg, "Pay here: https://pay.example/ob-1") {
		t.Fatalf("message %q missing trailing payment link line", msg)
	}
}

func TestResolveAIEnabledWithoutGeneratorFails(t *testing.T) {
	t.Parallel()

	resolver, err := NewResolver(nil, nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	req := baseRequest()
	req.AIEnabled = true

	_, err = resolver.Resolve(context.Background(), req)
	if !errors.Is(err, domain.ErrContentGeneration) {
		t.Fatalf("Resolve() error = %v, want ErrContentGeneration", err)
	}
}

func TestResolveToneOverrideWins(t *testing.T) {
	t.Parallel()

	var gotTone Tone
	generator := &fakeGenerator{
		generateFn: func(ctx context.Context, req GenerateRequest) (string, error) {
			gotTone = req.Tone
			return "body text", nil
		},
	}

	resolver, err := NewResolver(generator, nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	req := baseRequest()
	req.AIEnabled = true
	req.ToneOverride = ToneFormal

	if _, err := resolver.Resolve(context.Background(), req); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if gotTone != ToneFormal {
		t.Fatalf("tone = %s, want formal override", gotTone)
	}
}
