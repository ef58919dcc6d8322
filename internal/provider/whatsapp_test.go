package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestWhatsAppProviderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody sendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("authorization = %q, want bearer token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message_id":"wamid-1"}`))
	}))
	defer server.Close()

	p, err := NewWhatsAppProvider(server.URL, "token-1")
	if err != nil {
		t.Fatalf("NewWhatsAppProvider() error = %v", err)
	}

	resp, err := p.Send(context.Background(), Delivery{
		To:                  "+5511999990000",
		Text:                "your charge is due",
		SuppressLinkPreview: true,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if resp.MessageID != "wamid-1" {
		t.Fatalf("MessageID = %q, want wamid-1", resp.MessageID)
	}
	if gotBody.To != "+5511999990000" {
		t.Fatalf("request.to = %q", gotBody.To)
	}
	if gotBody.PreviewURL {
		t.Fatal("preview_url should be false when suppression is requested")
	}
}

func TestWhatsAppProviderMissingDestinationIsPermanent(t *testing.T) {
	t.Parallel()

	p, err := NewWhatsAppProvider("http://unused.example", "")
	if err != nil {
		t.Fatalf("NewWhatsAppProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), Delivery{Text: "hello"})
	if err == nil {
		t.Fatal("expected error for missing destination")
	}
	if IsTransient(err) {
		t.Fatalf("IsTransient() = true, want permanent (err=%v)", err)
	}
}

func TestWhatsAppProviderStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "rate limited is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "gateway error is transient", statusCode: http.StatusBadGateway, wantTransient: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("gateway says no"))
			}))
			defer server.Close()

			p, err := NewWhatsAppProvider(server.URL, "")
			if err != nil {
				t.Fatalf("NewWhatsAppProvider() error = %v", err)
			}

			_, err = p.Send(context.Background(), Delivery{To: "+5511999990000", Text: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsTransient(err); got != tt.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tt.statusCode {
				t.Fatalf("StatusCode = %d, want %d", providerErr.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestWhatsAppProviderTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"message_id":"late"}`))
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p, err := NewWhatsAppProviderWithClient(server.URL, "", client)
	if err != nil {
		t.Fatalf("NewWhatsAppProviderWithClient() error = %v", err)
	}

	_, err = p.Send(context.Background(), Delivery{To: "+5511999990000", Text: "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}
