package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 10 * time.Second

type sendRequest struct {
	To         string `json:"to"`
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// WhatsAppProvider sends messages through a WhatsApp-gateway-style HTTP API.
type WhatsAppProvider struct {
	client   *resty.Client
	endpoint string
	token    string
}

func NewWhatsAppProvider(endpoint, token string) (*WhatsAppProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWhatsAppProviderWithClient(endpoint, token, client)
}

func NewWhatsAppProviderWithClient(endpoint, token string, client *resty.Client) (*WhatsAppProvider, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("messaging endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid messaging endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WhatsAppProvider{
		client:   client,
		endpoint: trimmed,
		token:    strings.TrimSpace(token),
	}, nil
}

func (p *WhatsAppProvider) Send(ctx context.Context, delivery Delivery) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(delivery.To) == "" {
		// No channel configured for the client; retrying cannot help.
		return nil, &ProviderError{
			Message:   "delivery destination is missing",
			Transient: false,
		}
	}
	if strings.TrimSpace(delivery.Text) == "" {
		return nil, &ProviderError{
			Message:   "delivery text is empty",
			Transient: false,
		}
	}

	var out sendResponse
	request := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{
			To:         delivery.To,
			Body:       delivery.Text,
			PreviewURL: !delivery.SuppressLinkPreview,
		}).
		SetResult(&out)
	if p.token != "" {
		request.SetHeader("Authorization", "Bearer "+p.token)
	}

	response, err := request.Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "send request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  out.MessageID,
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("gateway returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

var _ Provider = (*WhatsAppProvider)(nil)
