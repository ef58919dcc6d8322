package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGenerateTimeout = 15 * time.Second

// Direction situates a reminder relative to the due date.
type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionOn     Direction = "on"
	DirectionAfter  Direction = "after"
)

// GenerateRequest is the contract the scheduler needs from the AI
// collaborator. Prompting beyond these fields is the collaborator's business.
type GenerateRequest struct {
	TenantName   string    `json:"tenant_name"`
	ClientName   string    `json:"client_name"`
	AmountCents  int64     `json:"amount_cents"`
	DayOffset    int       `json:"day_offset"`
	Direction    Direction `json:"direction"`
	Tone         Tone      `json:"tone"`
	HistoryClass string    `json:"history_class"`
}

// Generator produces reminder message bodies. Errors are distinguishable from
// empty-but-valid responses: an empty body with a nil error is returned as is
// and rejected by the resolver.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type generateResponse struct {
	Text string `json:"text"`
}

// HTTPGenerator calls an AI text-generation service over HTTP.
type HTTPGenerator struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewHTTPGenerator(endpoint, apiKey string) (*HTTPGenerator, error) {
	client := resty.New()
	client.SetTimeout(defaultGenerateTimeout)
	client.SetRetryCount(0)

	return NewHTTPGeneratorWithClient(endpoint, apiKey, client)
}

func NewHTTPGeneratorWithClient(endpoint, apiKey string, client *resty.Client) (*HTTPGenerator, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("generator endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid generator endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGenerateTimeout)
	}

	return &HTTPGenerator{
		client:   client,
		endpoint: trimmed,
		apiKey:   strings.TrimSpace(apiKey),
	}, nil
}

func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g == nil || g.client == nil {
		return "", fmt.Errorf("generator is not initialized")
	}

	var out generateResponse
	request := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out)
	if g.apiKey != "" {
		request.SetHeader("Authorization", "Bearer "+g.apiKey)
	}

	response, err := request.Post(g.endpoint)
	if err != nil {
		return "", fmt.Errorf("generator request failed: %w", err)
	}
	if response.StatusCode() < http.StatusOK || response.StatusCode() >= http.StatusMultipleChoices {
		return "", fmt.Errorf("generator returned status %d: %s",
			response.StatusCode(), strings.TrimSpace(response.String()))
	}

	return out.Text, nil
}

var _ Generator = (*HTTPGenerator)(nil)
