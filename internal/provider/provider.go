package provider

import "context"

// Delivery is one outbound message to a client's channel identity.
type Delivery struct {
	To                  string
	Text                string
	SuppressLinkPreview bool
}

// Provider is the outbound messaging transport port.
type Provider interface {
	Send(ctx context.Context, delivery Delivery) (*ProviderResponse, error)
}

// ProviderResponse stores transport call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
