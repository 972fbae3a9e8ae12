package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
)

// Status is the canonical status vocabulary shared by all providers. Each
// adapter maps its network's own wording into these three values; nothing
// outside the adapter boundary may branch on raw provider status strings.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// InitiateRequest is a provider-agnostic collection request. Amount, currency
// and phone number are validated by the caller before the adapter is invoked.
type InitiateRequest struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PhoneNumber string          `json:"phone_number"`
	Description string          `json:"description,omitempty"`
}

// InitiateResponse carries the provider-assigned transaction reference and the
// raw response payload kept for audit.
type InitiateResponse struct {
	ProviderRef string                 `json:"provider_ref"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// StatusRequest identifies an in-flight payment at the provider.
type StatusRequest struct {
	OrderID     string `json:"order_id"`
	ProviderRef string `json:"provider_ref"`
}

// StatusResult is the normalized outcome of a status poll.
type StatusResult struct {
	Status Status                 `json:"status"`
	Reason string                 `json:"reason,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// WebhookNotification is the normalized form of an inbound callback payload.
type WebhookNotification struct {
	ProviderRef string                 `json:"provider_ref"`
	Status      Status                 `json:"status"`
	Reason      string                 `json:"reason,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// Adapter is implemented once per external mobile-money network. Adapters
// translate requests into the network's wire format and normalize its status
// vocabulary; they never touch local state.
type Adapter interface {
	// Name returns the provider name used for registry lookup and routing.
	Name() string

	// Initiate sends a collection request. Transport failures and timeouts
	// come back as an unavailable ProviderError, business rejections as a
	// rejected one.
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error)

	// CheckStatus polls the provider using the stored transaction reference.
	CheckStatus(ctx context.Context, req *StatusRequest) (*StatusResult, error)

	// ParseWebhook extracts the transaction reference and canonical status
	// from a provider-specific callback payload, verifying the signature
	// when the provider is configured with a webhook secret.
	ParseWebhook(body []byte, header http.Header) (*WebhookNotification, error)
}

// ProviderError is returned by adapters for all provider-side failures.
// Unavailable marks transport-level problems (timeout, connection failure)
// that the poller may retry; everything else is a definite rejection by the
// provider.
type ProviderError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	Unavailable bool   `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewUnavailableError wraps a transport-level failure.
func NewUnavailableError(code, message string, err error) *ProviderError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &ProviderError{Code: code, Message: message, Details: details, Unavailable: true}
}

// NewRejectedError wraps a provider-returned business failure.
func NewRejectedError(code, message, details string) *ProviderError {
	return &ProviderError{Code: code, Message: message, Details: details}
}

// IsUnavailable reports whether err is a retryable transport failure.
func IsUnavailable(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Unavailable
}

// IsRejected reports whether err is a definite provider rejection.
func IsRejected(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && !perr.Unavailable
}
