package mtnmomo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
)

const (
	// ProviderName is the registry key for this adapter
	ProviderName = "mtnmomo"

	requestTimeout = 30 * time.Second

	// SignatureHeader carries the HMAC signature on inbound callbacks
	SignatureHeader = "X-Momo-Signature"
)

// Adapter implements the provider contract against the MTN MoMo collection
// API. The X-Reference-Id we generate for requesttopay doubles as the
// provider transaction reference, since MoMo's own API is keyed on it.
type Adapter struct {
	baseURL         string
	subscriptionKey string
	apiKey          string
	webhookSecret   string
	environment     string
	client          *http.Client
	logger          *zap.Logger
}

// New creates a new MTN MoMo adapter
func New(cfg config.MTNConfig, logger *zap.Logger) *Adapter {
	environment := "mtnuganda"
	if cfg.Test {
		environment = "sandbox"
	}
	return &Adapter{
		baseURL:         cfg.BaseURL,
		subscriptionKey: cfg.SubscriptionKey,
		apiKey:          cfg.APIKey,
		webhookSecret:   cfg.WebhookSecret,
		environment:     environment,
		client:          &http.Client{Timeout: requestTimeout},
		logger:          logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return ProviderName
}

// Initiate posts a requesttopay. MoMo replies 202 with an empty body; the
// reference id we sent is the transaction reference from here on.
func (a *Adapter) Initiate(ctx context.Context, req *provider.InitiateRequest) (*provider.InitiateResponse, error) {
	referenceID := uuid.NewString()

	body := map[string]interface{}{
		"amount":       req.Amount.String(),
		"currency":     req.Currency,
		"externalId":   req.OrderID,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     req.PhoneNumber,
		},
		"payerMessage": req.Description,
		"payeeNote":    req.Description,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewRejectedError("MARSHAL_ERROR", "failed to prepare request", err.Error())
	}

	url := a.baseURL + "/collection/v1_0/requesttopay"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, provider.NewRejectedError("REQUEST_ERROR", "failed to create request", err.Error())
	}
	httpReq.Header.Set("X-Reference-Id", referenceID)
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.logger.Error("MTN MoMo requesttopay failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, provider.NewUnavailableError("API_ERROR", "MTN MoMo API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		code, message := decodeError(respBody, resp.StatusCode)
		a.logger.Warn("MTN MoMo rejected requesttopay",
			zap.String("order_id", req.OrderID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("code", code))
		// A 5xx is an MTN outage, not a verdict on the payment.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, provider.NewUnavailableError(code, message, errors.New(string(respBody)))
		}
		return nil, provider.NewRejectedError(code, message, string(respBody))
	}

	a.logger.Info("MTN MoMo requesttopay accepted",
		zap.String("order_id", req.OrderID),
		zap.String("reference_id", referenceID))

	return &provider.InitiateResponse{
		ProviderRef: referenceID,
		Data:        map[string]interface{}{"referenceId": referenceID},
	}, nil
}

// CheckStatus polls requesttopay state: SUCCESSFUL, FAILED or PENDING.
func (a *Adapter) CheckStatus(ctx context.Context, req *provider.StatusRequest) (*provider.StatusResult, error) {
	url := fmt.Sprintf("%s/collection/v1_0/requesttopay/%s", a.baseURL, req.ProviderRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.NewRejectedError("REQUEST_ERROR", "failed to create request", err.Error())
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, provider.NewUnavailableError("API_ERROR", "MTN MoMo API request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewUnavailableError("RESPONSE_ERROR", "failed to read MTN MoMo response", err)
	}

	if resp.StatusCode != http.StatusOK {
		code, message := decodeError(respBody, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, provider.NewUnavailableError(code, message, errors.New(string(respBody)))
		}
		return nil, provider.NewRejectedError(code, message, string(respBody))
	}

	var respData map[string]interface{}
	if err := json.Unmarshal(respBody, &respData); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse MTN MoMo response", err.Error())
	}

	reason, _ := respData["reason"].(string)
	status, _ := respData["status"].(string)

	return &provider.StatusResult{
		Status: mapStatus(status),
		Reason: reason,
		Data:   respData,
	}, nil
}

// momoCallback is the payload MoMo delivers on requesttopay resolution
type momoCallback struct {
	ReferenceID string `json:"referenceId"`
	ExternalID  string `json:"externalId"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// ParseWebhook extracts the reference and outcome from a MoMo callback.
func (a *Adapter) ParseWebhook(body []byte, header http.Header) (*provider.WebhookNotification, error) {
	if a.webhookSecret != "" {
		if !provider.VerifySignature(a.webhookSecret, body, header.Get(SignatureHeader)) {
			return nil, provider.NewRejectedError("INVALID_SIGNATURE", "webhook signature verification failed", "")
		}
	} else {
		a.logger.Warn("MTN MoMo webhook accepted without signature verification")
	}

	var payload momoCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse MTN MoMo callback", err.Error())
	}

	if payload.ReferenceID == "" {
		return nil, provider.NewRejectedError("MISSING_REFERENCE", "MTN MoMo callback missing referenceId", "")
	}

	var data map[string]interface{}
	json.Unmarshal(body, &data)

	return &provider.WebhookNotification{
		ProviderRef: payload.ReferenceID,
		Status:      mapStatus(payload.Status),
		Reason:      payload.Reason,
		Data:        data,
	}, nil
}

// mapStatus normalizes the MoMo status vocabulary.
func mapStatus(status string) provider.Status {
	switch status {
	case "SUCCESSFUL":
		return provider.StatusSucceeded
	case "FAILED":
		return provider.StatusFailed
	default:
		// PENDING and anything unrecognized stays pending; the poller
		// will ask again.
		return provider.StatusPending
	}
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", a.subscriptionKey)
	req.Header.Set("X-Target-Environment", a.environment)
	req.Header.Set("Content-Type", "application/json")
}

func decodeError(body []byte, statusCode int) (code, message string) {
	var errResp map[string]interface{}
	json.Unmarshal(body, &errResp)

	code, _ = errResp["code"].(string)
	message, _ = errResp["message"].(string)
	if code == "" {
		code = fmt.Sprintf("HTTP_%d", statusCode)
	}
	if message == "" {
		message = fmt.Sprintf("MTN MoMo returned status %d", statusCode)
	}
	return code, message
}
