package airtel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
)

const (
	// ProviderName is the registry key for this adapter
	ProviderName = "airtel"

	requestTimeout = 30 * time.Second

	// SignatureHeader carries the HMAC signature on inbound callbacks
	SignatureHeader = "X-Airtel-Signature"
)

// Adapter implements the provider contract against the Airtel Money merchant
// API.
type Adapter struct {
	baseURL       string
	token         string
	country       string
	webhookSecret string
	client        *http.Client
	logger        *zap.Logger
}

// New creates a new Airtel Money adapter
func New(cfg config.AirtelConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		country:       cfg.Country,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return ProviderName
}

// Initiate opens a USSD push collection. Airtel echoes our transaction id
// back; that id is the provider reference used for status and callbacks.
func (a *Adapter) Initiate(ctx context.Context, req *provider.InitiateRequest) (*provider.InitiateResponse, error) {
	body := map[string]interface{}{
		"reference": req.Description,
		"subscriber": map[string]string{
			"country":  a.country,
			"currency": req.Currency,
			"msisdn":   req.PhoneNumber,
		},
		"transaction": map[string]string{
			"amount":   req.Amount.String(),
			"country":  a.country,
			"currency": req.Currency,
			"id":       req.OrderID,
		},
	}

	respData, err := a.do(ctx, http.MethodPost, "/merchant/v1/payments/", body)
	if err != nil {
		return nil, err
	}

	if !statusOK(respData) {
		code, message := statusError(respData)
		a.logger.Warn("Airtel rejected collection request",
			zap.String("order_id", req.OrderID),
			zap.String("code", code))
		return nil, provider.NewRejectedError(code, message, "")
	}

	txID := transactionField(respData, "id")
	if txID == "" {
		txID = req.OrderID
	}

	a.logger.Info("Airtel collection request accepted",
		zap.String("order_id", req.OrderID),
		zap.String("transaction_id", txID))

	return &provider.InitiateResponse{
		ProviderRef: txID,
		Data:        respData,
	}, nil
}

// CheckStatus polls the transaction and maps Airtel's two-letter transaction
// status codes onto the canonical enum.
func (a *Adapter) CheckStatus(ctx context.Context, req *provider.StatusRequest) (*provider.StatusResult, error) {
	respData, err := a.do(ctx, http.MethodGet, "/standard/v1/payments/"+req.ProviderRef, nil)
	if err != nil {
		return nil, err
	}

	status := transactionField(respData, "status")
	message := transactionField(respData, "message")

	return &provider.StatusResult{
		Status: mapStatus(status),
		Reason: message,
		Data:   respData,
	}, nil
}

// airtelCallback is the payload Airtel delivers on transaction resolution
type airtelCallback struct {
	Transaction struct {
		ID            string `json:"id"`
		Message       string `json:"message"`
		StatusCode    string `json:"status_code"`
		AirtelMoneyID string `json:"airtel_money_id"`
	} `json:"transaction"`
}

// ParseWebhook extracts the transaction id and outcome from an Airtel
// callback.
func (a *Adapter) ParseWebhook(body []byte, header http.Header) (*provider.WebhookNotification, error) {
	if a.webhookSecret != "" {
		if !provider.VerifySignature(a.webhookSecret, body, header.Get(SignatureHeader)) {
			return nil, provider.NewRejectedError("INVALID_SIGNATURE", "webhook signature verification failed", "")
		}
	} else {
		a.logger.Warn("Airtel webhook accepted without signature verification")
	}

	var payload airtelCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse Airtel callback", err.Error())
	}

	if payload.Transaction.ID == "" {
		return nil, provider.NewRejectedError("MISSING_TRANSACTION_ID", "Airtel callback missing transaction id", "")
	}

	var data map[string]interface{}
	json.Unmarshal(body, &data)

	return &provider.WebhookNotification{
		ProviderRef: payload.Transaction.ID,
		Status:      mapStatus(payload.Transaction.StatusCode),
		Reason:      payload.Transaction.Message,
		Data:        data,
	}, nil
}

// mapStatus normalizes Airtel transaction status codes: TS is success, TF is
// failure, TIP/TA are still in progress.
func mapStatus(code string) provider.Status {
	switch code {
	case "TS":
		return provider.StatusSucceeded
	case "TF":
		return provider.StatusFailed
	default:
		return provider.StatusPending
	}
}

func (a *Adapter) do(ctx context.Context, method, path string, body map[string]interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, provider.NewRejectedError("MARSHAL_ERROR", "failed to prepare request", err.Error())
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, provider.NewRejectedError("REQUEST_ERROR", "failed to create request", err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.token)
	httpReq.Header.Set("X-Country", a.country)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.logger.Error("Airtel API request failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, provider.NewUnavailableError("API_ERROR", "Airtel API request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewUnavailableError("RESPONSE_ERROR", "failed to read Airtel response", err)
	}

	var respData map[string]interface{}
	if err := json.Unmarshal(respBody, &respData); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse Airtel response", err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		code, message := statusError(respData)
		if message == "" {
			message = fmt.Sprintf("Airtel returned status %d", resp.StatusCode)
		}
		// A 5xx is an Airtel outage, not a verdict on the payment.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, provider.NewUnavailableError(code, message, errors.New(string(respBody)))
		}
		return nil, provider.NewRejectedError(code, message, string(respBody))
	}

	return respData, nil
}

// statusOK reads the success flag from Airtel's response envelope.
func statusOK(data map[string]interface{}) bool {
	status, ok := data["status"].(map[string]interface{})
	if !ok {
		return false
	}
	success, _ := status["success"].(bool)
	return success
}

func statusError(data map[string]interface{}) (code, message string) {
	status, ok := data["status"].(map[string]interface{})
	if !ok {
		return "UNKNOWN", "malformed Airtel response envelope"
	}
	code, _ = status["code"].(string)
	message, _ = status["message"].(string)
	if code == "" {
		code = "UNKNOWN"
	}
	return code, message
}

// transactionField digs a string field out of the data.transaction envelope.
func transactionField(data map[string]interface{}, field string) string {
	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		return ""
	}
	tx, ok := inner["transaction"].(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := tx[field].(string)
	return v
}
