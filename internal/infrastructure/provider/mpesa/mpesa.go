package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
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
	ProviderName = "mpesa"

	requestTimeout = 30 * time.Second

	// SignatureHeader carries the HMAC signature on inbound callbacks
	SignatureHeader = "X-Mpesa-Signature"
)

// In-flight STK push queries come back with this error code until the payer
// acts on the prompt.
const codeStillProcessing = "500.001.1001"

// Adapter implements the provider contract against the M-Pesa STK push API.
type Adapter struct {
	baseURL       string
	apiKey        string
	shortCode     string
	passkey       string
	webhookSecret string
	client        *http.Client
	logger        *zap.Logger
}

// New creates a new M-Pesa adapter
func New(cfg config.MpesaConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		shortCode:     cfg.ShortCode,
		passkey:       cfg.Passkey,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return ProviderName
}

// Initiate sends an STK push request. The returned CheckoutRequestID is the
// provider transaction reference all later reconciliation keys on.
func (a *Adapter) Initiate(ctx context.Context, req *provider.InitiateRequest) (*provider.InitiateResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(a.shortCode + a.passkey + timestamp))

	body := map[string]interface{}{
		"BusinessShortCode": a.shortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.String(),
		"PartyA":            req.PhoneNumber,
		"PartyB":            a.shortCode,
		"PhoneNumber":       req.PhoneNumber,
		"AccountReference":  req.OrderID,
		"TransactionDesc":   req.Description,
	}

	respData, err := a.post(ctx, "/mpesa/stkpush/v1/processrequest", body)
	if err != nil {
		return nil, err
	}

	if code := getString(respData, "ResponseCode"); code != "0" {
		a.logger.Warn("M-Pesa rejected STK push",
			zap.String("order_id", req.OrderID),
			zap.String("response_code", code),
			zap.String("description", getString(respData, "ResponseDescription")))
		return nil, provider.NewRejectedError(code, "M-Pesa rejected the payment request", getString(respData, "ResponseDescription"))
	}

	checkoutID := getString(respData, "CheckoutRequestID")
	if checkoutID == "" {
		return nil, provider.NewRejectedError("MISSING_CHECKOUT_ID", "M-Pesa response missing CheckoutRequestID", "")
	}

	a.logger.Info("M-Pesa STK push accepted",
		zap.String("order_id", req.OrderID),
		zap.String("checkout_request_id", checkoutID))

	return &provider.InitiateResponse{
		ProviderRef: checkoutID,
		Data:        respData,
	}, nil
}

// CheckStatus queries the STK push transaction state and maps M-Pesa result
// codes onto the canonical status enum.
func (a *Adapter) CheckStatus(ctx context.Context, req *provider.StatusRequest) (*provider.StatusResult, error) {
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(a.shortCode + a.passkey + timestamp))

	body := map[string]interface{}{
		"BusinessShortCode": a.shortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": req.ProviderRef,
	}

	respData, err := a.post(ctx, "/mpesa/stkpushquery/v1/query", body)
	if err != nil {
		var perr *provider.ProviderError
		// While the payer has not acted on the prompt the query endpoint
		// answers with an HTTP 500 error envelope rather than a result
		// code, so match on the code alone.
		if errors.As(err, &perr) && perr.Code == codeStillProcessing {
			return &provider.StatusResult{Status: provider.StatusPending}, nil
		}
		return nil, err
	}

	return &provider.StatusResult{
		Status: mapResultCode(getString(respData, "ResultCode")),
		Reason: getString(respData, "ResultDesc"),
		Data:   respData,
	}, nil
}

// stkCallback is the nested payload of an M-Pesa confirmation callback
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseWebhook extracts the checkout reference and outcome from an M-Pesa
// confirmation callback.
func (a *Adapter) ParseWebhook(body []byte, header http.Header) (*provider.WebhookNotification, error) {
	if a.webhookSecret != "" {
		if !provider.VerifySignature(a.webhookSecret, body, header.Get(SignatureHeader)) {
			return nil, provider.NewRejectedError("INVALID_SIGNATURE", "webhook signature verification failed", "")
		}
	} else {
		a.logger.Warn("M-Pesa webhook accepted without signature verification")
	}

	var payload stkCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse M-Pesa callback", err.Error())
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, provider.NewRejectedError("MISSING_CHECKOUT_ID", "M-Pesa callback missing CheckoutRequestID", "")
	}

	status := provider.StatusFailed
	if cb.ResultCode == 0 {
		status = provider.StatusSucceeded
	}

	var data map[string]interface{}
	json.Unmarshal(body, &data)

	return &provider.WebhookNotification{
		ProviderRef: cb.CheckoutRequestID,
		Status:      status,
		Reason:      cb.ResultDesc,
		Data:        data,
	}, nil
}

// mapResultCode normalizes M-Pesa STK result codes. "0" is success;
// everything else the query endpoint returns as a ResultCode is a terminal
// failure (cancelled by user, prompt timeout, insufficient funds, ...).
func mapResultCode(code string) provider.Status {
	if code == "0" {
		return provider.StatusSucceeded
	}
	return provider.StatusFailed
}

func (a *Adapter) post(ctx context.Context, path string, body map[string]interface{}) (map[string]interface{}, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewRejectedError("MARSHAL_ERROR", "failed to prepare request", err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, provider.NewRejectedError("REQUEST_ERROR", "failed to create request", err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.logger.Error("M-Pesa API request failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, provider.NewUnavailableError("API_ERROR", "M-Pesa API request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewUnavailableError("RESPONSE_ERROR", "failed to read M-Pesa response", err)
	}

	var respData map[string]interface{}
	if err := json.Unmarshal(respBody, &respData); err != nil {
		return nil, provider.NewRejectedError("PARSE_ERROR", "failed to parse M-Pesa response", err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		code := getString(respData, "errorCode")
		message := getString(respData, "errorMessage")
		if message == "" {
			message = fmt.Sprintf("M-Pesa returned status %d", resp.StatusCode)
		}
		// A 5xx is the gateway being down, not a verdict on the payment.
		// CheckStatus still inspects the code: the query endpoint answers
		// still-in-flight transactions with a 500 envelope.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, provider.NewUnavailableError(code, message, errors.New(string(respBody)))
		}
		return nil, provider.NewRejectedError(code, message, string(respBody))
	}

	return respData, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
