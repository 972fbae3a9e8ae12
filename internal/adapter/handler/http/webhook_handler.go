package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
	"github.com/elimu-platform/payment-service/internal/usecase"
)

// WebhookHandler receives inbound provider callbacks. Every delivery is
// persisted as a WebhookEvent before any parsing happens, and the endpoint
// acknowledges with 200 once that write succeeds no matter what reconciliation
// does afterwards. A 5xx here would only trigger provider retry storms.
type WebhookHandler struct {
	logger     *zap.Logger
	webhooks   repository.WebhookRepository
	payments   repository.PaymentRepository
	completion *usecase.CompletionService
	registry   usecase.AdapterRegistry
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(
	logger *zap.Logger,
	webhooks repository.WebhookRepository,
	payments repository.PaymentRepository,
	completion *usecase.CompletionService,
	registry usecase.AdapterRegistry,
) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger,
		webhooks:   webhooks,
		payments:   payments,
		completion: completion,
		registry:   registry,
	}
}

// Handle processes one provider callback delivery.
func (h *WebhookHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body",
			zap.String("provider", providerName),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Failed to read request body",
			"code":  "INVALID_REQUEST",
		})
	}

	event := &model.WebhookEvent{
		Provider: providerName,
		RawBody:  string(body),
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		event.Payload = model.JSONB(payload)
	}
	if ip := c.RealIP(); ip != "" {
		event.IPAddress = &ip
	}

	// The audit write is the one failure that may surface as 5xx: without
	// it the delivery would be lost, and the provider's retry is wanted.
	if err := h.webhooks.SaveEvent(ctx, event); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to record webhook",
			"code":  "WEBHOOK_STORE_FAILED",
		})
	}

	adapter, err := h.registry.Get(providerName)
	if err != nil {
		h.logger.Warn("Webhook for unknown provider held",
			zap.String("provider", providerName),
			zap.Int64("event_id", event.ID))
		return h.ack(c)
	}

	notification, err := adapter.ParseWebhook(body, c.Request().Header)
	if err != nil {
		h.logger.Warn("Malformed webhook held for manual reconciliation",
			zap.String("provider", providerName),
			zap.Int64("event_id", event.ID),
			zap.Error(err))
		return h.ack(c)
	}

	payment, err := h.payments.GetByProviderRef(ctx, notification.ProviderRef)
	if err != nil {
		h.logger.Error("Failed to look up payment for webhook",
			zap.String("provider_ref", notification.ProviderRef),
			zap.Error(err))
		return h.ack(c)
	}
	if payment == nil {
		// Rows are created before the external call, so this means an
		// out-of-order or foreign delivery. Held for manual review.
		h.logger.Warn("Webhook references unknown transaction",
			zap.String("provider", providerName),
			zap.String("provider_ref", notification.ProviderRef),
			zap.Int64("event_id", event.ID))
		return h.ack(c)
	}

	if err := h.completion.CompletePayment(ctx, payment, notification.Status, notification.Reason, model.JSONB(notification.Data)); err != nil {
		h.logger.Error("Webhook reconciliation failed",
			zap.String("order_id", payment.OrderID),
			zap.Int64("event_id", event.ID),
			zap.Error(err))
		return h.ack(c)
	}

	if err := h.webhooks.MarkProcessed(ctx, event.ID, &payment.ID, &notification.ProviderRef); err != nil {
		h.logger.Error("Failed to mark webhook event processed",
			zap.Int64("event_id", event.ID),
			zap.Error(err))
	}

	return h.ack(c)
}

// ListUnprocessed returns held webhook events for manual reconciliation.
func (h *WebhookHandler) ListUnprocessed(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.webhooks.ListUnprocessed(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to list webhook events",
			"code":  "INTERNAL",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}

func (h *WebhookHandler) ack(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
