package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/middleware/auth"
	"github.com/elimu-platform/payment-service/internal/usecase"
	apperrors "github.com/elimu-platform/payment-service/pkg/errors"
)

// PaymentHandler exposes payment initiation and history
type PaymentHandler struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler instance
func NewPaymentHandler(payments *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// Initiate starts a new payment for the authenticated user.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	var req usecase.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
	}

	payment, err := h.payments.InitiatePayment(c.Request().Context(), user.UserID, &req)
	if err != nil {
		// A failed initiate still produced a ledger row the client can
		// show and retry from.
		if payment != nil {
			return c.JSON(apperrors.ToHTTPStatus(apperrors.CodeOf(err)), echo.Map{
				"error":   err.Error(),
				"code":    apperrors.CodeOf(err),
				"payment": payment,
			})
		}
		return apperrors.JSON(c, err)
	}

	return c.JSON(http.StatusCreated, payment)
}

// Get returns one of the user's payments. Overdue pending/processing payments
// are flagged as expired so the client can offer a retry.
func (h *PaymentHandler) Get(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid payment id",
			"code":  "INVALID_REQUEST",
		})
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), user.UserID, id)
	if err != nil {
		return apperrors.JSON(c, err)
	}

	return c.JSON(http.StatusOK, paymentView(payment))
}

// List returns the user's recent payments.
func (h *PaymentHandler) List(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	payments, err := h.payments.ListUserPayments(c.Request().Context(), user.UserID, limit)
	if err != nil {
		return apperrors.JSON(c, err)
	}

	views := make([]echo.Map, 0, len(payments))
	for _, p := range payments {
		views = append(views, paymentView(p))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"payments": views,
		"count":    len(views),
	})
}

func paymentView(p *model.Payment) echo.Map {
	return echo.Map{
		"payment": p,
		"expired": p.Expired(time.Now()),
	}
}
