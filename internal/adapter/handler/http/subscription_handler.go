package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainerrors "github.com/elimu-platform/payment-service/internal/domain/errors"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
	"github.com/elimu-platform/payment-service/internal/middleware/auth"
	apperrors "github.com/elimu-platform/payment-service/pkg/errors"
)

// SubscriptionHandler exposes the user's entitlement windows. This service
// only reports subscription state; enforcing access on top of it happens
// elsewhere in the platform.
type SubscriptionHandler struct {
	logger        *zap.Logger
	subscriptions repository.SubscriptionRepository
}

// NewSubscriptionHandler creates a new SubscriptionHandler instance
func NewSubscriptionHandler(logger *zap.Logger, subscriptions repository.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:        logger,
		subscriptions: subscriptions,
	}
}

// Current returns the user's active subscription for a plan.
func (h *SubscriptionHandler) Current(c echo.Context) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}

	planID, err := strconv.ParseInt(c.QueryParam("plan_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "plan_id query parameter required",
			"code":  "INVALID_REQUEST",
		})
	}

	sub, err := h.subscriptions.GetActiveByUserAndPlan(c.Request().Context(), user.UserID, planID)
	if err != nil {
		return apperrors.JSON(c, err)
	}
	if sub == nil {
		return apperrors.JSON(c, domainerrors.ErrSubscriptionNotFound)
	}

	return c.JSON(http.StatusOK, sub)
}
