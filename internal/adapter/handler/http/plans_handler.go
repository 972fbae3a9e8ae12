package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

// PlansHandler exposes the purchasable plans for browsing
type PlansHandler struct {
	logger *zap.Logger
	plans  repository.PlanRepository
}

// NewPlansHandler creates a new PlansHandler instance
func NewPlansHandler(logger *zap.Logger, plans repository.PlanRepository) *PlansHandler {
	return &PlansHandler{
		logger: logger,
		plans:  plans,
	}
}

// List returns all active plans.
func (h *PlansHandler) List(c echo.Context) error {
	plans, err := h.plans.ListActive(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list plans", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to list plans",
			"code":  "INTERNAL",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"plans": plans,
		"count": len(plans),
	})
}
