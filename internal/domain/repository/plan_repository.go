package repository

import (
	"context"

	"github.com/elimu-platform/payment-service/internal/domain/model"
)

// PlanRepository reads payment plans. Plans are created by external
// administrative tooling; this service never writes them.
type PlanRepository interface {
	GetByID(ctx context.Context, id int64) (*model.PaymentPlan, error)
	ListActive(ctx context.Context) ([]*model.PaymentPlan, error)
}
