package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/elimu-platform/payment-service/internal/domain/model"
)

// SubscriptionRepository persists entitlement windows.
type SubscriptionRepository interface {
	// GetActiveByUserAndPlan returns the active subscription for the pair,
	// or nil when none exists.
	GetActiveByUserAndPlan(ctx context.Context, userID uuid.UUID, planID int64) (*model.Subscription, error)

	// GrantOrExtend creates a fresh window of the given duration, or extends
	// an existing active window from max(ends_at, now). Runs in a
	// transaction with the existing row locked so concurrent grants for the
	// same pair serialize.
	GrantOrExtend(ctx context.Context, userID uuid.UUID, planID int64, duration time.Duration, paymentID int64) (*model.Subscription, error)
}
