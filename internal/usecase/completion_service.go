package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/elimu-platform/payment-service/internal/domain/errors"
	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

// CompletionService is the single completion path shared by webhook ingress
// and the status reconciler. Both race to resolve the same payment; the
// compare-and-set in the repository guarantees exactly one of them performs
// the terminal transition and the subscription side effect.
type CompletionService struct {
	tx     repository.Transactor
	plans  repository.PlanRepository
	logger *zap.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(
	tx repository.Transactor,
	plans repository.PlanRepository,
	logger *zap.Logger,
) *CompletionService {
	return &CompletionService{
		tx:     tx,
		plans:  plans,
		logger: logger,
	}
}

// CompletePayment applies a provider-confirmed outcome to a payment. Only a
// payment still stored as processing is acted on; duplicate confirmations and
// the loser of a webhook-vs-poll race observe a terminal state and no-op.
// Confirmations arriving after the payment's expiry window are still honored:
// expiry is a retry hint for the user, not a rejection of late settlement.
func (s *CompletionService) CompletePayment(ctx context.Context, payment *model.Payment, status provider.Status, reason string, data model.JSONB) error {
	switch status {
	case provider.StatusSucceeded:
		return s.completeSucceeded(ctx, payment, data)
	case provider.StatusFailed:
		return s.completeFailed(ctx, payment, reason, data)
	default:
		// Still pending at the provider; nothing to reconcile yet.
		return nil
	}
}

func (s *CompletionService) completeSucceeded(ctx context.Context, payment *model.Payment, data model.JSONB) error {
	plan := payment.Plan
	if plan == nil {
		var err error
		plan, err = s.plans.GetByID(ctx, payment.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domainerrors.ErrPlanNotFound
		}
	}

	// The terminal transition and the grant commit together. If the grant
	// fails the status change rolls back to processing, so a redelivered
	// webhook or the next reconciler cycle retries the whole step instead
	// of stranding a completed payment with no subscription.
	return s.tx.Transaction(ctx, func(payments repository.PaymentRepository, subscriptions repository.SubscriptionRepository) error {
		won, err := payments.CompleteIfProcessing(ctx, payment.ID, time.Now(), data)
		if err != nil {
			return err
		}
		if !won {
			s.logger.Debug("Duplicate confirmation absorbed",
				zap.String("order_id", payment.OrderID),
				zap.Int64("payment_id", payment.ID))
			return nil
		}

		s.logger.Info("Payment completed",
			zap.String("order_id", payment.OrderID),
			zap.String("provider", payment.Provider))

		duration, ok := plan.Duration()
		if !ok {
			// One-off purchase; no entitlement window to grant.
			return nil
		}

		sub, err := subscriptions.GrantOrExtend(ctx, payment.UserID, payment.PlanID, duration, payment.ID)
		if err != nil {
			return err
		}

		s.logger.Info("Subscription granted",
			zap.String("user_id", payment.UserID.String()),
			zap.Int64("plan_id", payment.PlanID),
			zap.Time("ends_at", sub.EndsAt))

		return nil
	})
}

func (s *CompletionService) completeFailed(ctx context.Context, payment *model.Payment, reason string, data model.JSONB) error {
	if reason == "" {
		reason = "payment failed at provider"
	}

	return s.tx.Transaction(ctx, func(payments repository.PaymentRepository, _ repository.SubscriptionRepository) error {
		won, err := payments.FailIfProcessing(ctx, payment.ID, reason, data)
		if err != nil {
			return err
		}
		if !won {
			s.logger.Debug("Duplicate failure confirmation absorbed",
				zap.String("order_id", payment.OrderID),
				zap.Int64("payment_id", payment.ID))
			return nil
		}

		s.logger.Info("Payment failed",
			zap.String("order_id", payment.OrderID),
			zap.String("provider", payment.Provider),
			zap.String("reason", reason))

		return nil
	})
}
