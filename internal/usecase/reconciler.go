package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

// Reconciler periodically polls providers for payments stuck in processing
// and feeds the results into the shared completion path. Poll failures never
// mutate payment state; an unreachable provider just leaves the row for the
// next cycle.
type Reconciler struct {
	payments   repository.PaymentRepository
	completion *CompletionService
	registry   AdapterRegistry
	interval   time.Duration
	grace      time.Duration
	batchSize  int
	logger     *zap.Logger
}

// NewReconciler creates a new status reconciler
func NewReconciler(
	payments repository.PaymentRepository,
	completion *CompletionService,
	registry AdapterRegistry,
	cfg config.ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		payments:   payments,
		completion: completion,
		registry:   registry,
		interval:   cfg.Interval,
		grace:      cfg.Grace,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}
}

// Run polls on a ticker until ctx is cancelled. Intended to be started as a
// goroutine from main.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Status reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Status reconciler stopped")
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// RunCycle performs one reconciliation pass.
func (r *Reconciler) RunCycle(ctx context.Context) {
	cutoff := time.Now().Add(-r.grace)

	payments, err := r.payments.ListStuckProcessing(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("Reconciler failed to list processing payments", zap.Error(err))
		return
	}

	for _, payment := range payments {
		if err := r.reconcile(ctx, payment); err != nil {
			r.logger.Error("Failed to reconcile payment",
				zap.String("order_id", payment.OrderID),
				zap.Error(err))
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, payment *model.Payment) error {
	adapter, err := r.registry.Get(payment.Provider)
	if err != nil {
		// Provider was deactivated with payments still in flight; keep
		// the row untouched for manual resolution.
		r.logger.Warn("No adapter for processing payment",
			zap.String("order_id", payment.OrderID),
			zap.String("provider", payment.Provider))
		return nil
	}

	if payment.ProviderRef == nil {
		r.logger.Warn("Processing payment has no provider reference",
			zap.String("order_id", payment.OrderID))
		return nil
	}

	result, err := adapter.CheckStatus(ctx, &provider.StatusRequest{
		OrderID:     payment.OrderID,
		ProviderRef: *payment.ProviderRef,
	})
	if err != nil {
		if provider.IsUnavailable(err) {
			// Transient; the next cycle retries.
			r.logger.Debug("Provider unavailable during poll",
				zap.String("order_id", payment.OrderID),
				zap.Error(err))
			return nil
		}
		return err
	}

	return r.completion.CompletePayment(ctx, payment, result.Status, result.Reason, model.JSONB(result.Data))
}
