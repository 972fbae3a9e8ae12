package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("order_id", payment.OrderID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Preload("Plan").
		First(&payment, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by ID",
			zap.Int64("payment_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("order_id = ?", orderID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by order ID",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) GetByProviderRef(ctx context.Context, providerRef string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("provider_ref = ?", providerRef).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by provider ref",
			zap.String("provider_ref", providerRef),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) GetRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to get payments by user ID",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) MarkProcessing(ctx context.Context, id int64, providerRef string, data model.JSONB) error {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":        model.PaymentStatusProcessing,
			"provider_ref":  providerRef,
			"provider_data": data,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark payment processing",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark payment processing: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("payment %d is not pending", id)
	}

	return nil
}

func (r *paymentRepository) MarkInitiateFailed(ctx context.Context, id int64, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark payment failed",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark payment failed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("payment %d is not pending", id)
	}

	return nil
}

// CompleteIfProcessing performs the guarded terminal transition. The WHERE
// clause on the stored status makes the update a compare-and-set: whichever of
// the webhook and poll paths runs the statement first wins, the other sees
// zero rows affected.
func (r *paymentRepository) CompleteIfProcessing(ctx context.Context, id int64, completedAt time.Time, data model.JSONB) (bool, error) {
	updates := map[string]interface{}{
		"status":       model.PaymentStatusCompleted,
		"completed_at": completedAt,
		"updated_at":   time.Now(),
	}
	if data != nil {
		updates["provider_data"] = data
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusProcessing).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to complete payment",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to complete payment: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *paymentRepository) FailIfProcessing(ctx context.Context, id int64, reason string, data model.JSONB) (bool, error) {
	updates := map[string]interface{}{
		"status":         model.PaymentStatusFailed,
		"failure_reason": reason,
		"updated_at":     time.Now(),
	}
	if data != nil {
		updates["provider_data"] = data
	}

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusProcessing).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to fail payment",
			zap.Int64("payment_id", id),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to fail payment: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *paymentRepository) ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment

	query := r.db.WithContext(ctx).
		Preload("Plan").
		Where("status = ? AND created_at < ?", model.PaymentStatusProcessing, createdBefore).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to list processing payments",
			zap.Error(err))
		return nil, fmt.Errorf("failed to list processing payments: %w", err)
	}

	return payments, nil
}
