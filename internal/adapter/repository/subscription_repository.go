package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *subscriptionRepository) GetActiveByUserAndPlan(ctx context.Context, userID uuid.UUID, planID int64) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND plan_id = ? AND status = ?", userID, planID, model.SubscriptionStatusActive).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get active subscription",
			zap.String("user_id", userID.String()),
			zap.Int64("plan_id", planID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GrantOrExtend serializes concurrent grants for the same (user, plan) pair by
// locking the existing active row inside a transaction. A renewal extends the
// window from whichever is later of the current end and now, so back-to-back
// payments stack instead of resetting.
func (r *subscriptionRepository) GrantOrExtend(ctx context.Context, userID uuid.UUID, planID int64, duration time.Duration, paymentID int64) (*model.Subscription, error) {
	var result *model.Subscription

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		existing, err := lockActive(tx, userID, planID)
		if err != nil {
			return err
		}

		if existing == nil {
			sub := &model.Subscription{
				UserID:        userID,
				PlanID:        planID,
				Status:        model.SubscriptionStatusActive,
				StartsAt:      now,
				EndsAt:        now.Add(duration),
				LastPaymentID: &paymentID,
			}
			// Insert against the partial unique index on active rows.
			// DoNothing keeps the transaction usable when a concurrent
			// first grant already created the row.
			res := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "plan_id"}},
				TargetWhere: clause.Where{Exprs: []clause.Expression{
					clause.Eq{Column: clause.Column{Name: "status"}, Value: model.SubscriptionStatusActive},
				}},
				DoNothing: true,
			}).Create(sub)
			if res.Error != nil {
				return fmt.Errorf("failed to create subscription: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				result = sub
				return nil
			}
			// Lost the first-grant race: a concurrent transaction created
			// the active row between our lookup and the insert. Lock the
			// winner's row and extend it instead.
			existing, err = lockActive(tx, userID, planID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("active subscription missing after insert conflict for user %s plan %d", userID, planID)
			}
		}

		base := existing.EndsAt
		if base.Before(now) {
			base = now
		}
		newEnd := base.Add(duration)

		err = tx.Model(&model.Subscription{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"ends_at":         newEnd,
				"last_payment_id": paymentID,
				"status":          model.SubscriptionStatusActive,
				"updated_at":      now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to extend subscription: %w", err)
		}

		existing.EndsAt = newEnd
		existing.LastPaymentID = &paymentID
		result = existing
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to grant or extend subscription",
			zap.String("user_id", userID.String()),
			zap.Int64("plan_id", planID),
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

// lockActive takes the row lock on the active subscription for the pair, or
// reports nil when no active row exists yet.
func lockActive(tx *gorm.DB, userID uuid.UUID, planID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND plan_id = ? AND status = ?", userID, planID, model.SubscriptionStatusActive).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock subscription: %w", err)
	}
	return &sub, nil
}
