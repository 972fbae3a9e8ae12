package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elimu-platform/payment-service/internal/domain/repository"
)

type transactor struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTransactor creates a transactor backed by gorm transactions.
func NewTransactor(db *gorm.DB, logger *zap.Logger) repository.Transactor {
	return &transactor{
		db:     db,
		logger: logger,
	}
}

func (t *transactor) Transaction(ctx context.Context, fn func(payments repository.PaymentRepository, subscriptions repository.SubscriptionRepository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPaymentRepository(tx, t.logger), NewSubscriptionRepository(tx, t.logger))
	})
}
