package usecase

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/elimu-platform/payment-service/internal/domain/errors"
	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
	apperrors "github.com/elimu-platform/payment-service/pkg/errors"
)

// pendingTTL is how long an initiated payment stays actionable before the UI
// tells the user to retry. It does not cancel anything provider-side.
const pendingTTL = 15 * time.Minute

// AdapterRegistry resolves provider names to adapters.
type AdapterRegistry interface {
	Get(name string) (provider.Adapter, error)
	Names() []string
}

// InitiatePaymentRequest is the user-facing request to start a payment.
type InitiatePaymentRequest struct {
	PlanID      int64  `json:"plan_id" validate:"required"`
	Provider    string `json:"provider" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

// PaymentService orchestrates payment initiation. The ledger row is always
// created before the external call so the provider reference has a home row
// to attach to; a retry after failure creates a fresh row with its own order
// id rather than mutating the old one.
type PaymentService struct {
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	registry AdapterRegistry
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPaymentService creates a new payment orchestration service
func NewPaymentService(
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	registry AdapterRegistry,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		plans:    plans,
		registry: registry,
		validate: validator.New(),
		logger:   logger,
	}
}

// InitiatePayment validates the plan and provider, records the attempt, and
// drives the provider initiate call. The returned payment reflects the
// post-initiate state: processing on success, failed with a reason otherwise.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID uuid.UUID, req *InitiatePaymentRequest) (*model.Payment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid payment request", err)
	}

	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domainerrors.ErrPlanNotFound
	}
	if !plan.IsActive {
		return nil, domainerrors.ErrPlanInactive
	}

	adapter, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payment := &model.Payment{
		OrderID:     uuid.NewString(),
		UserID:      userID,
		PlanID:      plan.ID,
		Provider:    adapter.Name(),
		Amount:      plan.Price,
		Currency:    plan.Currency,
		PhoneNumber: req.PhoneNumber,
		Status:      model.PaymentStatusPending,
		ExpiresAt:   now.Add(pendingTTL),
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	resp, err := adapter.Initiate(ctx, &provider.InitiateRequest{
		OrderID:     payment.OrderID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		PhoneNumber: payment.PhoneNumber,
		Description: plan.DisplayName,
	})
	if err != nil {
		reason := err.Error()
		if markErr := s.payments.MarkInitiateFailed(ctx, payment.ID, reason); markErr != nil {
			s.logger.Error("Failed to record initiate failure",
				zap.String("order_id", payment.OrderID),
				zap.Error(markErr))
		}
		payment.Status = model.PaymentStatusFailed
		payment.FailureReason = &reason

		s.logger.Warn("Payment initiation failed",
			zap.String("order_id", payment.OrderID),
			zap.String("provider", payment.Provider),
			zap.Bool("unavailable", provider.IsUnavailable(err)),
			zap.Error(err))

		if provider.IsUnavailable(err) {
			return payment, apperrors.NewAppError(apperrors.ErrUnavailable, "payment provider is unavailable", err)
		}
		return payment, apperrors.NewAppError(apperrors.ErrRejected, "payment was rejected by the provider", err)
	}

	if err := s.payments.MarkProcessing(ctx, payment.ID, resp.ProviderRef, model.JSONB(resp.Data)); err != nil {
		return nil, err
	}
	payment.Status = model.PaymentStatusProcessing
	payment.ProviderRef = &resp.ProviderRef
	payment.ProviderData = model.JSONB(resp.Data)

	s.logger.Info("Payment initiated",
		zap.String("order_id", payment.OrderID),
		zap.String("provider", payment.Provider),
		zap.String("provider_ref", resp.ProviderRef))

	return payment, nil
}

// GetPayment returns a payment owned by userID.
func (s *PaymentService) GetPayment(ctx context.Context, userID uuid.UUID, id int64) (*model.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domainerrors.ErrPaymentNotFound
	}
	if payment.UserID != userID {
		return nil, domainerrors.ErrNotPaymentOwner
	}
	return payment, nil
}

// ListUserPayments returns the user's most recent payments.
func (s *PaymentService) ListUserPayments(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Payment, error) {
	if limit < 1 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}
	return s.payments.GetRecentByUserID(ctx, userID, limit)
}
