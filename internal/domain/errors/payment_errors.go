package errors

import (
	apperrors "github.com/elimu-platform/payment-service/pkg/errors"
)

var (
	// ErrPlanNotFound indicates the requested payment plan does not exist
	ErrPlanNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "payment plan not found", nil)

	// ErrPlanInactive indicates the plan exists but can no longer be purchased
	ErrPlanInactive = apperrors.NewAppError(apperrors.ErrInvalidArgument, "payment plan is not active", nil)

	// ErrUnknownProvider indicates no adapter is registered under the requested name
	ErrUnknownProvider = apperrors.NewAppError(apperrors.ErrInvalidArgument, "unknown payment provider", nil)

	// ErrPaymentNotFound indicates the payment record does not exist
	ErrPaymentNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "payment not found", nil)

	// ErrNotPaymentOwner indicates the payment belongs to a different user
	ErrNotPaymentOwner = apperrors.NewAppError(apperrors.ErrUnauthorized, "payment belongs to another user", nil)

	// ErrSubscriptionNotFound indicates the user has no active subscription for the plan
	ErrSubscriptionNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "no active subscription found", nil)
)
