package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/elimu-platform/payment-service/internal/domain/model"
)

// PaymentRepository persists payment attempts. Status mutations are expressed
// as explicit transition methods so the state machine cannot be bypassed; the
// *IfProcessing methods are atomic compare-and-set updates whose boolean
// result tells the caller whether it won the transition.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*model.Payment, error)
	GetRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Payment, error)

	// MarkProcessing transitions pending -> processing after a successful
	// initiate call, storing the provider transaction reference.
	MarkProcessing(ctx context.Context, id int64, providerRef string, data model.JSONB) error

	// MarkInitiateFailed transitions pending -> failed when the initiate
	// call itself fails.
	MarkInitiateFailed(ctx context.Context, id int64, reason string) error

	// CompleteIfProcessing sets status completed and stamps completedAt only
	// if the stored status is still processing. Returns false without error
	// when another caller already moved the payment to a terminal state.
	CompleteIfProcessing(ctx context.Context, id int64, completedAt time.Time, data model.JSONB) (bool, error)

	// FailIfProcessing is the failure counterpart of CompleteIfProcessing.
	FailIfProcessing(ctx context.Context, id int64, reason string, data model.JSONB) (bool, error)

	// ListStuckProcessing returns processing payments created before the
	// cutoff, oldest first, for the status reconciler.
	ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Payment, error)
}
