package repository

import (
	"context"

	"github.com/elimu-platform/payment-service/internal/domain/model"
)

// WebhookRepository stores the append-only callback audit trail.
type WebhookRepository interface {
	// SaveEvent inserts the event and fills in its generated ID.
	SaveEvent(ctx context.Context, event *model.WebhookEvent) error

	// MarkProcessed flags the event as reconciled and links the payment it
	// resolved to.
	MarkProcessed(ctx context.Context, id int64, paymentID *int64, providerRef *string) error

	// ListUnprocessed returns events held for manual reconciliation, newest
	// first.
	ListUnprocessed(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
