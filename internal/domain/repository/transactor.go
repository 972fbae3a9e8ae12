package repository

import "context"

// Transactor runs fn inside a single database transaction and hands it
// transaction-scoped repositories. The completion path uses it so the payment
// terminal transition and the subscription grant commit together: if the
// grant fails, the status change rolls back and the next confirmation retries
// the whole step.
type Transactor interface {
	Transaction(ctx context.Context, fn func(payments PaymentRepository, subscriptions SubscriptionRepository) error) error
}
