package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
)

func processingPayment(t *testing.T, payments *memPaymentRepo, userID uuid.UUID, plan *model.PaymentPlan) *model.Payment {
	t.Helper()
	payment := &model.Payment{
		OrderID:   uuid.NewString(),
		UserID:    userID,
		PlanID:    plan.ID,
		Provider:  "mtnmomo",
		Status:    model.PaymentStatusProcessing,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Plan:      plan,
	}
	require.NoError(t, payments.Create(context.Background(), payment))
	ref := "ref-" + payment.OrderID
	payment.ProviderRef = &ref
	return payment
}

func TestCompletionService_Succeeded(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()
	plan := monthlyPlan()

	t.Run("first confirmation completes and grants subscription", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		err := service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", model.JSONB{"status": "SUCCESSFUL"})
		require.NoError(t, err)

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
		assert.NotNil(t, stored.CompletedAt)

		sub, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
		require.NotNil(t, sub)
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), sub.EndsAt, time.Minute)
		require.NotNil(t, sub.LastPaymentID)
		assert.Equal(t, payment.ID, *sub.LastPaymentID)
	})

	t.Run("duplicate confirmation is absorbed without a second grant", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))

		assert.Equal(t, 1, subs.grantCalls)
	})

	t.Run("renewal extends the existing window instead of stacking", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		first := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, first, provider.StatusSucceeded, "", nil))

		afterFirst, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
		firstEnd := afterFirst.EndsAt

		second := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, second, provider.StatusSucceeded, "", nil))

		afterSecond, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
		assert.Equal(t, afterFirst.ID, afterSecond.ID, "renewal must reuse the active window")
		assert.WithinDuration(t, firstEnd.Add(30*24*time.Hour), afterSecond.EndsAt, time.Second)
	})

	t.Run("one-off plan completes without granting anything", func(t *testing.T) {
		oneOff := &model.PaymentPlan{ID: 2, Name: "topup", Currency: "UGX", IsActive: true}
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(oneOff), logger)

		payment := processingPayment(t, payments, userID, oneOff)
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
		assert.Equal(t, 0, subs.grantCalls)
	})

	t.Run("confirmation after expiry is still honored", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		payment.ExpiresAt = time.Now().Add(-time.Hour)

		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
		assert.Equal(t, 1, subs.grantCalls)
	})
}

func TestCompletionService_Failed(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()
	plan := monthlyPlan()

	t.Run("failure confirmation records the reason", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusFailed, "insufficient funds", nil))

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusFailed, stored.Status)
		require.NotNil(t, stored.FailureReason)
		assert.Equal(t, "insufficient funds", *stored.FailureReason)
		assert.Equal(t, 0, subs.grantCalls)
	})

	t.Run("failure after completion does not roll back", func(t *testing.T) {
		payments := newMemPaymentRepo()
		subs := newMemSubscriptionRepo()
		service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusFailed, "late failure", nil))

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
	})

	t.Run("pending result leaves the payment untouched", func(t *testing.T) {
		payments := newMemPaymentRepo()
		service := newMemCompletion(payments, newMemSubscriptionRepo(), newMemPlanRepo(plan), logger)

		payment := processingPayment(t, payments, userID, plan)
		require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusPending, "", nil))

		stored, _ := payments.GetByID(ctx, payment.ID)
		assert.Equal(t, model.PaymentStatusProcessing, stored.Status)
	})
}

// flakyGrantRepo fails a scripted number of grants before behaving normally,
// standing in for a transient subscription write failure.
type flakyGrantRepo struct {
	*memSubscriptionRepo
	failures int
}

func (r *flakyGrantRepo) GrantOrExtend(ctx context.Context, userID uuid.UUID, planID int64, duration time.Duration, paymentID int64) (*model.Subscription, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("write conn reset by peer")
	}
	return r.memSubscriptionRepo.GrantOrExtend(ctx, userID, planID, duration, paymentID)
}

// A grant failure must not consume the terminal transition. The status change
// and the grant commit together, so the payment stays processing and the next
// delivery of the same confirmation retries end to end.
func TestCompletionService_GrantFailureRollsBack(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()
	plan := monthlyPlan()

	payments := newMemPaymentRepo()
	subs := &flakyGrantRepo{memSubscriptionRepo: newMemSubscriptionRepo(), failures: 1}
	service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

	payment := processingPayment(t, payments, userID, plan)

	err := service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil)
	require.Error(t, err)

	stored, _ := payments.GetByID(ctx, payment.ID)
	assert.Equal(t, model.PaymentStatusProcessing, stored.Status, "failed grant must leave the payment retryable")
	assert.Nil(t, stored.CompletedAt)

	missing, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
	assert.Nil(t, missing)

	// Redelivered confirmation completes the whole step.
	require.NoError(t, service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil))

	stored, _ = payments.GetByID(ctx, payment.ID)
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)

	sub, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
	require.NotNil(t, sub)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), sub.EndsAt, time.Minute)
}

// Two payments for the same user and plan confirmed concurrently, with no
// active window yet, must end with a single subscription row carrying both
// extensions. The partial unique index allows only one active row per pair.
func TestCompletionService_ConcurrentFirstGrants(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()
	plan := monthlyPlan()

	payments := newMemPaymentRepo()
	subs := newMemSubscriptionRepo()
	service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

	first := processingPayment(t, payments, userID, plan)
	second := processingPayment(t, payments, userID, plan)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, p := range []*model.Payment{first, second} {
		go func(p *model.Payment) {
			defer wg.Done()
			_ = service.CompletePayment(ctx, p, provider.StatusSucceeded, "", nil)
		}(p)
	}
	wg.Wait()

	for _, p := range []*model.Payment{first, second} {
		stored, _ := payments.GetByID(ctx, p.ID)
		assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
	}

	require.Len(t, subs.subs, 1, "only one active window per user and plan")
	sub, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
	require.NotNil(t, sub)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), sub.EndsAt, time.Minute)
}

// Webhook delivery and the status poller race to resolve the same payment.
// However many confirmations arrive concurrently, exactly one may win the
// terminal transition and grant the subscription.
func TestCompletionService_ConcurrentConfirmations(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	userID := uuid.New()
	plan := monthlyPlan()

	payments := newMemPaymentRepo()
	subs := newMemSubscriptionRepo()
	service := newMemCompletion(payments, subs, newMemPlanRepo(plan), logger)

	payment := processingPayment(t, payments, userID, plan)

	const racers = 16
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_ = service.CompletePayment(ctx, payment, provider.StatusSucceeded, "", nil)
		}()
	}
	wg.Wait()

	stored, _ := payments.GetByID(ctx, payment.ID)
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, 1, subs.grantCalls, "only the transition winner may grant")

	sub, _ := subs.GetActiveByUserAndPlan(ctx, userID, plan.ID)
	require.NotNil(t, sub)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), sub.EndsAt, time.Minute)
}
