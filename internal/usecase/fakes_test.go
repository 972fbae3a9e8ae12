package usecase_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.uber.org/zap"

	domainerrors "github.com/elimu-platform/payment-service/internal/domain/errors"
	"github.com/elimu-platform/payment-service/internal/domain/model"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/domain/repository"
	"github.com/elimu-platform/payment-service/internal/usecase"
)

// memPaymentRepo is an in-memory PaymentRepository with the same
// compare-and-set semantics as the gorm implementation. The mutex stands in
// for the row-level atomicity of the guarded UPDATE.
type memPaymentRepo struct {
	mu       sync.Mutex
	seq      int64
	payments map[int64]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[int64]*model.Payment)}
}

func (r *memPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	payment.ID = r.seq
	payment.CreatedAt = time.Now()
	r.payments[payment.ID] = payment
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id], nil
}

func (r *memPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProviderRef != nil && *p.ProviderRef == providerRef {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) GetRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPaymentRepo) MarkProcessing(ctx context.Context, id int64, providerRef string, data model.JSONB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	p.Status = model.PaymentStatusProcessing
	p.ProviderRef = &providerRef
	p.ProviderData = data
	return nil
}

func (r *memPaymentRepo) MarkInitiateFailed(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	return nil
}

func (r *memPaymentRepo) CompleteIfProcessing(ctx context.Context, id int64, completedAt time.Time, data model.JSONB) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	if p == nil || p.Status != model.PaymentStatusProcessing {
		return false, nil
	}
	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &completedAt
	if data != nil {
		p.ProviderData = data
	}
	return true, nil
}

func (r *memPaymentRepo) FailIfProcessing(ctx context.Context, id int64, reason string, data model.JSONB) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payments[id]
	if p == nil || p.Status != model.PaymentStatusProcessing {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	if data != nil {
		p.ProviderData = data
	}
	return true, nil
}

func (r *memPaymentRepo) ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.payments {
		if p.Status == model.PaymentStatusProcessing && p.CreatedAt.Before(createdBefore) {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// snapshot and restore give memTransactor the rollback half of a database
// transaction. Restoring writes through the stored pointers so payments
// already held by a test observe the rolled-back state.
func (r *memPaymentRepo) snapshot() map[int64]model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]model.Payment, len(r.payments))
	for id, p := range r.payments {
		out[id] = *p
	}
	return out
}

func (r *memPaymentRepo) restore(snap map[int64]model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.payments {
		if saved, ok := snap[id]; ok {
			*r.payments[id] = saved
		} else {
			delete(r.payments, id)
		}
	}
}

// memTransactor serializes transactions with a mutex and rolls the payment
// store back when fn fails. Subscription fakes mutate only on success, so
// restoring payments alone is enough.
type memTransactor struct {
	mu       sync.Mutex
	payments *memPaymentRepo
	subs     repository.SubscriptionRepository
}

func (t *memTransactor) Transaction(ctx context.Context, fn func(payments repository.PaymentRepository, subscriptions repository.SubscriptionRepository) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.payments.snapshot()
	if err := fn(t.payments, t.subs); err != nil {
		t.payments.restore(snap)
		return err
	}
	return nil
}

func newMemCompletion(payments *memPaymentRepo, subs repository.SubscriptionRepository, plans repository.PlanRepository, logger *zap.Logger) *usecase.CompletionService {
	return usecase.NewCompletionService(&memTransactor{payments: payments, subs: subs}, plans, logger)
}

// memSubscriptionRepo mirrors the transactional grant-or-extend semantics.
type memSubscriptionRepo struct {
	mu   sync.Mutex
	seq  int64
	subs []*model.Subscription

	grantCalls int
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{}
}

func (r *memSubscriptionRepo) GetActiveByUserAndPlan(ctx context.Context, userID uuid.UUID, planID int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findActive(userID, planID), nil
}

func (r *memSubscriptionRepo) GrantOrExtend(ctx context.Context, userID uuid.UUID, planID int64, duration time.Duration, paymentID int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grantCalls++

	now := time.Now()
	if sub := r.findActive(userID, planID); sub != nil {
		base := sub.EndsAt
		if base.Before(now) {
			base = now
		}
		sub.EndsAt = base.Add(duration)
		sub.LastPaymentID = &paymentID
		return sub, nil
	}

	r.seq++
	sub := &model.Subscription{
		ID:            r.seq,
		UserID:        userID,
		PlanID:        planID,
		Status:        model.SubscriptionStatusActive,
		StartsAt:      now,
		EndsAt:        now.Add(duration),
		LastPaymentID: &paymentID,
	}
	r.subs = append(r.subs, sub)
	return sub, nil
}

func (r *memSubscriptionRepo) findActive(userID uuid.UUID, planID int64) *model.Subscription {
	for _, s := range r.subs {
		if s.UserID == userID && s.PlanID == planID && s.Status == model.SubscriptionStatusActive {
			return s
		}
	}
	return nil
}

type memPlanRepo struct {
	plans map[int64]*model.PaymentPlan
}

func newMemPlanRepo(plans ...*model.PaymentPlan) *memPlanRepo {
	r := &memPlanRepo{plans: make(map[int64]*model.PaymentPlan)}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func (r *memPlanRepo) GetByID(ctx context.Context, id int64) (*model.PaymentPlan, error) {
	return r.plans[id], nil
}

func (r *memPlanRepo) ListActive(ctx context.Context) ([]*model.PaymentPlan, error) {
	var out []*model.PaymentPlan
	for _, p := range r.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// stubAdapter lets each test script the provider's behavior.
type stubAdapter struct {
	name         string
	initiate     func(ctx context.Context, req *provider.InitiateRequest) (*provider.InitiateResponse, error)
	checkStatus  func(ctx context.Context, req *provider.StatusRequest) (*provider.StatusResult, error)
	parseWebhook func(body []byte, header http.Header) (*provider.WebhookNotification, error)
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Initiate(ctx context.Context, req *provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return a.initiate(ctx, req)
}

func (a *stubAdapter) CheckStatus(ctx context.Context, req *provider.StatusRequest) (*provider.StatusResult, error) {
	return a.checkStatus(ctx, req)
}

func (a *stubAdapter) ParseWebhook(body []byte, header http.Header) (*provider.WebhookNotification, error) {
	return a.parseWebhook(body, header)
}

type stubRegistry struct {
	adapters map[string]provider.Adapter
}

func newStubRegistry(adapters ...provider.Adapter) *stubRegistry {
	r := &stubRegistry{adapters: make(map[string]provider.Adapter)}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *stubRegistry) Get(name string) (provider.Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, domainerrors.ErrUnknownProvider
	}
	return a, nil
}

func (r *stubRegistry) Names() []string {
	var names []string
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
