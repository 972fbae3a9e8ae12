package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// validTransitions encodes the payment state machine. Status only moves
// forward; completed/failed/cancelled/refunded are terminal except for the
// administrative completed->refunded transition.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automated transition leaves this status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Payment represents one attempted transfer of funds through an external
// mobile-money provider. Amount, currency and plan are immutable after
// creation; only the status-transition paths mutate the row.
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       string          `gorm:"column:order_id;type:uuid;unique;not null" json:"order_id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID        int64           `gorm:"not null;index" json:"plan_id"`
	Provider      string          `gorm:"size:50;not null" json:"provider"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	PhoneNumber   string          `gorm:"size:20;not null" json:"phone_number"`
	PaymentMethod string          `gorm:"size:50;default:'mobile_money'" json:"payment_method"`
	Status        PaymentStatus   `gorm:"type:payment_status;not null;default:'pending';index" json:"status"`
	ProviderRef   *string         `gorm:"size:100;uniqueIndex" json:"provider_ref,omitempty"`
	ProviderData  JSONB           `gorm:"type:jsonb" json:"provider_data,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	ExpiresAt     time.Time       `gorm:"not null" json:"expires_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"default:now()" json:"updated_at"`

	// Relations
	Plan *PaymentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// Expired reports whether a non-terminal payment is past its expiry window.
// Expiry is a user-facing retry hint; it does not cancel the in-flight
// provider transaction, and late confirmations are still honored.
func (p *Payment) Expired(now time.Time) bool {
	return !p.Status.IsTerminal() && now.After(p.ExpiresAt)
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
