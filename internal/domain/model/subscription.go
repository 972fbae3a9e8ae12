package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusInactive
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Subscription is the time-bounded entitlement window for one (user, plan)
// pair. At most one active row per pair exists; renewals extend EndsAt rather
// than creating a second window. Rows are written only through the payment
// completion path; downstream access control reads them, it never writes.
type Subscription struct {
	ID            int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_subscriptions_user_plan" json:"user_id"`
	PlanID        int64              `gorm:"not null;index:idx_subscriptions_user_plan" json:"plan_id"`
	Status        SubscriptionStatus `gorm:"type:subscription_status;not null;default:'active'" json:"status"`
	StartsAt      time.Time          `gorm:"not null" json:"starts_at"`
	EndsAt        time.Time          `gorm:"not null" json:"ends_at"`
	LastPaymentID *int64             `gorm:"index" json:"last_payment_id,omitempty"`
	CreatedAt     time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"default:now()" json:"updated_at"`

	// Relations
	Plan *PaymentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
