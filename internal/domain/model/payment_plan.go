package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPlan represents a purchasable offering. A nil DurationDays means a
// one-off purchase that grants no subscription window. Plans are treated as
// immutable once referenced by a payment.
type PaymentPlan struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string          `gorm:"unique;not null;size:100" json:"name"`
	DisplayName  string          `gorm:"not null;size:200" json:"display_name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	DurationDays *int            `json:"duration_days,omitempty"`
	SortOrder    int             `gorm:"default:0" json:"sort_order"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"default:now()" json:"updated_at"`
}

// Duration returns the entitlement window granted by one payment for this
// plan, or false for one-off plans.
func (p *PaymentPlan) Duration() (time.Duration, bool) {
	if p.DurationDays == nil {
		return 0, false
	}
	return time.Duration(*p.DurationDays) * 24 * time.Hour, true
}

// TableName specifies the table name for GORM
func (PaymentPlan) TableName() string {
	return "payment_plans"
}
