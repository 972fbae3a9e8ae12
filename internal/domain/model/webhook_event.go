package model

import (
	"time"
)

// WebhookEvent is the append-only audit record of every inbound provider
// callback. One row is written per delivery before any parsing happens, so
// malformed or unmatched payloads survive for manual reconciliation. Only the
// processed flag and the payment link ever change after insert.
type WebhookEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider    string    `gorm:"size:50;not null;index" json:"provider"`
	Payload     JSONB     `gorm:"type:jsonb" json:"payload,omitempty"`
	RawBody     string    `gorm:"type:text;not null" json:"raw_body"`
	ProviderRef *string   `gorm:"size:100;index" json:"provider_ref,omitempty"`
	Processed   bool      `gorm:"default:false;index" json:"processed"`
	PaymentID   *int64    `gorm:"index" json:"payment_id,omitempty"`
	IPAddress   *string   `gorm:"size:45" json:"ip_address,omitempty"`
	CreatedAt   time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
