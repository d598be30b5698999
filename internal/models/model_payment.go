package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/ship-kit/billing/pkg/types"
)

// PaymentKind distinguishes what a ledger row represents.
type PaymentKind string

const (
	// PaymentKindOrder is a one-shot order charge.
	PaymentKindOrder PaymentKind = "order"
	// PaymentKindSubscription is a subscription lifecycle record; its status
	// tracks the subscription, not an individual charge.
	PaymentKindSubscription PaymentKind = "subscription"
	// PaymentKindSubscriptionPayment is a single recurring invoice charge.
	PaymentKindSubscriptionPayment PaymentKind = "subscription_payment"
)

// Payment is one ledger row per distinct order, subscription, or subscription
// invoice. Rows are never deleted; refunds and cancellations are status
// transitions so the audit trail survives.
//
// (Processor, ExternalOrderID) is the dedup key: re-ingesting the same
// provider event must not create a second row nor double-count revenue.
type Payment struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_id" json:"user_id"`

	Processor       types.PaymentProvider `gorm:"column:processor;type:varchar(64);not null;uniqueIndex:unique_processor_order_id,priority:1" json:"processor"`
	ExternalOrderID string                `gorm:"column:external_order_id;type:varchar(128);not null;uniqueIndex:unique_processor_order_id,priority:2" json:"external_order_id"`

	// SubscriptionID is set on subscription lifecycle rows and recurring
	// invoice rows so they can be located without scanning metadata.
	SubscriptionID *string `gorm:"column:subscription_id;type:varchar(128);index:idx_payment_subscription_id" json:"subscription_id"`

	Kind PaymentKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`

	// Amount is in minor currency units.
	Amount   int64  `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency string `gorm:"column:currency;type:varchar(8);not null;default:USD" json:"currency"`

	Status types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`

	// TestMode is carried through for auditability only; it never affects
	// processing decisions.
	TestMode bool `gorm:"column:test_mode;not null;default:false" json:"test_mode"`

	// Metadata holds product name, subscription lifecycle fields and the raw
	// custom data passed at checkout.
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }

// MetaString returns a string metadata field, or "" if absent.
func (p *Payment) MetaString(key string) string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	if s, ok := p.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// MetaTime parses an RFC3339 metadata field, or nil if absent or malformed.
func (p *Payment) MetaTime(key string) *time.Time {
	s := p.MetaString(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
