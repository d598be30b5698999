package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventLogStatus string

const (
	WebhookEventLogStatusReceived     WebhookEventLogStatus = "received"
	WebhookEventLogStatusHandled      WebhookEventLogStatus = "handled"
	WebhookEventLogStatusHandleFailed WebhookEventLogStatus = "handle_failed"
	WebhookEventLogStatusSkipped      WebhookEventLogStatus = "skipped"
)

// WebhookEventLog is an audit record of a signature-valid webhook delivery.
// It is written off the request's critical path and plays no part in the
// idempotency decision; the payment table's unique key is authoritative.
type WebhookEventLog struct {
	ID        string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Processor string                `gorm:"column:processor;type:varchar(64);not null" json:"processor"`
	EventName string                `gorm:"column:event_name;type:varchar(128);not null;index" json:"event_name"`
	EventID   string                `gorm:"column:event_id;type:varchar(128);not null" json:"event_id"`
	UserID    *string               `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	TraceID   string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	TestMode  bool                  `gorm:"column:test_mode;not null;default:false" json:"test_mode"`
	Payload   datatypes.JSON        `gorm:"column:payload;type:jsonb" json:"payload"`
	Result    *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status    WebhookEventLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
