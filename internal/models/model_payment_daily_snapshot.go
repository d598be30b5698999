package models

import "time"

// PaymentDailySnapshot is a per-day revenue rollup over the payment ledger,
// materialized by the statistics service for analytics queries.
type PaymentDailySnapshot struct {
	ID        string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Day       string `gorm:"column:day;type:varchar(10);not null;uniqueIndex:unique_day_processor,priority:1" json:"day"`
	Processor string `gorm:"column:processor;type:varchar(64);not null;uniqueIndex:unique_day_processor,priority:2" json:"processor"`

	PaymentCount int64 `gorm:"column:payment_count;type:bigint;not null" json:"payment_count"`
	// Amounts are in minor currency units.
	GrossRevenue   int64 `gorm:"column:gross_revenue;type:bigint;not null" json:"gross_revenue"`
	RefundedAmount int64 `gorm:"column:refunded_amount;type:bigint;not null" json:"refunded_amount"`
	NetRevenue     int64 `gorm:"column:net_revenue;type:bigint;not null" json:"net_revenue"`

	SnapshotCreatedAt time.Time `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (PaymentDailySnapshot) TableName() string { return "payment_daily_snapshot" }
