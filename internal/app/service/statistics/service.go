// Package statistics computes revenue rollups over the payment ledger. The
// ledger's idempotent writes are what make these numbers safe: a provider
// retry can never double-count a charge.
package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/tool"
	"github.com/ship-kit/billing/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// DailyRevenue is one day's aggregate for one processor. Amounts are minor
// currency units.
type DailyRevenue struct {
	Day            string `json:"day"`
	Processor      string `json:"processor"`
	PaymentCount   int64  `json:"payment_count"`
	GrossRevenue   int64  `json:"gross_revenue"`
	RefundedAmount int64  `json:"refunded_amount"`
	NetRevenue     int64  `json:"net_revenue"`
}

type RevenueStatisticsRequest struct {
	// From/To are inclusive YYYY-MM-DD day bounds.
	From string `json:"from"`
	To   string `json:"to"`
}

type RevenueStatisticsResponse struct {
	Days []*DailyRevenue `json:"days"`
}

// chargeKinds are the row kinds that represent money movement. Subscription
// lifecycle rows carry no amount and are excluded.
var chargeKinds = []models.PaymentKind{
	models.PaymentKindOrder,
	models.PaymentKindSubscriptionPayment,
}

// GetRevenueStatistics aggregates completed and refunded charges per day.
func (s *Service) GetRevenueStatistics(ctx context.Context, req *RevenueStatisticsRequest) (*RevenueStatisticsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select(`date(created_at) as day,
			processor,
			count(*) as payment_count,
			sum(case when status = ? then amount else 0 end) as gross_revenue,
			sum(case when status = ? then amount else 0 end) as refunded_amount`,
			types.PaymentStatusCompleted, types.PaymentStatusRefunded).
		Where("kind IN ?", lo.Map(chargeKinds, func(k models.PaymentKind, _ int) string { return string(k) })).
		Where("status IN ?", []types.PaymentStatus{types.PaymentStatusCompleted, types.PaymentStatusRefunded}).
		Group("date(created_at), processor").
		Order("day asc")

	if req.From != "" {
		q = q.Where("date(created_at) >= ?", req.From)
	}
	if req.To != "" {
		q = q.Where("date(created_at) <= ?", req.To)
	}

	var days []*DailyRevenue
	if err := q.Scan(&days).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	for _, d := range days {
		d.NetRevenue = d.GrossRevenue - d.RefundedAmount
	}
	return &RevenueStatisticsResponse{Days: days}, nil
}

// SnapshotDay materializes one day's rollup into payment_daily_snapshot,
// upserting on (day, processor).
func (s *Service) SnapshotDay(ctx context.Context, day string) error {
	res, err := s.GetRevenueStatistics(ctx, &RevenueStatisticsRequest{From: day, To: day})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, d := range res.Days {
		snap := &models.PaymentDailySnapshot{
			ID:                tool.GenerateUUIDV7(),
			Day:               d.Day,
			Processor:         d.Processor,
			PaymentCount:      d.PaymentCount,
			GrossRevenue:      d.GrossRevenue,
			RefundedAmount:    d.RefundedAmount,
			NetRevenue:        d.NetRevenue,
			SnapshotCreatedAt: now,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "processor"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"payment_count", "gross_revenue", "refunded_amount", "net_revenue", "snapshot_created_at", "updated_at",
			}),
		}).Create(snap).Error
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot for %s/%s: %w", d.Day, d.Processor, err)
		}
	}
	return nil
}
