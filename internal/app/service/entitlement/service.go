// Package entitlement answers "does user X have an active entitlement" by
// projecting the payment ledger. It never writes.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/types"
)

type Service struct {
	ledger *ledger.Service
	log    *zap.SugaredLogger
}

func NewService(l *ledger.Service, log *zap.SugaredLogger) *Service {
	return &Service{ledger: l, log: log}
}

// Entitlement is the query surface's view of a user's billing standing.
type Entitlement struct {
	UserID      string              `json:"user_id"`
	Active      bool                `json:"active"`
	Status      types.PaymentStatus `json:"status,omitempty"`
	Source      models.PaymentKind  `json:"source,omitempty"`
	ProductName string              `json:"product_name,omitempty"`
	RenewsAt    *time.Time          `json:"renews_at,omitempty"`
	EndsAt      *time.Time          `json:"ends_at,omitempty"`
}

// GetUserEntitlement computes the current entitlement. A subscription
// lifecycle record governs when present; otherwise any completed one-shot
// order grants a non-expiring entitlement.
func (s *Service) GetUserEntitlement(ctx context.Context, userID string) (*Entitlement, error) {
	rows, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user payments: %w", err)
	}

	ent := &Entitlement{UserID: userID}
	now := time.Now()

	var latestSub *models.Payment
	for _, row := range rows {
		if row.Kind != models.PaymentKindSubscription {
			continue
		}
		if latestSub == nil || row.UpdatedAt.After(latestSub.UpdatedAt) {
			latestSub = row
		}
	}

	if latestSub != nil {
		ent.Status = latestSub.Status
		ent.Source = models.PaymentKindSubscription
		ent.ProductName = latestSub.MetaString("product_name")
		ent.RenewsAt = latestSub.MetaTime("renews_at")
		ent.EndsAt = latestSub.MetaTime("ends_at")
		ent.Active = latestSub.Status == types.PaymentStatusCompleted &&
			(ent.EndsAt == nil || ent.EndsAt.After(now))
		// A cancelled subscription keeps access until ends_at.
		if !ent.Active && latestSub.Status == types.PaymentStatusCancelled &&
			ent.EndsAt != nil && ent.EndsAt.After(now) {
			ent.Active = true
		}
		if ent.Active {
			return ent, nil
		}
	}

	for _, row := range rows {
		if row.Kind == models.PaymentKindOrder && row.Status == types.PaymentStatusCompleted {
			ent.Active = true
			ent.Status = row.Status
			ent.Source = models.PaymentKindOrder
			ent.ProductName = row.MetaString("product_name")
			ent.RenewsAt = nil
			ent.EndsAt = nil
			return ent, nil
		}
	}

	return ent, nil
}
