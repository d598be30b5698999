// Package ledger owns the payment table. Every mutation goes through one
// transaction here; the (processor, external_order_id) unique index is the
// authoritative idempotency barrier against duplicate webhook deliveries.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ship-kit/billing/internal/app/service/payment_state"
	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/logctx"
	"github.com/ship-kit/billing/pkg/tool"
	"github.com/ship-kit/billing/pkg/types"
)

// ErrDuplicateEvent means the dedup key already has a row. Not a failure:
// callers acknowledge the delivery without reprocessing.
var ErrDuplicateEvent = errors.New("event already processed")

// ErrOutOfOrderEvent means a lifecycle update arrived before the creation
// event for its resource. Callers surface it so the provider retries after
// the base event presumably lands.
var ErrOutOfOrderEvent = errors.New("no base record for lifecycle event")

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// IsProcessed is a cheap pre-check used to short-circuit duplicate insert
// deliveries before user resolution. It is advisory only; the unique index
// inside Apply's transaction is what actually prevents double writes under
// concurrent delivery.
func (s *Service) IsProcessed(ctx context.Context, processor types.PaymentProvider, dedupKey string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("processor = ? AND external_order_id = ?", processor, dedupKey).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return count > 0, nil
}

// Apply executes the planned write inside one transaction. The whole write
// commits or nothing does.
func (s *Service) Apply(ctx context.Context, processor types.PaymentProvider, userID, eventName string, testMode bool, out *payment_state.Outcome) (*models.Payment, error) {
	if out == nil || out.Action == payment_state.ActionNone {
		return nil, nil
	}

	var result *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch out.Action {
		case payment_state.ActionInsert:
			result, err = s.insert(ctx, tx, processor, userID, testMode, out)
		case payment_state.ActionUpdate:
			result, err = s.update(ctx, tx, processor, eventName, out)
		case payment_state.ActionUpsert:
			result, err = s.upsert(ctx, tx, processor, userID, eventName, testMode, out)
		default:
			err = fmt.Errorf("unknown ledger action: %s", out.Action)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, processor types.PaymentProvider, userID string, testMode bool, out *payment_state.Outcome) (*models.Payment, error) {
	row := s.newRow(processor, userID, testMode, out)

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "processor"}, {Name: "external_order_id"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, processor, out.DedupKey)
	}
	return row, nil
}

func (s *Service) update(ctx context.Context, tx *gorm.DB, processor types.PaymentProvider, eventName string, out *payment_state.Outcome) (*models.Payment, error) {
	var existing models.Payment
	err := tx.WithContext(ctx).
		Where("processor = ? AND external_order_id = ?", processor, out.DedupKey).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s (%s)", ErrOutOfOrderEvent, processor, out.DedupKey, eventName)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if !payment_state.CanTransition(existing.Status, out.Status, eventName) {
		logctx.FromCtx(ctx, s.log).Infow("payment_transition_blocked",
			"dedup_key", out.DedupKey,
			"from", existing.Status,
			"to", out.Status,
			"event", eventName,
		)
		return &existing, nil
	}

	s.applyPatch(&existing, out)
	if err := tx.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	return &existing, nil
}

func (s *Service) upsert(ctx context.Context, tx *gorm.DB, processor types.PaymentProvider, userID, eventName string, testMode bool, out *payment_state.Outcome) (*models.Payment, error) {
	var existing models.Payment
	err := tx.WithContext(ctx).
		Where("processor = ? AND external_order_id = ?", processor, out.DedupKey).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.insert(ctx, tx, processor, userID, testMode, out)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if !payment_state.CanTransition(existing.Status, out.Status, eventName) {
		logctx.FromCtx(ctx, s.log).Infow("payment_transition_blocked",
			"dedup_key", out.DedupKey,
			"from", existing.Status,
			"to", out.Status,
			"event", eventName,
		)
		return &existing, nil
	}

	s.applyPatch(&existing, out)
	if err := tx.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	return &existing, nil
}

func (s *Service) newRow(processor types.PaymentProvider, userID string, testMode bool, out *payment_state.Outcome) *models.Payment {
	metadata := make(map[string]any, len(out.MetadataPatch))
	for k, v := range out.MetadataPatch {
		metadata[k] = v
	}
	currency := out.Currency
	if currency == "" {
		currency = "USD"
	}
	return &models.Payment{
		ID:              tool.GenerateUUIDV7(),
		UserID:          userID,
		Processor:       processor,
		ExternalOrderID: out.DedupKey,
		SubscriptionID:  out.SubscriptionID,
		Kind:            out.Kind,
		Amount:          out.Amount,
		Currency:        currency,
		Status:          out.Status,
		TestMode:        testMode,
		Metadata:        metadata,
	}
}

// applyPatch merges the planned changes into an existing row. Amount is only
// replaced when the event carries one, so a refund keeps the original charge
// amount on record.
func (s *Service) applyPatch(p *models.Payment, out *payment_state.Outcome) {
	p.Status = out.Status
	if out.SubscriptionID != nil {
		p.SubscriptionID = out.SubscriptionID
	}
	if out.Amount > 0 {
		p.Amount = out.Amount
	}
	if out.Currency != "" {
		p.Currency = out.Currency
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	for k, v := range out.MetadataPatch {
		p.Metadata[k] = v
	}
}

// FindByKey loads a payment by its dedup key.
func (s *Service) FindByKey(ctx context.Context, processor types.PaymentProvider, dedupKey string) (*models.Payment, error) {
	var row models.Payment
	err := s.db.WithContext(ctx).
		Where("processor = ? AND external_order_id = ?", processor, dedupKey).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindBySubscriptionID loads the lifecycle row of a subscription via the
// indexed subscription_id column.
func (s *Service) FindBySubscriptionID(ctx context.Context, processor types.PaymentProvider, subscriptionID string) (*models.Payment, error) {
	var row models.Payment
	err := s.db.WithContext(ctx).
		Where("processor = ? AND subscription_id = ? AND kind = ?", processor, subscriptionID, models.PaymentKindSubscription).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByUser returns a user's payments, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*models.Payment, error) {
	var rows []*models.Payment
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
