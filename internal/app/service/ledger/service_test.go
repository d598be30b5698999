package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ship-kit/billing/internal/app/service/payment_state"
	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Payment{}))
	return db
}

func newTestService(t *testing.T) *Service {
	return NewService(openTestDB(t), zap.NewNop().Sugar())
}

func orderInsert(key string, amount int64) *payment_state.Outcome {
	return &payment_state.Outcome{
		Action:        payment_state.ActionInsert,
		Kind:          models.PaymentKindOrder,
		DedupKey:      key,
		Status:        types.PaymentStatusCompleted,
		Amount:        amount,
		Currency:      "USD",
		MetadataPatch: map[string]any{"product_name": "Pro Plan"},
	}
}

func TestApply_InsertThenDuplicate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	row, err := s.Apply(ctx, provider, "usr-1", "order_created", false, orderInsert("ORD-1", 2000))
	require.NoError(t, err)
	require.Equal(t, "ORD-1", row.ExternalOrderID)
	require.Equal(t, types.PaymentStatusCompleted, row.Status)
	require.Equal(t, int64(2000), row.Amount)

	// Replaying the identical event must hit the unique key, not add a row.
	_, err = s.Apply(ctx, provider, "usr-1", "order_created", false, orderInsert("ORD-1", 2000))
	require.ErrorIs(t, err, ErrDuplicateEvent)

	var count int64
	require.NoError(t, s.db.Model(&models.Payment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestApply_UpdateWithoutBaseRecordIsOutOfOrder(t *testing.T) {
	s := newTestService(t)
	out := &payment_state.Outcome{
		Action:   payment_state.ActionUpdate,
		Kind:     models.PaymentKindOrder,
		DedupKey: "ORD-99",
		Status:   types.PaymentStatusRefunded,
	}
	_, err := s.Apply(context.Background(), types.PaymentProviderLemonSqueezy, "", "order_refunded", false, out)
	require.ErrorIs(t, err, ErrOutOfOrderEvent)
}

func TestApply_RefundTransitionsExistingRow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	_, err := s.Apply(ctx, provider, "usr-1", "order_created", false, orderInsert("ORD-1", 2000))
	require.NoError(t, err)

	refund := &payment_state.Outcome{
		Action:        payment_state.ActionUpdate,
		Kind:          models.PaymentKindOrder,
		DedupKey:      "ORD-1",
		Status:        types.PaymentStatusRefunded,
		MetadataPatch: map[string]any{"refunded": true},
	}
	row, err := s.Apply(ctx, provider, "", "order_refunded", false, refund)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusRefunded, row.Status)
	// Refund keeps the original charge amount on record.
	require.Equal(t, int64(2000), row.Amount)
	require.Equal(t, true, row.Metadata["refunded"])
	require.Equal(t, "Pro Plan", row.MetaString("product_name"))
}

func subLifecycle(action payment_state.Action, subID string, status types.PaymentStatus, patch map[string]any) *payment_state.Outcome {
	if patch == nil {
		patch = map[string]any{}
	}
	return &payment_state.Outcome{
		Action:         action,
		Kind:           models.PaymentKindSubscription,
		DedupKey:       subID,
		SubscriptionID: lo.ToPtr(subID),
		Status:         status,
		MetadataPatch:  patch,
	}
}

func TestApply_CancelledIsStickyUntilResumed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	_, err := s.Apply(ctx, provider, "usr-1", "subscription_created", false,
		subLifecycle(payment_state.ActionInsert, "SUB-1", types.PaymentStatusCompleted, nil))
	require.NoError(t, err)

	row, err := s.Apply(ctx, provider, "", "subscription_cancelled", false,
		subLifecycle(payment_state.ActionUpdate, "SUB-1", types.PaymentStatusCancelled, nil))
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, row.Status)

	// A plain update cannot leave cancelled; the write is a no-op.
	row, err = s.Apply(ctx, provider, "", "subscription_updated", false,
		subLifecycle(payment_state.ActionUpdate, "SUB-1", types.PaymentStatusCompleted, nil))
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, row.Status)

	// subscription_resumed is the only way back.
	row, err = s.Apply(ctx, provider, "", "subscription_resumed", false,
		subLifecycle(payment_state.ActionUpdate, "SUB-1", types.PaymentStatusCompleted, nil))
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, row.Status)
}

func TestApply_UpsertInvoiceCreatesThenUpdates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	failed := &payment_state.Outcome{
		Action:         payment_state.ActionUpsert,
		Kind:           models.PaymentKindSubscriptionPayment,
		DedupKey:       "11-INV-9",
		SubscriptionID: lo.ToPtr("11"),
		Status:         types.PaymentStatusFailed,
		Amount:         999,
		Currency:       "USD",
	}
	row, err := s.Apply(ctx, provider, "usr-1", "subscription_payment_failed", false, failed)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, row.Status)

	recovered := *failed
	recovered.Status = types.PaymentStatusCompleted
	row, err = s.Apply(ctx, provider, "usr-1", "subscription_payment_recovered", false, &recovered)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, row.Status)

	var count int64
	require.NoError(t, s.db.Model(&models.Payment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestFindBySubscriptionID_UsesIndexedColumn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	_, err := s.Apply(ctx, provider, "usr-1", "subscription_created", false,
		subLifecycle(payment_state.ActionInsert, "SUB-7", types.PaymentStatusCompleted, nil))
	require.NoError(t, err)

	row, err := s.FindBySubscriptionID(ctx, provider, "SUB-7")
	require.NoError(t, err)
	require.Equal(t, "SUB-7", row.ExternalOrderID)
	require.Equal(t, models.PaymentKindSubscription, row.Kind)
}

func TestIsProcessed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	seen, err := s.IsProcessed(ctx, provider, "ORD-1")
	require.NoError(t, err)
	require.False(t, seen)

	_, err = s.Apply(ctx, provider, "usr-1", "order_created", false, orderInsert("ORD-1", 2000))
	require.NoError(t, err)

	seen, err = s.IsProcessed(ctx, provider, "ORD-1")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestScanPayments_FiltersAndPaginates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provider := types.PaymentProviderLemonSqueezy

	for i := 0; i < 5; i++ {
		_, err := s.Apply(ctx, provider, "usr-1", "order_created", false, orderInsert(fmt.Sprintf("ORD-%d", i), 1000))
		require.NoError(t, err)
	}

	res, err := s.ScanPayments(ctx, &ScanPaymentsRequest{
		Filters: []*types.CommonFilter{
			{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(types.PaymentStatusCompleted)}},
		},
		Size: 3,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), res.Total)
	require.Len(t, res.Rows, 3)
}
