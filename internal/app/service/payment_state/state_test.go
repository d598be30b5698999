package payment_state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/internal/platform/lemonsqueezy"
	"github.com/ship-kit/billing/pkg/types"
)

func TestCoarseStatus_Table(t *testing.T) {
	cases := []struct {
		lifecycle types.SubscriptionLifecycle
		cancelled bool
		want      types.PaymentStatus
	}{
		{types.SubscriptionLifecycleActive, false, types.PaymentStatusCompleted},
		{types.SubscriptionLifecycleOnTrial, false, types.PaymentStatusCompleted},
		{types.SubscriptionLifecycleActive, true, types.PaymentStatusCancelled},
		{types.SubscriptionLifecycleOnTrial, true, types.PaymentStatusCancelled},
		{types.SubscriptionLifecyclePaused, false, types.PaymentStatusPending},
		{types.SubscriptionLifecyclePaused, true, types.PaymentStatusPending},
		{types.SubscriptionLifecyclePastDue, false, types.PaymentStatusFailed},
		{types.SubscriptionLifecyclePastDue, true, types.PaymentStatusFailed},
		{types.SubscriptionLifecycleUnpaid, false, types.PaymentStatusFailed},
		{types.SubscriptionLifecycleUnpaid, true, types.PaymentStatusFailed},
		{types.SubscriptionLifecycleCancelled, false, types.PaymentStatusCancelled},
		{types.SubscriptionLifecycleCancelled, true, types.PaymentStatusCancelled},
		{types.SubscriptionLifecycleExpired, false, types.PaymentStatusCancelled},
		{types.SubscriptionLifecycleExpired, true, types.PaymentStatusCancelled},
		// unknown lifecycle values still resolve to a defined status
		{types.SubscriptionLifecycle("future_state"), false, types.PaymentStatusPending},
		{types.SubscriptionLifecycle("future_state"), true, types.PaymentStatusCancelled},
	}

	for _, tc := range cases {
		got := CoarseStatus(tc.lifecycle, tc.cancelled)
		require.Equal(t, tc.want, got, "lifecycle=%s cancelled=%v", tc.lifecycle, tc.cancelled)
	}
}

func TestCanTransition_CancelledIsSticky(t *testing.T) {
	require.False(t, CanTransition(types.PaymentStatusCancelled, types.PaymentStatusCompleted, lemonsqueezy.EventSubscriptionUpdated))
	require.False(t, CanTransition(types.PaymentStatusCancelled, types.PaymentStatusPending, lemonsqueezy.EventSubscriptionPaused))
	require.True(t, CanTransition(types.PaymentStatusCancelled, types.PaymentStatusCompleted, lemonsqueezy.EventSubscriptionResumed))
	require.True(t, CanTransition(types.PaymentStatusCancelled, types.PaymentStatusCancelled, lemonsqueezy.EventSubscriptionUpdated))
}

func TestCanTransition_RefundedIsTerminal(t *testing.T) {
	require.False(t, CanTransition(types.PaymentStatusRefunded, types.PaymentStatusCompleted, lemonsqueezy.EventSubscriptionResumed))
	require.True(t, CanTransition(types.PaymentStatusRefunded, types.PaymentStatusRefunded, lemonsqueezy.EventOrderRefunded))
}

func TestPlan_NonPaidOrderIsNoop(t *testing.T) {
	env := &lemonsqueezy.Envelope{
		EventName: lemonsqueezy.EventOrderCreated,
		EventID:   "ORD-1",
		Order:     &lemonsqueezy.OrderAttributes{Status: lemonsqueezy.OrderStatusPending, Total: 2000},
	}
	out, err := Plan(env)
	require.NoError(t, err)
	require.Equal(t, ActionNone, out.Action)
}

func TestPlan_PaidOrderInserts(t *testing.T) {
	env := &lemonsqueezy.Envelope{
		EventName:  lemonsqueezy.EventOrderCreated,
		EventID:    "ORD-1",
		CustomData: map[string]string{"user_id": "usr-42"},
		Order: &lemonsqueezy.OrderAttributes{
			Status:   lemonsqueezy.OrderStatusPaid,
			Total:    2000,
			Currency: "USD",
		},
	}
	out, err := Plan(env)
	require.NoError(t, err)
	require.Equal(t, ActionInsert, out.Action)
	require.Equal(t, models.PaymentKindOrder, out.Kind)
	require.Equal(t, "ORD-1", out.DedupKey)
	require.Equal(t, types.PaymentStatusCompleted, out.Status)
	require.Equal(t, int64(2000), out.Amount)
	require.Equal(t, map[string]string{"user_id": "usr-42"}, out.MetadataPatch["custom_data"])
}

func TestPlan_RefundUpdatesExisting(t *testing.T) {
	env := &lemonsqueezy.Envelope{
		EventName: lemonsqueezy.EventOrderRefunded,
		EventID:   "ORD-1",
		Order:     &lemonsqueezy.OrderAttributes{Status: lemonsqueezy.OrderStatusRefunded, RefundedAt: "2026-08-01T00:00:00Z"},
	}
	out, err := Plan(env)
	require.NoError(t, err)
	require.Equal(t, ActionUpdate, out.Action)
	require.Equal(t, types.PaymentStatusRefunded, out.Status)
	require.Equal(t, "2026-08-01T00:00:00Z", out.MetadataPatch["refunded_at"])
}

func TestPlan_SubscriptionLifecycleEvents(t *testing.T) {
	insertEvents := []string{lemonsqueezy.EventSubscriptionCreated}
	updateEvents := []string{
		lemonsqueezy.EventSubscriptionUpdated,
		lemonsqueezy.EventSubscriptionCancelled,
		lemonsqueezy.EventSubscriptionResumed,
		lemonsqueezy.EventSubscriptionExpired,
		lemonsqueezy.EventSubscriptionPaused,
		lemonsqueezy.EventSubscriptionUnpaused,
	}

	for _, name := range insertEvents {
		out, err := Plan(&lemonsqueezy.Envelope{
			EventName:    name,
			EventID:      "SUB-1",
			Subscription: &lemonsqueezy.SubscriptionAttributes{Status: "on_trial"},
		})
		require.NoError(t, err, name)
		require.Equal(t, ActionInsert, out.Action, name)
		require.Equal(t, types.PaymentStatusCompleted, out.Status, name)
		require.NotNil(t, out.SubscriptionID)
		require.Equal(t, "SUB-1", *out.SubscriptionID)
	}
	for _, name := range updateEvents {
		out, err := Plan(&lemonsqueezy.Envelope{
			EventName:    name,
			EventID:      "SUB-1",
			Subscription: &lemonsqueezy.SubscriptionAttributes{Status: "active"},
		})
		require.NoError(t, err, name)
		require.Equal(t, ActionUpdate, out.Action, name)
		require.Equal(t, models.PaymentKindSubscription, out.Kind, name)
	}
}

func TestPlan_SubscriptionPaymentCompositeKey(t *testing.T) {
	for name, want := range map[string]types.PaymentStatus{
		lemonsqueezy.EventSubscriptionPaymentSuccess:   types.PaymentStatusCompleted,
		lemonsqueezy.EventSubscriptionPaymentRecovered: types.PaymentStatusCompleted,
		lemonsqueezy.EventSubscriptionPaymentFailed:    types.PaymentStatusFailed,
	} {
		out, err := Plan(&lemonsqueezy.Envelope{
			EventName:           name,
			EventID:             "INV-9",
			SubscriptionInvoice: &lemonsqueezy.SubscriptionInvoiceAttributes{SubscriptionID: 11, Total: 999},
		})
		require.NoError(t, err, name)
		require.Equal(t, ActionUpsert, out.Action, name)
		require.Equal(t, "11-INV-9", out.DedupKey, name)
		require.Equal(t, want, out.Status, name)
		require.Equal(t, models.PaymentKindSubscriptionPayment, out.Kind, name)
	}
}

func TestPlan_UnknownEvent(t *testing.T) {
	_, err := Plan(&lemonsqueezy.Envelope{EventName: "license_key_created", EventID: "LK-1"})
	require.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestPlan_ToleratesMissingAttributes(t *testing.T) {
	// Envelope decoded from a sparse payload: no typed attributes at all.
	out, err := Plan(&lemonsqueezy.Envelope{EventName: lemonsqueezy.EventSubscriptionUpdated, EventID: "SUB-1"})
	require.NoError(t, err)
	require.Equal(t, ActionUpdate, out.Action)
}
