// Package payment_state maps provider webhook events onto the coarse payment
// status stored in the ledger. It is pure: callers feed it a decoded envelope
// and perform the resulting write themselves.
package payment_state

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/internal/platform/lemonsqueezy"
	"github.com/ship-kit/billing/pkg/types"
)

// ErrUnhandledEvent marks event names this service does not act on. Not a
// failure: the caller acknowledges the delivery so the provider stops
// retrying.
var ErrUnhandledEvent = errors.New("unhandled event type")

type Action string

const (
	// ActionNone means the event produces no ledger write.
	ActionNone Action = "none"
	// ActionInsert creates a new ledger row; an existing row under the same
	// dedup key means a duplicate delivery.
	ActionInsert Action = "insert"
	// ActionUpdate mutates an existing row; a missing row means the event
	// arrived out of order.
	ActionUpdate Action = "update"
	// ActionUpsert creates the row if absent, updates it otherwise.
	ActionUpsert Action = "upsert"
)

// Outcome is the planned ledger write for one event.
type Outcome struct {
	Action         Action
	Kind           models.PaymentKind
	DedupKey       string
	SubscriptionID *string
	Status         types.PaymentStatus
	Amount         int64
	Currency       string
	MetadataPatch  map[string]any
}

// CoarseStatus maps a provider subscription lifecycle onto the ledger's
// coarse status.
//
//	active, on_trial        -> completed (cancelled flag forces cancelled)
//	paused                  -> pending
//	past_due, unpaid        -> failed
//	cancelled, expired      -> cancelled
func CoarseStatus(lifecycle types.SubscriptionLifecycle, cancelled bool) types.PaymentStatus {
	switch lifecycle {
	case types.SubscriptionLifecycleActive, types.SubscriptionLifecycleOnTrial:
		if cancelled {
			return types.PaymentStatusCancelled
		}
		return types.PaymentStatusCompleted
	case types.SubscriptionLifecyclePaused:
		return types.PaymentStatusPending
	case types.SubscriptionLifecyclePastDue, types.SubscriptionLifecycleUnpaid:
		return types.PaymentStatusFailed
	case types.SubscriptionLifecycleCancelled, types.SubscriptionLifecycleExpired:
		return types.PaymentStatusCancelled
	default:
		if cancelled {
			return types.PaymentStatusCancelled
		}
		return types.PaymentStatusPending
	}
}

// CanTransition reports whether a stored status may move to next for the
// given event. Cancelled is sticky: only a subscription_resumed event leaves
// it. Refunded is terminal.
func CanTransition(current, next types.PaymentStatus, eventName string) bool {
	if current == next {
		return true
	}
	switch current {
	case types.PaymentStatusCancelled:
		return eventName == lemonsqueezy.EventSubscriptionResumed
	case types.PaymentStatusRefunded:
		return false
	}
	return true
}

// Plan computes the ledger write for an envelope. It tolerates partially
// populated payloads; missing fields degrade to a no-op rather than an error.
func Plan(env *lemonsqueezy.Envelope) (*Outcome, error) {
	switch env.EventName {
	case lemonsqueezy.EventOrderCreated:
		return planOrderCreated(env), nil
	case lemonsqueezy.EventOrderRefunded:
		return planOrderRefunded(env), nil

	case lemonsqueezy.EventSubscriptionCreated:
		return planSubscriptionLifecycle(env, ActionInsert), nil
	case lemonsqueezy.EventSubscriptionUpdated,
		lemonsqueezy.EventSubscriptionCancelled,
		lemonsqueezy.EventSubscriptionResumed,
		lemonsqueezy.EventSubscriptionExpired,
		lemonsqueezy.EventSubscriptionPaused,
		lemonsqueezy.EventSubscriptionUnpaused:
		return planSubscriptionLifecycle(env, ActionUpdate), nil

	case lemonsqueezy.EventSubscriptionPaymentSuccess,
		lemonsqueezy.EventSubscriptionPaymentFailed,
		lemonsqueezy.EventSubscriptionPaymentRecovered:
		return planSubscriptionPayment(env), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, env.EventName)
	}
}

func planOrderCreated(env *lemonsqueezy.Envelope) *Outcome {
	// A non-paid order must never be written as if it were a completed
	// payment.
	if env.Order == nil || env.Order.Status != lemonsqueezy.OrderStatusPaid {
		return &Outcome{Action: ActionNone}
	}

	patch := basePatch(env)
	patch["identifier"] = env.Order.Identifier
	patch["product_name"] = env.Order.FirstOrderItem.ProductName
	patch["variant_name"] = env.Order.FirstOrderItem.VariantName
	patch["variant_id"] = env.Order.FirstOrderItem.VariantID

	return &Outcome{
		Action:        ActionInsert,
		Kind:          models.PaymentKindOrder,
		DedupKey:      env.EventID,
		Status:        types.PaymentStatusCompleted,
		Amount:        env.Order.Total,
		Currency:      env.Order.Currency,
		MetadataPatch: patch,
	}
}

func planOrderRefunded(env *lemonsqueezy.Envelope) *Outcome {
	patch := basePatch(env)
	patch["refunded"] = true
	if env.Order != nil && env.Order.RefundedAt != "" {
		patch["refunded_at"] = env.Order.RefundedAt
	}

	return &Outcome{
		Action:        ActionUpdate,
		Kind:          models.PaymentKindOrder,
		DedupKey:      env.EventID,
		Status:        types.PaymentStatusRefunded,
		MetadataPatch: patch,
	}
}

func planSubscriptionLifecycle(env *lemonsqueezy.Envelope, action Action) *Outcome {
	sub := env.Subscription
	if sub == nil {
		sub = &lemonsqueezy.SubscriptionAttributes{}
	}

	patch := basePatch(env)
	patch["lifecycle"] = sub.Status
	patch["cancelled"] = sub.Cancelled
	patch["product_name"] = sub.ProductName
	patch["variant_name"] = sub.VariantName
	if sub.RenewsAt != "" {
		patch["renews_at"] = sub.RenewsAt
	}
	if sub.EndsAt != "" {
		patch["ends_at"] = sub.EndsAt
	}
	if sub.TrialEndsAt != "" {
		patch["trial_ends_at"] = sub.TrialEndsAt
	}
	if sub.CardBrand != "" {
		patch["card_brand"] = sub.CardBrand
		patch["card_last_four"] = sub.CardLast4
	}

	subID := env.EventID
	return &Outcome{
		Action:         action,
		Kind:           models.PaymentKindSubscription,
		DedupKey:       env.EventID,
		SubscriptionID: &subID,
		Status:         CoarseStatus(sub.Lifecycle(), sub.Cancelled),
		MetadataPatch:  patch,
	}
}

func planSubscriptionPayment(env *lemonsqueezy.Envelope) *Outcome {
	inv := env.SubscriptionInvoice
	if inv == nil {
		inv = &lemonsqueezy.SubscriptionInvoiceAttributes{}
	}

	status := types.PaymentStatusCompleted
	if env.EventName == lemonsqueezy.EventSubscriptionPaymentFailed {
		status = types.PaymentStatusFailed
	}

	patch := basePatch(env)
	patch["billing_reason"] = inv.BillingReason
	patch["invoice_status"] = inv.Status
	if inv.CardBrand != "" {
		patch["card_brand"] = inv.CardBrand
		patch["card_last_four"] = inv.CardLast4
	}

	// Recurring charges get their own row, keyed subscriptionId-invoiceId,
	// distinct from the subscription's lifecycle row.
	subID := strconv.FormatInt(inv.SubscriptionID, 10)
	return &Outcome{
		Action:         ActionUpsert,
		Kind:           models.PaymentKindSubscriptionPayment,
		DedupKey:       fmt.Sprintf("%s-%s", subID, env.EventID),
		SubscriptionID: &subID,
		Status:         status,
		Amount:         inv.Total,
		Currency:       inv.Currency,
		MetadataPatch:  patch,
	}
}

func basePatch(env *lemonsqueezy.Envelope) map[string]any {
	patch := map[string]any{
		"event_name": env.EventName,
	}
	if len(env.CustomData) > 0 {
		patch["custom_data"] = env.CustomData
	}
	return patch
}
