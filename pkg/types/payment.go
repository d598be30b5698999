package types

type PaymentProvider string

const (
	PaymentProviderLemonSqueezy PaymentProvider = "lemonsqueezy"
)

// PaymentStatus is the coarse payment status stored on a ledger row.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// SubscriptionLifecycle is the provider-reported subscription lifecycle state.
// It is mapped onto PaymentStatus by the payment_state package.
type SubscriptionLifecycle string

const (
	SubscriptionLifecycleOnTrial   SubscriptionLifecycle = "on_trial"
	SubscriptionLifecycleActive    SubscriptionLifecycle = "active"
	SubscriptionLifecyclePaused    SubscriptionLifecycle = "paused"
	SubscriptionLifecyclePastDue   SubscriptionLifecycle = "past_due"
	SubscriptionLifecycleUnpaid    SubscriptionLifecycle = "unpaid"
	SubscriptionLifecycleCancelled SubscriptionLifecycle = "cancelled"
	SubscriptionLifecycleExpired   SubscriptionLifecycle = "expired"
)
